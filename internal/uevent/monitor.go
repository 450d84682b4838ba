package uevent

import (
	"context"
	"strings"

	"github.com/vuinput/vuinputd/internal/vlog"
)

// inputDevicesPrefix bounds which host uevents the monitor stores and acts
// on; other subsystems' events are not this daemon's concern.
const inputDevicesPrefix = "/devices/virtual/input/"

// Monitor subscribes to the host kernel's uevent netlink group and feeds a
// Store. It is meant to run as the dispatcher's single BackgroundLoop task.
type Monitor struct {
	Store *Store
}

// NewMonitor builds a Monitor with a fresh Store.
func NewMonitor() *Monitor {
	return &Monitor{Store: NewStore()}
}

// Run blocks reading host uevents until ctx is cancelled or the socket
// errors unrecoverably.
func (m *Monitor) Run(ctx context.Context) error {
	sock, err := openSocket("")
	if err != nil {
		return err
	}
	defer sock.Close()

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		sock.Close()
		close(done)
	}()

	for {
		msg, err := sock.Recv()
		if err != nil {
			select {
			case <-done:
				return nil
			default:
				vlog.DedupedErrorf("uevent-monitor-recv", "reading host uevent socket: %v", err)
				continue
			}
		}

		event, err := Parse(msg)
		if err != nil {
			vlog.DedupedWarnf("uevent-monitor-parse", "parsing host uevent: %v", err)
			continue
		}

		if !relevant(event) {
			continue
		}

		m.Store.Push(event)
	}
}

// relevant reports whether an event is one the monitor should retain:
// SUBSYSTEM=input and a DEVPATH under /devices/virtual/input/. Host-visible
// events outside that set (e.g. real hardware hotplug) are ignored outright
// rather than stored, since nothing in this daemon ever needs them.
func relevant(e Event) bool {
	subsystem, _ := e.Get("SUBSYSTEM")
	if subsystem != "input" {
		return false
	}
	return strings.HasPrefix(e.Devpath, inputDevicesPrefix)
}
