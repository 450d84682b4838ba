// Package uevent formats and sends kernel-style netlink uevent messages,
// and runs the host-side monitor that subscribes to the kernel's own
// uevents and stores recently observed add/remove records.
//
// The wire format and socket setup are shared between the two directions
// (outbound synthetic events sent into a container's net namespace,
// inbound events read from the host) because they're the same protocol
// seen from opposite ends.
package uevent

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/vuinput/vuinputd/internal/vuerr"
)

// Prop is a single key=value uevent property. A slice rather than a map
// because emission order matters for byte-exact golden-vector comparisons.
type Prop struct {
	Key   string
	Value string
}

// Event is one parsed or to-be-formatted kernel uevent.
type Event struct {
	Action  string
	Devpath string
	Props   []Prop
}

// Get returns the value of the named property, and whether it was present.
func (e Event) Get(key string) (string, bool) {
	for _, p := range e.Props {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Format renders the byte-exact wire message: "<action>@<devpath>\0" then
// one "KEY=VALUE\0" record per property, in order.
func Format(e Event) []byte {
	var buf bytes.Buffer
	buf.WriteString(e.Action)
	buf.WriteByte('@')
	buf.WriteString(e.Devpath)
	buf.WriteByte(0)
	for _, p := range e.Props {
		buf.WriteString(p.Key)
		buf.WriteByte('=')
		buf.WriteString(p.Value)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// Parse decodes a raw netlink uevent payload into an Event.
func Parse(msg []byte) (Event, error) {
	parts := strings.Split(string(msg), "\x00")
	if len(parts) == 0 || parts[0] == "" {
		return Event{}, vuerr.New(vuerr.ClientProtocol, "empty uevent payload")
	}

	header := parts[0]
	at := strings.IndexByte(header, '@')
	if at < 0 {
		return Event{}, vuerr.New(vuerr.ClientProtocol, "uevent header %q missing '@'", header)
	}

	event := Event{Action: header[:at], Devpath: header[at+1:]}
	for _, kv := range parts[1:] {
		if kv == "" {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		event.Props = append(event.Props, Prop{Key: kv[:eq], Value: kv[eq+1:]})
	}
	return event, nil
}

// AddEventProps builds the mandatory property set for an "add" record on
// devpath, per the daemon's external-interface contract: ACTION, DEVPATH,
// SUBSYSTEM, SEQNUM always; DEVNAME/MAJOR/MINOR additionally for the evdev
// child node.
func AddEventProps(devpath, subsystem string, seqnum uint64, devname string, major, minor uint32) []Prop {
	props := []Prop{
		{"ACTION", "add"},
		{"DEVPATH", devpath},
		{"SUBSYSTEM", subsystem},
		{"SEQNUM", fmt.Sprintf("%d", seqnum)},
	}
	if devname != "" {
		props = append(props,
			Prop{"DEVNAME", devname},
			Prop{"MAJOR", fmt.Sprintf("%d", major)},
			Prop{"MINOR", fmt.Sprintf("%d", minor)},
		)
	}
	return props
}

// RemoveEventProps mirrors AddEventProps for a "remove" record.
func RemoveEventProps(devpath, subsystem string, seqnum uint64) []Prop {
	return []Prop{
		{"ACTION", "remove"},
		{"DEVPATH", devpath},
		{"SUBSYSTEM", subsystem},
		{"SEQNUM", fmt.Sprintf("%d", seqnum)},
	}
}
