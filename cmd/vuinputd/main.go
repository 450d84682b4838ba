// vuinputd mediates access to /dev/uinput for containerized clients: it
// publishes a userspace character device, replays the uinput protocol onto
// the real backing device, and propagates created devices into each
// client's container namespace.
//
// Running with --target-namespace set is a distinct mode entirely: the
// process re-execs itself into that mode to perform a single namespace-
// switch helper action and exit, rather than running the daemon. See
// internal/nshelper.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vuinput/vuinputd/internal/chardevice"
	"github.com/vuinput/vuinputd/internal/config"
	"github.com/vuinput/vuinputd/internal/dispatcher"
	"github.com/vuinput/vuinputd/internal/nshelper"
	"github.com/vuinput/vuinputd/internal/uevent"
	"github.com/vuinput/vuinputd/internal/uinputproto"
	"github.com/vuinput/vuinputd/internal/vlog"
	"github.com/vuinput/vuinputd/internal/vtguard"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	if cfg.TargetNamespace != "" {
		os.Exit(nshelper.Run(cfg.TargetNamespace, cfg.ActionBase64))
	}

	if err := vlog.Init(vlog.Options{SentryDSN: cfg.SentryDSN, Debug: cfg.Debug, LogLevel: cfg.LogLevel}); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	os.Exit(run(cfg))
}

// run is the daemon's body, separated from main so the deferred shutdown
// sequence always executes before process exit: cancel the global context
// and undo anything Enable()'d, then stop.
func run(cfg *config.Config) int {
	globalCtx, globalCancel := context.WithCancel(context.Background())

	var guard *vtguard.Guard
	defer func() {
		globalCancel()
		if guard != nil {
			guard.Restore()
		}
	}()

	if cfg.VTGuard {
		g, err := vtguard.Enable()
		if err != nil {
			vlog.Errorf("enabling VT guard: %v", err)
			return 1
		}
		guard = g
	}

	monitor := uevent.NewMonitor()
	d := dispatcher.New(globalCtx)
	d.Enqueue(dispatcher.BackgroundLoopTarget{Name: "udev-monitor"}, dispatcher.MonitorBackgroundLoop(monitor))

	uinputproto.SetDeps(uinputproto.Deps{
		Dispatcher:  d,
		Store:       monitor.Store,
		Policy:      cfg.DevicePolicy,
		Placement:   cfg.Placement,
		JobTimeout:  cfg.JobTimeout,
		Devname:     cfg.Devname,
		BackingPath: "/dev/uinput",
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- chardevice.Serve(cfg.Devname, cfg.Major, cfg.Minor, uinputproto.Handlers())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		vlog.Errorf("character device service exited: %v", err)
		return 1
	case sig := <-sigCh:
		vlog.Infof("received %s, shutting down", sig)
		return 0
	}
}
