package dispatcher

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vuinput/vuinputd/internal/nshelper"
	"github.com/vuinput/vuinputd/internal/types"
	"github.com/vuinput/vuinputd/internal/uevent"
	"github.com/vuinput/vuinputd/internal/vuerr"
)

// InjectParams fully specifies an InjectInContainerJob; built by
// uinputproto at UI_DEV_CREATE time from the handle's accumulated state.
type InjectParams struct {
	NsDir     string
	SysfsPath string // e.g. "/devices/virtual/input/input3"

	// Devname is the published device's name, used only by
	// OnHostInjectJob to build its bind-mount paths.
	Devname string

	// DeviceClassProp is the client-facing ID_VUINPUT_* property
	// (e.g. "ID_VUINPUT_KEYBOARD=1") the udev record should carry, as
	// classified by uinputproto from the handle's accumulated capability
	// bits. Empty if the device doesn't fit one of the known classes.
	DeviceClassProp string

	// OnResolved is called once the kernel's own child "add" record names
	// the real eventN node and device number, before the namespace helpers
	// run, so the caller can remember everything RemoveFromContainerJob
	// will need later. May be nil.
	OnResolved func(eventSysfsPath, devnodePath string, major types.Major, minor types.Minor)

	Store      *uevent.Store
	WaitWindow time.Duration

	// Dispatcher and Target let the job enqueue a compensating
	// RemoveFromContainerJob on itself when only part of the fan-out
	// succeeds, instead of leaving a half-propagated device behind. Both
	// are nil-safe to omit only in tests that don't exercise the failure
	// path.
	Dispatcher *Dispatcher
	Target     Target
}

// spawnAction is nshelper.Spawn by default; tests swap it for a fake that
// records actions instead of re-execing a real namespace-switch helper.
var spawnAction = nshelper.Spawn

// InjectInContainerJob builds the job that propagates a newly created
// host device into its container: waits for the kernel's own add records,
// then fans out three namespace-helper invocations (mknod, udev data,
// netlink) to recreate the device's presence container-side.
func InjectInContainerJob(p InjectParams) Job {
	return func(ctx context.Context) error {
		parent, child, err := awaitAddRecords(ctx, p.Store, p.SysfsPath, p.WaitWindow)
		if err != nil {
			return err
		}

		devnodePath := "/dev/input/" + eventBasename(child)
		major, minor, err := deviceNumber(child)
		if err != nil {
			return err
		}
		if p.OnResolved != nil {
			p.OnResolved(child.Devpath, devnodePath, major, minor)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return spawnAction(gctx, p.NsDir, nshelper.Action{
				Kind:  nshelper.MknodDevice,
				Path:  devnodePath,
				Major: major,
				Minor: minor,
			})
		})
		g.Go(func() error {
			return spawnAction(gctx, p.NsDir, nshelper.Action{
				Kind:        nshelper.WriteUdevData,
				Major:       major,
				Minor:       minor,
				UdevContent: syntheticUdevRecord(child, p.DeviceClassProp),
			})
		})
		g.Go(func() error {
			return spawnAction(gctx, p.NsDir, nshelper.Action{
				Kind:          nshelper.SendUevent,
				UeventRecords: []nshelper.UeventRecord{toRecord(parent), toRecord(child)},
			})
		})

		if err := g.Wait(); err != nil {
			if p.Dispatcher != nil {
				p.Dispatcher.Enqueue(p.Target, RemoveFromContainerJob(RemoveParams{
					NsDir:          p.NsDir,
					DevnodePath:    devnodePath,
					Major:          major,
					Minor:          minor,
					SysfsPath:      p.SysfsPath,
					EventSysfsPath: child.Devpath,
				}))
			}
			return vuerr.Wrap(vuerr.HelperFailed, err, "injecting device into container")
		}
		return nil
	}
}

// awaitAddRecords blocks until both the parent inputX and its eventN
// child have an "add" record in store, or window elapses.
func awaitAddRecords(ctx context.Context, store *uevent.Store, sysfsPath string, window time.Duration) (parent, child uevent.Event, err error) {
	deadlineCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	parentCh := store.Wait(sysfsPath)
	childCh := store.Wait(sysfsPath + "/")

	var haveParent, haveChild bool
	for !haveParent || !haveChild {
		select {
		case e := <-parentCh:
			if e.Devpath == sysfsPath && e.Action == "add" {
				parent = e
				haveParent = true
			}
		case e := <-childCh:
			if e.Action == "add" {
				child = e
				haveChild = true
			}
		case <-deadlineCtx.Done():
			return uevent.Event{}, uevent.Event{}, vuerr.New(vuerr.Timeout, "timed out waiting for host add records under %q", sysfsPath)
		}
	}
	return parent, child, nil
}

// eventBasename returns the eventN name of the node: the last path
// segment of the kernel's own DEVNAME property (which for evdev nodes
// reads "input/eventN"), or of DEVPATH when DEVNAME is absent.
func eventBasename(e uevent.Event) string {
	path := e.Devpath
	if devname, ok := e.Get("DEVNAME"); ok {
		path = devname
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// deviceNumber reads the MAJOR/MINOR properties the kernel attaches to
// every device-add uevent; these are the only authoritative source for a
// device's numbers (the backing FD's own fstat reports /dev/uinput's
// number, not the child evdev node's).
func deviceNumber(e uevent.Event) (types.Major, types.Minor, error) {
	majorStr, ok := e.Get("MAJOR")
	if !ok {
		return 0, 0, vuerr.New(vuerr.BackingKernel, "add record for %q missing MAJOR", e.Devpath)
	}
	minorStr, ok := e.Get("MINOR")
	if !ok {
		return 0, 0, vuerr.New(vuerr.BackingKernel, "add record for %q missing MINOR", e.Devpath)
	}
	major, err := strconv.ParseUint(majorStr, 10, 32)
	if err != nil {
		return 0, 0, vuerr.Wrap(vuerr.BackingKernel, err, "parsing MAJOR for %q", e.Devpath)
	}
	minor, err := strconv.ParseUint(minorStr, 10, 32)
	if err != nil {
		return 0, 0, vuerr.Wrap(vuerr.BackingKernel, err, "parsing MINOR for %q", e.Devpath)
	}
	return types.Major(major), types.Minor(minor), nil
}

func toRecord(e uevent.Event) nshelper.UeventRecord {
	subsystem, _ := e.Get("SUBSYSTEM")
	props := make([]nshelper.Prop, len(e.Props))
	for i, p := range e.Props {
		props[i] = nshelper.Prop{Key: p.Key, Value: p.Value}
	}
	return nshelper.UeventRecord{Action: e.Action, Devpath: e.Devpath, Subsystem: subsystem, Props: props}
}

// syntheticUdevRecord builds the minimal udev database record libinput and
// friends expect for the evdev child node, in the same "I:"/"E:"/"V:"
// line format the host's own udev would have written.
func syntheticUdevRecord(child uevent.Event, deviceClassProp string) string {
	var out string
	out += "I:0\n"
	for _, p := range child.Props {
		if p.Key == "ACTION" || p.Key == "DEVPATH" || p.Key == "SEQNUM" {
			continue
		}
		out += "E:" + p.Key + "=" + p.Value + "\n"
	}
	if deviceClassProp != "" {
		out += "E:" + deviceClassProp + "\n"
	}
	out += "V:1\n"
	return out
}
