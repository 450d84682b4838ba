package nshelper

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/vuinput/vuinputd/internal/types"
	"github.com/vuinput/vuinputd/internal/udevdata"
	"github.com/vuinput/vuinputd/internal/uevent"
	"github.com/vuinput/vuinputd/internal/vuerr"
)

// ExitCode values the re-exec'd helper process returns; the parent side
// (Spawn) maps these back onto vuerr.Kind so the job that spawned the
// helper can react the same way it would to a local error.
const (
	ExitOK = iota
	ExitNoSuchNamespace
	ExitPermission
	ExitIO
	ExitPolicy
	ExitUnknown
)

// Run is the namespace-switch helper's entire body once the daemon binary
// detects it was re-exec'd for this purpose (nsDir and encoded are sourced
// from the --target-namespace and --action-base64 flags). It enters the
// target namespaces, performs exactly one action, and returns an exit code
// for the caller to pass to os.Exit.
func Run(nsDir, encoded string) int {
	action, err := Decode(encoded)
	if err != nil {
		return ExitUnknown
	}

	mustLockThisThread()
	if err := enterNamespaces(nsDir); err != nil {
		return ExitNoSuchNamespace
	}

	if err := perform(action); err != nil {
		return exitCodeFor(err)
	}
	return ExitOK
}

func perform(a Action) error {
	switch a.Kind {
	case MknodDevice:
		return mknodDevice(a.Path, a.Major, a.Minor)
	case RemoveDevice:
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			return vuerr.Wrap(vuerr.HelperFailed, err, "removing device node %q", a.Path)
		}
		return nil
	case WriteUdevData:
		if err := udevdata.EnsureStructure(); err != nil {
			return err
		}
		return udevdata.Write(a.Major, a.Minor, a.UdevContent)
	case DeleteUdevData:
		return udevdata.Delete(a.Major, a.Minor)
	case SendUevent:
		for _, rec := range a.UeventRecords {
			if err := uevent.Emit("", uevent.Event{
				Action:  rec.Action,
				Devpath: rec.Devpath,
				Props:   toUeventProps(rec.Props),
			}); err != nil {
				return err
			}
		}
		return nil
	default:
		return vuerr.New(vuerr.ClientProtocol, "unknown namespace-helper action %q", a.Kind)
	}
}

// mknodDevice creates the character-device node a container-side process
// expects to open, with the major/minor the host kernel assigned to the
// device's evdev node. It runs after enterNamespaces, so the node lands in the
// target container's mount namespace.
func mknodDevice(path string, major types.Major, minor types.Minor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return vuerr.Wrap(vuerr.HelperFailed, err, "creating parent directory for device node %q", path)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return vuerr.Wrap(vuerr.HelperFailed, err, "removing stale device node %q before mknod", path)
	}

	dev := unix.Mkdev(uint32(major), uint32(minor))
	if err := unix.Mknod(path, unix.S_IFCHR|0660, int(dev)); err != nil {
		return vuerr.Wrap(vuerr.HelperFailed, err, "creating device node %q", path)
	}
	return nil
}

func toUeventProps(props []Prop) []uevent.Prop {
	out := make([]uevent.Prop, len(props))
	for i, p := range props {
		out[i] = uevent.Prop{Key: p.Key, Value: p.Value}
	}
	return out
}

func exitCodeFor(err error) int {
	switch vuerr.KindOf(err) {
	case vuerr.ContainerGone:
		return ExitNoSuchNamespace
	case vuerr.PolicyRejected:
		return ExitPolicy
	default:
		if errno, ok := asErrno(err); ok {
			switch errno {
			case unix.EPERM, unix.EACCES:
				return ExitPermission
			default:
				return ExitIO
			}
		}
		return ExitIO
	}
}

func asErrno(err error) (unix.Errno, bool) {
	for err != nil {
		if errno, ok := err.(unix.Errno); ok {
			return errno, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}
