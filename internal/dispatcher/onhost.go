package dispatcher

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/vuinput/vuinputd/internal/types"
	"github.com/vuinput/vuinputd/internal/vuerr"
)

// onHostPaths mirrors the container-side layout InjectInContainerJob writes
// (a devnode under /dev/input, a udev record under /run/udev/data) under a
// host-visible directory tree instead, for --placement=on-host: the
// operator bind-mounts these two directories into the container themselves
// rather than vuinputd entering its namespaces to write there directly.
func onHostPaths(devname string) (devDir, udevDir string) {
	root := filepath.Join("/run/vuinputd", devname)
	return filepath.Join(root, "dev-input"), filepath.Join(root, "udev")
}

// OnHostInjectJob is InjectInContainerJob's --placement=on-host
// counterpart: same host-add-record wait and the same devnode/udev-data
// content, but written directly by this process under onHostPaths instead
// of fanned out through nshelper.Spawn into a container's namespaces.
func OnHostInjectJob(p InjectParams) Job {
	return func(ctx context.Context) error {
		_, child, err := awaitAddRecords(ctx, p.Store, p.SysfsPath, p.WaitWindow)
		if err != nil {
			return err
		}

		devnodeName := eventBasename(child)
		major, minor, err := deviceNumber(child)
		if err != nil {
			return err
		}

		devDir, udevDir := onHostPaths(p.Devname)
		devnodePath := filepath.Join(devDir, devnodeName)
		if p.OnResolved != nil {
			p.OnResolved(child.Devpath, devnodePath, major, minor)
		}

		if err := writeOnHostDevnode(devnodePath, major, minor); err != nil {
			return err
		}

		udevPath := filepath.Join(udevDir, vuerr.Sprintf("c%d:%d", major, minor))
		if err := os.MkdirAll(udevDir, 0755); err != nil {
			return vuerr.Wrap(vuerr.HelperFailed, err, "creating %s", udevDir)
		}
		if err := os.WriteFile(udevPath, []byte(syntheticUdevRecord(child, p.DeviceClassProp)), 0644); err != nil {
			return vuerr.Wrap(vuerr.HelperFailed, err, "writing on-host udev data %q", udevPath)
		}
		return nil
	}
}

// OnHostRemoveJob is RemoveFromContainerJob's --placement=on-host
// counterpart.
func OnHostRemoveJob(p RemoveParams) Job {
	return func(ctx context.Context) error {
		devDir, udevDir := onHostPaths(p.Devname)

		devnodePath := filepath.Join(devDir, filepath.Base(p.DevnodePath))
		if err := os.Remove(devnodePath); err != nil && !os.IsNotExist(err) {
			return vuerr.Wrap(vuerr.HelperFailed, err, "removing on-host device node %q", devnodePath)
		}

		udevPath := filepath.Join(udevDir, vuerr.Sprintf("c%d:%d", p.Major, p.Minor))
		if err := os.Remove(udevPath); err != nil && !os.IsNotExist(err) {
			return vuerr.Wrap(vuerr.HelperFailed, err, "removing on-host udev data %q", udevPath)
		}
		return nil
	}
}

func writeOnHostDevnode(path string, major types.Major, minor types.Minor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return vuerr.Wrap(vuerr.HelperFailed, err, "creating parent directory for device node %q", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return vuerr.Wrap(vuerr.HelperFailed, err, "removing stale device node %q before mknod", path)
	}
	dev := unix.Mkdev(uint32(major), uint32(minor))
	if err := unix.Mknod(path, unix.S_IFCHR|0660, int(dev)); err != nil {
		return vuerr.Wrap(vuerr.HelperFailed, err, "creating on-host device node %q", path)
	}
	return nil
}
