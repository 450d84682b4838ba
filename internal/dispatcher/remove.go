package dispatcher

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vuinput/vuinputd/internal/nshelper"
	"github.com/vuinput/vuinputd/internal/types"
	"github.com/vuinput/vuinputd/internal/uevent"
	"github.com/vuinput/vuinputd/internal/vuerr"
)

// RemoveParams mirrors InjectParams for teardown. SysfsPath/EventSysfsPath
// are used only to build the remove uevent records; host kernel removal
// itself already happened via UI_DEV_DESTROY on the backing FD before this
// job runs.
type RemoveParams struct {
	NsDir          string
	DevnodePath    string
	Major          types.Major
	Minor          types.Minor
	SysfsPath      string
	EventSysfsPath string

	// Devname is the published device's name, used only by
	// OnHostRemoveJob to build its bind-mount paths.
	Devname string
}

// RemoveFromContainerJob is InjectInContainerJob's inverse: unlink the
// container-side devnode, delete its udev record, and announce two remove
// uevents. Idempotent — every underlying helper action treats "already
// gone" as success, so running this twice (e.g. once as the cleanup of a
// failed inject and once from release()) converges to the same end state.
func RemoveFromContainerJob(p RemoveParams) Job {
	return func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return spawnAction(gctx, p.NsDir, nshelper.Action{
				Kind: nshelper.RemoveDevice,
				Path: p.DevnodePath,
			})
		})
		g.Go(func() error {
			return spawnAction(gctx, p.NsDir, nshelper.Action{
				Kind:  nshelper.DeleteUdevData,
				Major: p.Major,
				Minor: p.Minor,
			})
		})
		g.Go(func() error {
			return spawnAction(gctx, p.NsDir, nshelper.Action{
				Kind: nshelper.SendUevent,
				UeventRecords: []nshelper.UeventRecord{
					removeRecord(p.EventSysfsPath, "input"),
					removeRecord(p.SysfsPath, "input"),
				},
			})
		})

		if err := g.Wait(); err != nil {
			return vuerr.Wrap(vuerr.HelperFailed, err, "removing device from container")
		}
		return nil
	}
}

// nextSyntheticSeqnum mints SEQNUM values for remove records this daemon
// originates itself, rather than replays from an observed kernel event:
// unlike an "add" record (always a real host uevent forwarded verbatim,
// SEQNUM included), nothing comparable exists for "remove" by the time
// this job runs, since UI_DEV_DESTROY on the backing FD already happened.
var nextSyntheticSeqnum atomic.Uint64

// removeRecord builds a "remove" record carrying the same mandatory
// ACTION/DEVPATH/SUBSYSTEM/SEQNUM keys a real kernel remove uevent would,
// converting uevent.Prop to nshelper.Prop the same way toRecord does for
// forwarded add records.
func removeRecord(devpath, subsystem string) nshelper.UeventRecord {
	wireProps := uevent.RemoveEventProps(devpath, subsystem, nextSyntheticSeqnum.Add(1))
	props := make([]nshelper.Prop, len(wireProps))
	for i, p := range wireProps {
		props[i] = nshelper.Prop{Key: p.Key, Value: p.Value}
	}
	return nshelper.UeventRecord{Action: "remove", Devpath: devpath, Subsystem: subsystem, Props: props}
}
