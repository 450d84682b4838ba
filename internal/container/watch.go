package container

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vuinput/vuinputd/internal/vlog"
)

// pollInterval bounds how quickly a dead init PID is noticed. Polling
// rather than a PID-exit notification (pidfd, wait4) keeps this package
// free of the process-reaping responsibilities owning the init PID would
// imply; vuinputd never started these processes and must not wait() on
// them.
const pollInterval = 2 * time.Second

// WatchPID returns a context that is cancelled once pid's /proc entry
// disappears, polling at pollInterval. Callers pass the returned context
// to LookupOrCreate so a container's record is untracked automatically
// once its init process exits.
func WatchPID(pid uint32) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer cancel()
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for range ticker.C {
			if !pidAlive(pid) {
				vlog.Infof("pid %d no longer present, tearing down its container record", pid)
				return
			}
		}
	}()

	return ctx
}

func pidAlive(pid uint32) bool {
	_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	return err == nil
}
