package dispatcher

import (
	"context"

	"github.com/vuinput/vuinputd/internal/uevent"
)

// MonitorBackgroundLoop wraps a uevent.Monitor's Run as the dispatcher's
// single BackgroundLoopTarget{"udev-monitor"} job. It never returns while
// ctx is live; the dispatcher's per-target loop calls it exactly once and
// blocks there for the daemon's lifetime, the same way a single long job
// occupies a per-container FIFO for as long as it needs to.
func MonitorBackgroundLoop(m *uevent.Monitor) Job {
	return func(ctx context.Context) error {
		return m.Run(ctx)
	}
}
