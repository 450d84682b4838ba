// Package dispatcher serializes device-lifecycle mutations per target:
// one FIFO goroutine per Host/BackgroundLoop/Container target, spawned
// lazily on first enqueue (the same lazy-map-entry shape internal/
// container's registry uses for its own bookkeeping).
package dispatcher

import (
	"context"
	"sync"

	"github.com/vuinput/vuinputd/internal/vlog"
)

// Job is one unit of dispatcher-serialized work. ctx is cancelled if the
// dispatcher is shutting down; a job should treat that as an instruction
// to abandon cleanly, not as a normal error.
type Job func(ctx context.Context) error

type enqueued struct {
	job  Job
	done chan error
}

// Dispatcher owns the set of per-target FIFO queues. The zero value is not
// usable; construct with New.
type Dispatcher struct {
	ctx context.Context

	mu     sync.Mutex
	queues map[string]chan enqueued
}

// New returns a Dispatcher whose per-target loops run until ctx is
// cancelled.
func New(ctx context.Context) *Dispatcher {
	return &Dispatcher{
		ctx:    ctx,
		queues: make(map[string]chan enqueued),
	}
}

// Enqueue schedules job on target's FIFO, spawning the target's loop if
// this is its first job, and returns a channel that receives exactly one
// value (nil on success) once the job runs.
func (d *Dispatcher) Enqueue(target Target, job Job) <-chan error {
	done := make(chan error, 1)
	key := target.key()

	d.mu.Lock()
	ch, ok := d.queues[key]
	if !ok {
		ch = make(chan enqueued, 64)
		d.queues[key] = ch
		go d.run(key, ch)
	}
	d.mu.Unlock()

	ch <- enqueued{job: job, done: done}
	return done
}

func (d *Dispatcher) run(key string, ch chan enqueued) {
	for {
		select {
		case <-d.ctx.Done():
			return
		case item := <-ch:
			err := item.job(d.ctx)
			if err != nil {
				vlog.Warnf("job on target %q failed: %v", key, err)
			}
			item.done <- err
		}
	}
}
