package dispatcher

import "github.com/vuinput/vuinputd/internal/types"

// Target names the FIFO a job runs on. It is a closed sum type: the three
// variants below are the only ones that exist, matched by key().
type Target interface {
	key() string
}

// HostTarget is for one-off host-wide work with no per-container affinity.
type HostTarget struct{}

func (HostTarget) key() string { return "host" }

// BackgroundLoopTarget is for long-running tasks like the udev monitor,
// scheduled independently of any container's queue.
type BackgroundLoopTarget struct {
	Name string
}

func (t BackgroundLoopTarget) key() string { return "background:" + t.Name }

// ContainerTarget serializes all lifecycle operations for one container.
type ContainerTarget struct {
	ID types.ContainerID
}

func (t ContainerTarget) key() string { return "container:" + string(t.ID) }
