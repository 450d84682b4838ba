package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vuinput/vuinputd/internal/types"
)

func TestPerTargetJobsRunInEnqueueOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := New(ctx)

	target := ContainerTarget{ID: types.ContainerID("c1")}

	var mu sync.Mutex
	var order []int
	dones := make([]<-chan error, 0, 20)

	for i := 0; i < 20; i++ {
		i := i
		dones = append(dones, d.Enqueue(target, func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}

	for _, done := range dones {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job never completed")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("execution order %v, want strictly increasing", order)
		}
	}
}

func TestDifferentTargetsRunConcurrently(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := New(ctx)

	release := make(chan struct{})
	blocked := d.Enqueue(ContainerTarget{ID: "slow"}, func(ctx context.Context) error {
		<-release
		return nil
	})

	fast := d.Enqueue(ContainerTarget{ID: "fast"}, func(ctx context.Context) error {
		return nil
	})

	select {
	case <-fast:
	case <-time.After(time.Second):
		t.Fatal("a job on an unrelated target was blocked by a slow target's in-flight job")
	}

	close(release)
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("blocked job never completed after release")
	}
}

func TestEnqueueDoesNotBlockOnSlowJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := New(ctx)

	target := ContainerTarget{ID: "c1"}
	release := make(chan struct{})
	d.Enqueue(target, func(ctx context.Context) error {
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		d.Enqueue(target, func(ctx context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked while a prior job on the same target was still running")
	}

	close(release)
}
