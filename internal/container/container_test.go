package container

import (
	"context"
	"testing"
	"time"

	"github.com/vuinput/vuinputd/internal/types"
)

func TestLookupOrCreateReturnsSameContainerForSameID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := types.NewContainerID(1, 2)
	first := LookupOrCreate(ctx, id)
	second := LookupOrCreate(ctx, id)

	if first != second {
		t.Errorf("expected LookupOrCreate to return the same *Container for the same id")
	}
}

func TestContainerUntrackedOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	id := types.NewContainerID(3, 4)

	c := LookupOrCreate(ctx, id)
	if c.Gone() {
		t.Fatalf("container should not be gone before cancellation")
	}

	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.Gone() {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if !c.Gone() {
		t.Errorf("expected container to be marked gone after its context was cancelled")
	}
	if _, ok := Lookup(id); ok {
		t.Errorf("expected container to be untracked from the registry after cancellation")
	}
}
