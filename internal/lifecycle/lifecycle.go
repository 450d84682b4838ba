// Package lifecycle decides, from a device's intended and observed state,
// what (if anything) needs to happen next. It is kept pure and side-effect
// free so the convergence property can be tested without a kernel, a
// container, or a dispatcher: Reconcile is the single place that knows how
// intended state (what the client wants) and observed state (what the host
// kernel and helper processes have actually achieved) combine into a next
// step.
package lifecycle

import "github.com/vuinput/vuinputd/internal/types"

// Action names the side effect Reconcile wants its caller to run. The
// caller (uinputproto.Handle) is the one that knows how to actually issue
// UI_DEV_CREATE or schedule a removal job; this package only decides which
// one, if any, applies.
type Action int

const (
	// NoAction: intended and observed already agree; nothing to do.
	NoAction Action = iota
	// Create: observed state hasn't caught up to an intended Live yet and
	// no creation is in flight, so one should be started.
	Create
	// Remove: intended state has moved toward Removed (the client closed
	// its handle) but observed state hasn't caught up, so teardown should
	// be scheduled.
	Remove
)

func (a Action) String() string {
	switch a {
	case NoAction:
		return "none"
	case Create:
		return "create"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// Reconcile computes the next observed state and the action that gets
// there, given the device's current intended and observed states.
//
// intended is monotone: once it reaches PendingCleanup or Removed it never
// moves back toward Live (a closed handle is never reopened; a new open()
// gets a new handle and a fresh intended state starting at Nonexistent).
// observed lags but, given enough successful helper runs, converges to
// whatever intended last settled on. Because both sides only ever move
// forward through the same total order (Nonexistent < Creating < Live,
// and independently PendingCleanup < Removed), any interleaving of the
// events driving them converges to the same final observed state — the
// CRDT-like property spec'd for this reconciliation.
//
// ok reports whether intended and observed already agree (nothing further
// will happen without a new external event). Both sides at PendingCleanup
// is not settled: the removal is still in flight, so ok is false.
func Reconcile(intended, observed types.HandleState) (next types.HandleState, action Action, ok bool) {
	if intended == observed && intended != types.PendingCleanup {
		return observed, NoAction, true
	}

	switch intended {
	case types.Live:
		switch observed {
		case types.Nonexistent:
			return types.Creating, Create, false
		case types.Creating:
			// Creation already in flight; nothing new to do until the
			// host kernel/helper runs report back.
			return types.Creating, NoAction, false
		default:
			return observed, NoAction, true
		}

	case types.PendingCleanup, types.Removed:
		switch observed {
		case types.Removed:
			return types.Removed, NoAction, true
		case types.PendingCleanup:
			// Removal already in flight.
			return types.PendingCleanup, NoAction, false
		default:
			return types.PendingCleanup, Remove, false
		}

	default:
		// intended == Nonexistent or Creating never happens: a handle's
		// intended state starts at Live the moment its client issues
		// UI_DEV_CREATE, and nothing asks for a handle to exist without
		// wanting it live.
		return observed, NoAction, true
	}
}
