package uevent

import (
	"sync"

	"github.com/vuinput/vuinputd/internal/vlog"
)

// ringSize bounds the store the way ttys.go bounds its TTY pool: a fixed
// capacity with the oldest entries evicted first, rather than unbounded
// growth.
const ringSize = 128

// Store is the host monitor's ordered buffer of recently observed add/
// remove records, with waiter registration for jobs blocked on a specific
// sysfs prefix appearing. Single-writer (the monitor loop), multi-reader.
type Store struct {
	lock    sync.Mutex
	entries []Event
	next    int
	full    bool

	waiters []waiter
}

type waiter struct {
	prefix string
	ch     chan Event
}

// NewStore allocates an empty ring.
func NewStore() *Store {
	return &Store{entries: make([]Event, ringSize)}
}

// Push records an event, evicting the oldest entry if the ring is full,
// and wakes any waiter whose prefix matches the event's devpath.
func (s *Store) Push(e Event) {
	s.lock.Lock()
	wrapping := s.full && s.next == ringSize-1
	s.entries[s.next] = e
	s.next = (s.next + 1) % ringSize
	if s.next == 0 {
		s.full = true
	}
	if wrapping {
		recentDevpaths := make([]string, 0, 5)
		for i := 0; i < 5; i++ {
			recentDevpaths = append(recentDevpaths, s.entries[(s.next-1-i+ringSize)%ringSize].Devpath)
		}
		vlog.DedupedWarnf("uevent-store-overflow", "uevent ring full, dropping oldest entries; most recent: %s", joinOrdered(recentDevpaths, len(recentDevpaths)))
	}

	var matched []waiter
	remaining := s.waiters[:0]
	for _, w := range s.waiters {
		if matchesPrefix(e.Devpath, w.prefix) {
			matched = append(matched, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	s.waiters = remaining
	s.lock.Unlock()

	for _, w := range matched {
		w.ch <- e
	}
}

// Recent returns a snapshot of stored events with the given devpath
// prefix, oldest first.
func (s *Store) Recent(prefix string) []Event {
	s.lock.Lock()
	defer s.lock.Unlock()

	var out []Event
	n := s.next
	start := 0
	if s.full {
		start = n
	}
	count := n
	if s.full {
		count = ringSize
	}

	for i := 0; i < count; i++ {
		idx := (start + i) % ringSize
		e := s.entries[idx]
		if matchesPrefix(e.Devpath, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Wait registers a one-shot waiter for the next event whose devpath has
// the given prefix, first checking whether one has already arrived. The
// returned channel delivers exactly one Event.
func (s *Store) Wait(prefix string) <-chan Event {
	ch := make(chan Event, 1)

	s.lock.Lock()
	n := s.next
	start := 0
	if s.full {
		start = n
	}
	count := n
	if s.full {
		count = ringSize
	}
	for i := 0; i < count; i++ {
		idx := (start + i) % ringSize
		e := s.entries[idx]
		if matchesPrefix(e.Devpath, prefix) {
			s.lock.Unlock()
			ch <- e
			return ch
		}
	}
	s.waiters = append(s.waiters, waiter{prefix: prefix, ch: ch})
	s.lock.Unlock()

	return ch
}

func matchesPrefix(devpath, prefix string) bool {
	if len(devpath) < len(prefix) {
		return false
	}
	return devpath[:len(prefix)] == prefix
}
