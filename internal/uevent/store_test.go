package uevent

import (
	"fmt"
	"testing"
	"time"
)

func TestStorePushAndRecent(t *testing.T) {
	store := NewStore()
	store.Push(Event{Action: "add", Devpath: "/devices/virtual/input/input3"})
	store.Push(Event{Action: "add", Devpath: "/devices/virtual/input/input3/event7"})
	store.Push(Event{Action: "add", Devpath: "/devices/other/thing"})

	got := store.Recent("/devices/virtual/input/input3")
	if len(got) != 2 {
		t.Fatalf("got %d matching entries, want 2", len(got))
	}
}

func TestStoreEvictsOldestWhenFull(t *testing.T) {
	store := NewStore()
	for i := 0; i < ringSize+5; i++ {
		store.Push(Event{Action: "add", Devpath: fmt.Sprintf("/devices/virtual/input/input%d", i)})
	}

	if got := store.Recent("/devices/virtual/input/input0"); len(got) != 0 {
		t.Errorf("expected the oldest entry to have been evicted, found %d matches", len(got))
	}
	if got := store.Recent(fmt.Sprintf("/devices/virtual/input/input%d", ringSize+4)); len(got) != 1 {
		t.Errorf("expected the newest entry to still be present, found %d matches", len(got))
	}
}

func TestWaitWakesOnMatchingPush(t *testing.T) {
	store := NewStore()
	ch := store.Wait("/devices/virtual/input/input9")

	go store.Push(Event{Action: "add", Devpath: "/devices/virtual/input/input9/event1"})

	select {
	case e := <-ch:
		if e.Devpath != "/devices/virtual/input/input9/event1" {
			t.Errorf("got devpath %q", e.Devpath)
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait channel never received a matching event")
	}
}

func TestWaitReturnsAlreadyStoredEvent(t *testing.T) {
	store := NewStore()
	store.Push(Event{Action: "add", Devpath: "/devices/virtual/input/input5"})

	ch := store.Wait("/devices/virtual/input/input5")
	select {
	case e := <-ch:
		if e.Devpath != "/devices/virtual/input/input5" {
			t.Errorf("got devpath %q", e.Devpath)
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait should have returned an already-stored matching event immediately")
	}
}
