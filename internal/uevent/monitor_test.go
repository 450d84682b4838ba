package uevent

import "testing"

func TestRelevantFiltersBySubsystemAndPrefix(t *testing.T) {
	var relevantTests = []struct {
		name string
		e    Event
		want bool
	}{
		{"input under virtual input", Event{Devpath: "/devices/virtual/input/input3", Props: []Prop{{"SUBSYSTEM", "input"}}}, true},
		{"input outside virtual input", Event{Devpath: "/devices/pci0000:00/input3", Props: []Prop{{"SUBSYSTEM", "input"}}}, false},
		{"non-input subsystem", Event{Devpath: "/devices/virtual/input/input3", Props: []Prop{{"SUBSYSTEM", "usb"}}}, false},
	}

	for _, tt := range relevantTests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relevant(tt.e); got != tt.want {
				t.Errorf("relevant() = %v, want %v", got, tt.want)
			}
		})
	}
}
