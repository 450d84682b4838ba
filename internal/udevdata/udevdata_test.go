package udevdata

import "testing"

func TestCleanStripsSeatTagsAndRenamesVuinputProps(t *testing.T) {
	input := `I:16429403327735
E:ID_VUINPUT_KEYBOARD=1
E:ID_INPUT=1
E:ID_INPUT_KEY=1
E:ID_SERIAL=noserial
E:ID_SEAT=seat_vuinput
G:seat_vuinput
G:power-switch
Q:seat_vuinput
Q:power-switch
V:1`

	want := `I:16429403327735
E:ID_INPUT_KEYBOARD=1
E:ID_INPUT=1
E:ID_INPUT_KEY=1
E:ID_SERIAL=noserial
G:power-switch
Q:power-switch
V:1
`

	if got := clean(input); got != want {
		t.Errorf("clean() =\n%q\nwant\n%q", got, want)
	}
}

func TestCleanRenamesMouseProperty(t *testing.T) {
	input := "E:ID_VUINPUT_MOUSE=1"
	want := "E:ID_INPUT_MOUSE=1\n"
	if got := clean(input); got != want {
		t.Errorf("clean() = %q, want %q", got, want)
	}
}

func TestCleanDropsEmptyLines(t *testing.T) {
	input := "I:1\n\nV:1"
	want := "I:1\nV:1\n"
	if got := clean(input); got != want {
		t.Errorf("clean() = %q, want %q", got, want)
	}
}

func TestPathFormat(t *testing.T) {
	if got := path(13, 70); got != "/run/udev/data/c13:70" {
		t.Errorf("path() = %q", got)
	}
}
