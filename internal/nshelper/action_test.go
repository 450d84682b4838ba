package nshelper

import (
	"testing"

	"github.com/vuinput/vuinputd/internal/types"
)

func TestEncodeDecodeRoundTrips(t *testing.T) {
	original := Action{
		Kind:  MknodDevice,
		Path:  "/dev/input/event7",
		Major: types.Major(13),
		Minor: types.Minor(70),
	}

	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Kind != original.Kind || decoded.Path != original.Path ||
		decoded.Major != original.Major || decoded.Minor != original.Minor {
		t.Errorf("decoded action %+v, want %+v", decoded, original)
	}
}

func TestDecodeRejectsInvalidBase64(t *testing.T) {
	if _, err := Decode("not valid base64!!"); err == nil {
		t.Fatal("expected an error decoding invalid base64")
	}
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	encoded := "bm90IGpzb24=" // "not json"
	if _, err := Decode(encoded); err == nil {
		t.Fatal("expected an error decoding non-JSON payload")
	}
}

func TestEncodeDecodePreservesUeventRecords(t *testing.T) {
	original := Action{
		Kind: SendUevent,
		UeventRecords: []UeventRecord{
			{
				Action:    "add",
				Devpath:   "/devices/virtual/input/input3",
				Subsystem: "input",
				Props: []Prop{
					{Key: "SUBSYSTEM", Value: "input"},
					{Key: "SEQNUM", Value: "42"},
				},
			},
			{
				Action:    "add",
				Devpath:   "/devices/virtual/input/input3/event7",
				Subsystem: "input",
			},
		},
	}

	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.UeventRecords) != 2 || decoded.UeventRecords[0].Props[0].Key != "SUBSYSTEM" {
		t.Errorf("decoded records %+v, want original order preserved", decoded.UeventRecords)
	}
}
