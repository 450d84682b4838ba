// Package udevdata maintains the /run/udev/data records that let
// userspace tools like libinput recognize a uinput-created device without
// waiting for udev itself to run its rules against it.
//
// A device created through the front end never runs through the host's
// real udev: there is no physical bus event for udev to react to. So the
// daemon writes the record udev would have written itself, adapted from
// whatever identity-establishing data the client supplied, and removes it
// again when the device goes away.
package udevdata

import (
	"os"
	"strings"

	"github.com/vuinput/vuinputd/internal/types"
	"github.com/vuinput/vuinputd/internal/vuerr"
)

const (
	dataDir    = "/run/udev/data"
	controlFile = "/run/udev/control"
)

// EnsureStructure creates /run/udev/data and /run/udev/control if either is
// missing. It must run before the first device is created: libinput reads
// this structure at its own startup, and creating it lazily on first use
// can be too late for a process that started earlier.
func EnsureStructure() error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return vuerr.Wrap(vuerr.Fatal, err, "creating %s", dataDir)
	}

	if _, err := os.Stat(controlFile); err != nil {
		if !os.IsNotExist(err) {
			return vuerr.Wrap(vuerr.Fatal, err, "statting %s", controlFile)
		}
		f, createErr := os.Create(controlFile)
		if createErr != nil {
			return vuerr.Wrap(vuerr.Fatal, createErr, "creating %s", controlFile)
		}
		f.Close()
	}

	return nil
}

// Write cleans a udev database record (the seat tags a real host's udev
// would normally add don't apply to a device vuinputd created, and the
// client identifies device class with ID_VUINPUT_* properties this record
// translates to the ID_INPUT_* properties other tools expect) and writes
// it to the device's own record file.
func Write(major types.Major, minor types.Minor, content string) error {
	if err := os.WriteFile(path(major, minor), []byte(clean(content)), 0644); err != nil {
		return vuerr.Wrap(vuerr.HelperFailed, err, "writing udev data for c%d:%d", major, minor)
	}
	return nil
}

// Delete removes a device's udev database record.
func Delete(major types.Major, minor types.Minor) error {
	if err := os.Remove(path(major, minor)); err != nil && !os.IsNotExist(err) {
		return vuerr.Wrap(vuerr.HelperFailed, err, "removing udev data for c%d:%d", major, minor)
	}
	return nil
}

func path(major types.Major, minor types.Minor) string {
	return vuerr.Sprintf("%s/c%d:%d", dataDir, major, minor)
}

// clean strips seat-tag lines (G:/Q: device-tag lines naming a seat, and
// any E: line setting ID_SEAT=) and renames the client-facing
// ID_VUINPUT_KEYBOARD/ID_VUINPUT_MOUSE properties to the ID_INPUT_* names
// other udev consumers actually look for.
func clean(content string) string {
	var out strings.Builder
	for _, line := range strings.Split(content, "\n") {
		if line == "" {
			continue
		}
		if strings.Contains(line, "ID_SEAT=") || strings.Contains(line, "seat_") {
			continue
		}
		line = strings.ReplaceAll(line, "ID_VUINPUT_KEYBOARD=1", "ID_INPUT_KEYBOARD=1")
		line = strings.ReplaceAll(line, "ID_VUINPUT_MOUSE=1", "ID_INPUT_MOUSE=1")
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.String()
}
