package vtguard

import (
	"os"
	"testing"
)

func TestDevicePathDefaultsToTty0(t *testing.T) {
	os.Unsetenv("VT")
	if got := devicePath(); got != "/dev/tty0" {
		t.Errorf("devicePath() = %q, want /dev/tty0", got)
	}
}

func TestDevicePathHonorsVTEnv(t *testing.T) {
	t.Setenv("VT", "/dev/tty2")
	if got := devicePath(); got != "/dev/tty2" {
		t.Errorf("devicePath() = %q, want /dev/tty2", got)
	}
}
