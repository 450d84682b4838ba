package uinputproto

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/vuinput/vuinputd/internal/chardevice"
	"github.com/vuinput/vuinputd/internal/types"
	"github.com/vuinput/vuinputd/internal/vlog"
)

func TestMain(m *testing.M) {
	vlog.InitDiscard()
	os.Exit(m.Run())
}

func TestCreateFromLiveStateRejected(t *testing.T) {
	h := newHandle()
	h.state = types.Live

	if err := h.create(); err == nil {
		t.Fatal("create() from live state should error")
	}
	if h.state != types.Live {
		t.Errorf("state after rejected create = %s, want live", h.state)
	}
}

func TestCreateFromCreatingStateRejected(t *testing.T) {
	h := newHandle()
	h.state = types.Creating

	if err := h.create(); err == nil {
		t.Fatal("create() while already creating should error")
	}
	if h.state != types.Creating {
		t.Errorf("state after rejected create = %s, want creating", h.state)
	}
}

// TestCreateFailureResetsState drives create() against stdin as a stand-in
// backing FD: it's open but UI_DEV_SETUP on it is never a valid ioctl, so
// overrideIdentity deterministically fails and create() must reset the
// handle back to nonexistent rather than leaving it stuck mid-creation.
func TestCreateFailureResetsState(t *testing.T) {
	h := newHandle()
	h.backingFD = int(os.Stdin.Fd())
	h.containerID = types.ContainerID("test")

	if err := h.create(); err == nil {
		t.Fatal("create() against a non-uinput FD should fail")
	}
	if h.state != types.Nonexistent {
		t.Errorf("state after failed create = %s, want nonexistent", h.state)
	}
}

func TestDestroyAlreadyRemovedIsNoop(t *testing.T) {
	h := newHandle()
	h.state = types.Removed

	if err := h.destroy(); err != nil {
		t.Errorf("destroy() already-removed = %v, want nil", err)
	}
	if h.state != types.Removed {
		t.Errorf("state after no-op destroy = %s, want removed", h.state)
	}
}

// TestDestroyFromNonexistentStillConverges covers a client that issues
// UI_DEV_DESTROY without ever having created a device: the backing ioctl
// fails and is only logged, never surfaced, and the handle still converges
// to removed.
func TestDestroyFromNonexistentStillConverges(t *testing.T) {
	h := newHandle()
	h.backingFD = int(os.Stdin.Fd())
	h.containerID = types.ContainerID("test")

	if err := h.destroy(); err != nil {
		t.Errorf("destroy() from nonexistent = %v, want nil", err)
	}
	if h.state != types.Removed {
		t.Errorf("state after destroy = %s, want removed", h.state)
	}
}

func TestScheduleRemoveSkipsUnpropagatedHandle(t *testing.T) {
	h := newHandle()
	h.containerID = types.ContainerID("test")
	// deps.Dispatcher is nil; if scheduleRemove tried to enqueue anything
	// here it would panic, so a clean return proves the empty-sysfsPath
	// short-circuit fired.
	h.scheduleRemove()
}

func TestBitmapForCoversEveryAccumulator(t *testing.T) {
	h := newHandle()
	nrs := []uint32{
		nrSetEvBit, nrSetKeyBit, nrSetRelBit, nrSetAbsBit, nrSetMscBit,
		nrSetLedBit, nrSetSndBit, nrSetFFBit, nrSetSwBit, nrSetPropBit,
	}
	for _, nr := range nrs {
		set := h.bitmapFor(nr)
		if set == nil {
			t.Errorf("bitmapFor(%d) returned nil", nr)
			continue
		}
		set[1] = true
	}
	if h.bitmapFor(0xffff) != nil {
		t.Error("bitmapFor of an unknown nr should return nil")
	}
}

func TestPolicyAllowsDefersNonFilteredBitsToTrue(t *testing.T) {
	cmd := iocEncode(iocWrite, uinputIoctlType, nrSetLedBit, 4)
	if !(&Handle{}).policyAllows(cmd, 0) {
		t.Error("policyAllows should default to true for bit kinds with no dedicated filter")
	}
}

func TestSetPhysTooSmallRequestsRetry(t *testing.T) {
	h := newHandle()
	cmd := iocEncode(iocWrite, uinputIoctlType, nrSetPhys, 8)

	err := h.setPhys(cmd, make([]byte, 8))
	retry, ok := err.(*chardevice.ErrRetry)
	if !ok {
		t.Fatalf("setPhys() with an 8-byte buffer = %v (%T), want *chardevice.ErrRetry", err, err)
	}
	if retry.Retry.InSize != physRetrySize {
		t.Errorf("retry InSize = %d, want %d", retry.Retry.InSize, physRetrySize)
	}
}

func TestSetPhysAdequateSizeReplays(t *testing.T) {
	h := newHandle()
	h.backingFD = int(os.Stdin.Fd())
	cmd := iocEncode(iocWrite, uinputIoctlType, nrSetPhys, 8)

	buf := make([]byte, physRetrySize)
	copy(buf, "usb-0000:00:14.0-1/input0")

	err := h.setPhys(cmd, buf)
	if _, ok := err.(*chardevice.ErrRetry); ok {
		t.Fatalf("setPhys() with a %d-byte buffer asked for another retry, want a direct replay attempt", physRetrySize)
	}
	if err == nil {
		t.Fatal("setPhys() against stdin as a stand-in backing FD should fail (not a real uinput device), got nil")
	}
}

func TestDeviceClassPropMouse(t *testing.T) {
	h := newHandle()
	h.keyBits[0x110] = true // BTN_LEFT
	if got := h.deviceClassProp(); got != "ID_VUINPUT_MOUSE=1" {
		t.Errorf("deviceClassProp() = %q, want ID_VUINPUT_MOUSE=1", got)
	}
}

func TestDeviceClassPropKeyboard(t *testing.T) {
	h := newHandle()
	h.keyBits[0x1e] = true // KEY_A
	if got := h.deviceClassProp(); got != "ID_VUINPUT_KEYBOARD=1" {
		t.Errorf("deviceClassProp() = %q, want ID_VUINPUT_KEYBOARD=1", got)
	}
}

func TestDeviceClassPropUnknown(t *testing.T) {
	h := newHandle()
	if got := h.deviceClassProp(); got != "" {
		t.Errorf("deviceClassProp() on a bare handle = %q, want empty", got)
	}
}

func TestLogWriteErrorDedupsRepeatedErrno(t *testing.T) {
	h := newHandle()
	h.logWriteError(unix.EIO)
	if h.lastWriteErrno != unix.EIO {
		t.Fatalf("lastWriteErrno = %v, want %v", h.lastWriteErrno, unix.EIO)
	}
	h.logWriteError(unix.EIO)
	if h.lastWriteErrno != unix.EIO {
		t.Fatalf("lastWriteErrno after repeat = %v, want unchanged %v", h.lastWriteErrno, unix.EIO)
	}
}

func TestSysfsBasename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/devices/virtual/input/input3", "input3"},
		{"input3", "input3"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sysfsBasename(tt.in); got != tt.want {
			t.Errorf("sysfsBasename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCString(t *testing.T) {
	buf := make([]byte, 8)
	copy(buf, "event7")
	if got := cString(buf); got != "event7" {
		t.Errorf("cString() = %q, want event7", got)
	}
}

func TestEncodeU32(t *testing.T) {
	got := encodeU32(5)
	if len(got) != 4 || got[0] != 5 || got[1] != 0 || got[2] != 0 || got[3] != 0 {
		t.Errorf("encodeU32(5) = %v, want little-endian [5 0 0 0]", got)
	}
}
