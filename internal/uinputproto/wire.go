// Package uinputproto replays the uinput ioctl/write/read protocol from a
// container-visible handle onto the real host /dev/uinput, accumulating
// each handle's requested configuration and applying device policy before
// anything reaches the backing kernel.
package uinputproto

import "syscall"

// ioctl command-number encoding, translated by hand from
// asm-generic/ioctl.h, field for field, rather than pulled in from cgo.
const (
	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func iocEncode(dir, typ, nr, size uint32) uint32 {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNrShift) | (size << iocSizeShift)
}

func iocNr(cmd uint32) uint32   { return (cmd >> iocNrShift) & ((1 << iocNrBits) - 1) }
func iocType(cmd uint32) uint32 { return (cmd >> iocTypeShift) & ((1 << iocTypeBits) - 1) }
func iocSize(cmd uint32) uint32 { return (cmd >> iocSizeShift) & ((1 << iocSizeBits) - 1) }
func iocDir(cmd uint32) uint32  { return (cmd >> iocDirShift) & 3 }

const uinputIoctlType = 0x55 // 'U', UINPUT_IOCTL_BASE

// Numeric request codes (the "nr" field of a uinput ioctl command), used to
// dispatch without needing to reconstruct every command's exact size bits.
const (
	nrDevCreate  = 1
	nrDevDestroy = 2
	nrDevSetup   = 3
	nrAbsSetup   = 4

	nrSetEvBit   = 100
	nrSetKeyBit  = 101
	nrSetRelBit  = 102
	nrSetAbsBit  = 103
	nrSetMscBit  = 104
	nrSetLedBit  = 105
	nrSetSndBit  = 106
	nrSetFFBit   = 107
	nrSetPhys    = 108
	nrSetSwBit   = 109
	nrSetPropBit = 110

	nrBeginFFUpload = 200
	nrEndFFUpload   = 201
	nrBeginFFErase  = 202
	nrEndFFErase    = 203

	nrGetVersion = 45
	nrGetSysname = 44
)

// UIDevCreate and UIDevDestroy take no argument.
var (
	UIDevCreate  = iocEncode(iocNone, uinputIoctlType, nrDevCreate, 0)
	UIDevDestroy = iocEncode(iocNone, uinputIoctlType, nrDevDestroy, 0)
	UIGetVersion = iocEncode(iocRead, uinputIoctlType, nrGetVersion, 4)
)

// UIGetSysname computes the command for a given reply buffer length, since
// the real macro is parameterized on the caller's buffer size.
func UIGetSysname(len uint32) uint32 {
	return iocEncode(iocRead, uinputIoctlType, nrGetSysname, len)
}

// setBitNrs are the "set a capability bit" ioctls: the argument is the bit
// number itself, passed by value, not a pointer to a buffer.
var setBitNrs = map[uint32]bool{
	nrSetEvBit:   true,
	nrSetKeyBit:  true,
	nrSetRelBit:  true,
	nrSetAbsBit:  true,
	nrSetMscBit:  true,
	nrSetLedBit:  true,
	nrSetSndBit:  true,
	nrSetFFBit:   true,
	nrSetSwBit:   true,
	nrSetPropBit: true,
}

func isSetBit(cmd uint32) bool {
	return iocType(cmd) == uinputIoctlType && setBitNrs[iocNr(cmd)]
}

func isFFUploadOrErase(cmd uint32) bool {
	if iocType(cmd) != uinputIoctlType {
		return false
	}
	switch iocNr(cmd) {
	case nrBeginFFUpload, nrEndFFUpload, nrBeginFFErase, nrEndFFErase:
		return true
	}
	return false
}

// InputID mirrors struct input_id.
type InputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

const uinputMaxNameSize = 80

// DeviceSetup mirrors struct uinput_setup, the payload of UI_DEV_SETUP.
type DeviceSetup struct {
	ID           InputID
	Name         [uinputMaxNameSize]byte
	FFEffectsMax uint32
}

// AbsInfo mirrors struct input_absinfo.
type AbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// AbsSetup mirrors struct uinput_abs_setup, the payload of UI_ABS_SETUP.
type AbsSetup struct {
	Code    uint16
	_       uint16
	AbsInfo AbsInfo
}

// InputEvent mirrors the native (64-bit time_t) struct input_event.
type InputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// Input event types, from input-event-codes.h. Only the ones policy and
// accumulator bookkeeping need are named.
const (
	EvSyn = 0x00
	EvKey = 0x01
	EvRel = 0x02
	EvAbs = 0x03
	EvMsc = 0x04
	EvSw  = 0x05
	EvLed = 0x11
	EvSnd = 0x12
	EvFF  = 0x15
)

// Fixed device identity the daemon assigns unless policy overrides it.
const (
	FixedBustype = 0x03 // BUS_USB
	FixedVendor  = 0x1209
	FixedProduct = 0x5020
)
