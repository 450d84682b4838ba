package uinputproto

import "github.com/vuinput/vuinputd/internal/types"

// Keyboard key codes from input-event-codes.h that matter to policy
// filtering. Named individually rather than as a range because the ranges
// that matter (SysRq, VT switch) aren't contiguous with joystick/gamepad
// codes in the kernel's numbering.
const (
	keySysRq = 0x63

	keyF1  = 0x3b
	keyF10 = 0x44
	keyF11 = 0x57
	keyF12 = 0x58
)

// The btn*Min/Max and abs*Min/Max pairs below bound the code ranges
// strict-gamepad admits, per input-event-codes.h's BTN_JOYSTICK/BTN_GAMEPAD
// and ABS_HAT0X.. ranges.
const (
	btnJoystickMin = 0x120
	btnJoystickMax = 0x12f
	btnGamepadMin  = 0x130
	btnGamepadMax  = 0x13e
	btnTriggerHappyMin = 0x2c0
	btnTriggerHappyMax = 0x2e7

	absHat0XMin = 0x10
	absHat3YMax = 0x17
	absXMin     = 0x00
	absRZMax    = 0x08
)

// allowEvBit reports whether policy permits the client to even set the
// EV_* capability bit, independent of any specific code within it.
func allowEvBit(policy types.DevicePolicy, evType uint16) bool {
	switch policy {
	case types.PolicyStrictGamepad:
		switch evType {
		case EvKey, EvAbs, EvSyn, EvFF:
			return true
		default:
			return false
		}
	default:
		return true
	}
}

// allowKeyBit reports whether policy permits a specific KEY_*/BTN_* code to
// reach the backing FD's UI_SET_KEYBIT.
func allowKeyBit(policy types.DevicePolicy, code uint16) bool {
	switch policy {
	case types.PolicyNone:
		return true
	case types.PolicyMuteSysRq:
		return code != keySysRq
	case types.PolicySanitized:
		if code == keySysRq {
			return false
		}
		if isVTSwitchCombo(code) {
			return false
		}
		return true
	case types.PolicyStrictGamepad:
		return isGamepadButton(code)
	default:
		return true
	}
}

// allowAbsBit reports whether policy permits a specific ABS_* code to reach
// the backing FD's UI_SET_ABSBIT.
func allowAbsBit(policy types.DevicePolicy, code uint16) bool {
	if policy != types.PolicyStrictGamepad {
		return true
	}
	return code >= absXMin && code <= absRZMax || code >= absHat0XMin && code <= absHat3YMax
}

// isVTSwitchCombo strips the F1..F12 codes: the kernel's VT switch triggers
// on Ctrl+Alt+Fn, so denying capability for the function keys themselves is
// sufficient without also denying plain Ctrl/Alt, which sanitized clients
// still need for ordinary typing.
func isVTSwitchCombo(code uint16) bool {
	// F1..F10 are contiguous, but F11/F12 sit after the keypad block.
	return code >= keyF1 && code <= keyF10 || code == keyF11 || code == keyF12
}

func isGamepadButton(code uint16) bool {
	return code >= btnJoystickMin && code <= btnJoystickMax ||
		code >= btnGamepadMin && code <= btnGamepadMax ||
		code >= btnTriggerHappyMin && code <= btnTriggerHappyMax
}
