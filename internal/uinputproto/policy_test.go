package uinputproto

import (
	"testing"

	"github.com/vuinput/vuinputd/internal/types"
)

func TestStrictGamepadRejectsKeyboardCodes(t *testing.T) {
	keyboardCodes := []uint16{0x1e /* KEY_A */, keySysRq, keyF1}
	for _, code := range keyboardCodes {
		if allowKeyBit(types.PolicyStrictGamepad, code) {
			t.Errorf("strict-gamepad should reject keyboard code 0x%x", code)
		}
	}
}

func TestStrictGamepadAcceptsGamepadCodes(t *testing.T) {
	gamepadCodes := []uint16{btnJoystickMin, btnGamepadMin, btnTriggerHappyMax}
	for _, code := range gamepadCodes {
		if !allowKeyBit(types.PolicyStrictGamepad, code) {
			t.Errorf("strict-gamepad should accept gamepad code 0x%x", code)
		}
	}
}

func TestMuteSysRqStripsOnlySysRq(t *testing.T) {
	if allowKeyBit(types.PolicyMuteSysRq, keySysRq) {
		t.Errorf("mute-sys-rq should reject KEY_SYSRQ")
	}
	if !allowKeyBit(types.PolicyMuteSysRq, 0x1e /* KEY_A */) {
		t.Errorf("mute-sys-rq should accept KEY_A")
	}
}

func TestSanitizedStripsSysRqAndVTKeys(t *testing.T) {
	var sanitizedTests = []struct {
		name string
		code uint16
		want bool
	}{
		{"KEY_SYSRQ", keySysRq, false},
		{"KEY_F1", keyF1, false},
		{"KEY_F12", keyF12, false},
		{"KEY_A", 0x1e, true},
	}

	for _, tt := range sanitizedTests {
		t.Run(tt.name, func(t *testing.T) {
			if got := allowKeyBit(types.PolicySanitized, tt.code); got != tt.want {
				t.Errorf("allowKeyBit(sanitized, %s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestPolicyNoneAllowsEverything(t *testing.T) {
	if !allowKeyBit(types.PolicyNone, keySysRq) {
		t.Errorf("policy none should allow every key code")
	}
}

func TestStrictGamepadRejectsNonGamepadEvBit(t *testing.T) {
	if allowEvBit(types.PolicyStrictGamepad, EvRel) {
		t.Errorf("strict-gamepad should reject EV_REL")
	}
	if !allowEvBit(types.PolicyStrictGamepad, EvKey) {
		t.Errorf("strict-gamepad should accept EV_KEY")
	}
}
