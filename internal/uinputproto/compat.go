package uinputproto

import (
	"encoding/binary"
	"syscall"
	"unsafe"

	"github.com/vuinput/vuinputd/internal/vuerr"
)

// compatInputEvent mirrors the 32-bit-ABI struct input_event, whose
// timeval has 32-bit tv_sec/tv_usec fields instead of the native
// implementation's 64-bit ones.
type compatInputEvent struct {
	Sec   int32
	Usec  int32
	Type  uint16
	Code  uint16
	Value int32
}

var (
	nativeEventSize = int(unsafe.Sizeof(InputEvent{}))
	compatEventSize = int(unsafe.Sizeof(compatInputEvent{}))
)

// decodeEvents splits a raw write() buffer into InputEvent values,
// detecting whether the caller used the native or 32-bit-compat layout
// from the buffer's length: it must divide evenly into whole events of
// exactly one of the two sizes, with no remainder. Ambiguity (a length
// divisible by both sizes) is resolved in favor of native, since the
// native layout is strictly larger and a 32-bit client's buffer length
// would only coincide by producing a different event count, which we
// disambiguate by requiring an exact match against N*nativeEventSize
// before falling back to compat.
func decodeEvents(buf []byte) ([]InputEvent, error) {
	if len(buf) == 0 {
		return nil, nil
	}

	if len(buf)%nativeEventSize == 0 {
		return decodeNative(buf), nil
	}
	if len(buf)%compatEventSize == 0 {
		return decodeCompat(buf), nil
	}
	return nil, vuerr.New(vuerr.ClientProtocol, "write buffer of %d bytes is not a whole number of input_event structs", len(buf))
}

func decodeNative(buf []byte) []InputEvent {
	n := len(buf) / nativeEventSize
	events := make([]InputEvent, n)
	for i := 0; i < n; i++ {
		chunk := buf[i*nativeEventSize : (i+1)*nativeEventSize]
		events[i] = InputEvent{
			Time: syscall.Timeval{
				Sec:  int64(binary.LittleEndian.Uint64(chunk[0:8])),
				Usec: int64(binary.LittleEndian.Uint64(chunk[8:16])),
			},
			Type:  binary.LittleEndian.Uint16(chunk[16:18]),
			Code:  binary.LittleEndian.Uint16(chunk[18:20]),
			Value: int32(binary.LittleEndian.Uint32(chunk[20:24])),
		}
	}
	return events
}

func decodeCompat(buf []byte) []InputEvent {
	n := len(buf) / compatEventSize
	events := make([]InputEvent, n)
	for i := 0; i < n; i++ {
		chunk := buf[i*compatEventSize : (i+1)*compatEventSize]
		events[i] = InputEvent{
			Time: syscall.Timeval{
				Sec:  int64(int32(binary.LittleEndian.Uint32(chunk[0:4]))),
				Usec: int64(int32(binary.LittleEndian.Uint32(chunk[4:8]))),
			},
			Type:  binary.LittleEndian.Uint16(chunk[8:10]),
			Code:  binary.LittleEndian.Uint16(chunk[10:12]),
			Value: int32(binary.LittleEndian.Uint32(chunk[12:16])),
		}
	}
	return events
}

// encodeNative serializes events back into the native wire layout, for
// writing onto the backing FD regardless of which layout the caller used.
func encodeNative(events []InputEvent) []byte {
	out := make([]byte, len(events)*nativeEventSize)
	for i, ev := range events {
		chunk := out[i*nativeEventSize : (i+1)*nativeEventSize]
		binary.LittleEndian.PutUint64(chunk[0:8], uint64(ev.Time.Sec))
		binary.LittleEndian.PutUint64(chunk[8:16], uint64(ev.Time.Usec))
		binary.LittleEndian.PutUint16(chunk[16:18], ev.Type)
		binary.LittleEndian.PutUint16(chunk[18:20], ev.Code)
		binary.LittleEndian.PutUint32(chunk[20:24], uint32(ev.Value))
	}
	return out
}
