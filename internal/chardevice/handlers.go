// Package chardevice is the raw syscall/IO glue to the kernel's userspace
// character-device facility (CUSE). It is deliberately thin: it exposes the
// open/ioctl/write/read/release callback contract and a Serve loop, and
// leaves all uinput semantics to internal/uinputproto.
package chardevice

// HandleID identifies one open() of the published device. It is the value
// OpenFunc returns; this package hands it back unchanged to the other
// callbacks for that open.
type HandleID uint64

// OpenFunc is called for every open() of the device. pid is the opening
// process's host PID, read off the request's credentials.
type OpenFunc func(pid uint32) (HandleID, error)

// IoctlFunc is called for every ioctl(). cmd is the raw command number as
// issued by the caller, unmodified, so its embedded direction/type/size
// bits reflect exactly what the caller's libc computed from its own
// uinput.h. inBuf holds the bytes the kernel already copied in for a
// write-direction ioctl; outSize is the number of bytes the caller expects
// back for a read-direction ioctl. Returning ErrRetry with a populated
// Retry field asks the caller to re-issue the ioctl with the indicated
// buffer sizes, for commands CUSE can't size from the command number alone.
type IoctlFunc func(handle HandleID, cmd uint32, inBuf []byte, outSize uint32) (out []byte, err error)

// WriteFunc is called for every write().
type WriteFunc func(handle HandleID, buf []byte) (n int, err error)

// ReadFunc is called for every read(); maxSize bounds the returned slice.
type ReadFunc func(handle HandleID, maxSize uint32) ([]byte, error)

// ReleaseFunc is called when the handle's last reference is closed.
type ReleaseFunc func(handle HandleID) error

// Handlers is the full callback contract a consumer of this package must
// supply to Serve.
type Handlers struct {
	Open    OpenFunc
	Ioctl   IoctlFunc
	Write   WriteFunc
	Read    ReadFunc
	Release ReleaseFunc
}

// Retry is returned from IoctlFunc (wrapped in ErrRetry) when the command's
// buffer sizes can't be inferred from the command number and must be
// renegotiated.
type Retry struct {
	InSize  uint32
	OutSize uint32
}

// ErrRetry signals that an ioctl needs to be reissued with specific buffer
// sizes.
type ErrRetry struct {
	Retry Retry
}

func (e *ErrRetry) Error() string { return "ioctl requires a resized retry" }
