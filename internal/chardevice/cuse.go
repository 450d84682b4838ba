package chardevice

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/vuinput/vuinputd/internal/vlog"
	"github.com/vuinput/vuinputd/internal/vuerr"
)

const cuseDevicePath = "/dev/cuse"

// Serve opens /dev/cuse, registers devname (optionally at a fixed major and
// minor, 0/0 meaning auto-assign), performs the CUSE_INIT handshake, and
// then runs the single-threaded read-dispatch-write loop until the fd is
// closed or an unrecoverable error occurs.
func Serve(devname string, major, minor uint32, handlers Handlers) error {
	fd, err := unix.Open(cuseDevicePath, unix.O_RDWR, 0)
	if err != nil {
		return vuerr.Wrap(vuerr.Fatal, err, "opening %s", cuseDevicePath)
	}
	defer unix.Close(fd)

	buf := make([]byte, 1<<20)

	n, err := unix.Read(fd, buf)
	if err != nil {
		return vuerr.Wrap(vuerr.Fatal, err, "reading CUSE_INIT request")
	}
	if err := handleInit(fd, buf[:n], devname, major, minor); err != nil {
		return err
	}

	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return vuerr.Wrap(vuerr.Fatal, err, "reading from %s", cuseDevicePath)
		}

		if err := dispatch(fd, buf[:n], handlers); err != nil {
			vlog.DedupedErrorf("chardevice-dispatch", "dispatching request: %v", err)
		}
	}
}

func handleInit(fd int, req []byte, devname string, major, minor uint32) error {
	var in fuseInHeader
	r := bytes.NewReader(req)
	if err := binary.Read(r, binary.LittleEndian, &in); err != nil {
		return vuerr.Wrap(vuerr.Fatal, err, "decoding CUSE_INIT header")
	}
	if in.Opcode != opInit {
		return vuerr.New(vuerr.Fatal, "expected CUSE_INIT, got opcode %d", in.Opcode)
	}

	var initIn cuseInitIn
	binary.Read(r, binary.LittleEndian, &initIn)

	out := cuseInitOut{
		Major:    7,
		Minor:    23,
		MaxRead:  1 << 20,
		MaxWrite: 1 << 20,
		DevMajor: major,
		DevMinor: minor,
	}

	info := []byte("DEVNAME=" + devname + "\x00")

	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, &out)
	body.Write(info)

	return writeReply(fd, in.Unique, 0, body.Bytes())
}

func dispatch(fd int, req []byte, h Handlers) error {
	var in fuseInHeader
	r := bytes.NewReader(req)
	if err := binary.Read(r, binary.LittleEndian, &in); err != nil {
		return vuerr.Wrap(vuerr.Fatal, err, "decoding request header")
	}
	body := req[40:]

	switch in.Opcode {
	case opOpen:
		return dispatchOpen(fd, in, h.Open)
	case opIoctl:
		return dispatchIoctl(fd, in, body, h.Ioctl)
	case opWrite:
		return dispatchWrite(fd, in, body, h.Write)
	case opRead:
		return dispatchRead(fd, in, body, h.Read)
	case opRelease:
		return dispatchRelease(fd, in, body, h.Release)
	case opDestroy:
		return writeReply(fd, in.Unique, 0, nil)
	default:
		return writeReply(fd, in.Unique, -int32(unix.ENOSYS), nil)
	}
}

func dispatchOpen(fd int, in fuseInHeader, open OpenFunc) error {
	handle, err := open(in.PID)
	if err != nil {
		return writeReply(fd, in.Unique, -errnoOf(err), nil)
	}

	var out fuseOpenOut
	out.FH = uint64(handle)

	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, &out)
	return writeReply(fd, in.Unique, 0, body.Bytes())
}

func dispatchIoctl(fd int, in fuseInHeader, body []byte, ioctl IoctlFunc) error {
	var req fuseIoctlIn
	binary.Read(bytes.NewReader(body), binary.LittleEndian, &req)

	inBuf := body[binary.Size(req):]
	if uint32(len(inBuf)) > req.InSize {
		inBuf = inBuf[:req.InSize]
	}

	out, err := ioctl(HandleID(req.FH), req.Cmd, inBuf, req.OutSize)
	if err != nil {
		if retry, ok := err.(*ErrRetry); ok {
			ioctlOut := fuseIoctlOut{Flags: fuseIoctlRetry, InIovs: boolToU32(retry.Retry.InSize > 0), OutIovs: boolToU32(retry.Retry.OutSize > 0)}
			var b bytes.Buffer
			binary.Write(&b, binary.LittleEndian, &ioctlOut)
			return writeReply(fd, in.Unique, 0, b.Bytes())
		}
		return writeReply(fd, in.Unique, -errnoOf(err), nil)
	}

	ioctlOut := fuseIoctlOut{Result: 0}
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, &ioctlOut)
	b.Write(out)
	return writeReply(fd, in.Unique, 0, b.Bytes())
}

func dispatchWrite(fd int, in fuseInHeader, body []byte, write WriteFunc) error {
	var req fuseWriteIn
	header := body[:binary.Size(req)]
	binary.Read(bytes.NewReader(header), binary.LittleEndian, &req)
	payload := body[binary.Size(req):]
	if uint32(len(payload)) > req.Size {
		payload = payload[:req.Size]
	}

	n, err := write(HandleID(req.FH), payload)
	if err != nil {
		return writeReply(fd, in.Unique, -errnoOf(err), nil)
	}

	out := fuseWriteOut{Size: uint32(n)}
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, &out)
	return writeReply(fd, in.Unique, 0, b.Bytes())
}

func dispatchRead(fd int, in fuseInHeader, body []byte, read ReadFunc) error {
	var req fuseReadIn
	binary.Read(bytes.NewReader(body), binary.LittleEndian, &req)

	out, err := read(HandleID(req.FH), req.Size)
	if err != nil {
		return writeReply(fd, in.Unique, -errnoOf(err), nil)
	}
	return writeReply(fd, in.Unique, 0, out)
}

func dispatchRelease(fd int, in fuseInHeader, body []byte, release ReleaseFunc) error {
	var req fuseReleaseIn
	binary.Read(bytes.NewReader(body), binary.LittleEndian, &req)

	err := release(HandleID(req.FH))
	if err != nil {
		return writeReply(fd, in.Unique, -errnoOf(err), nil)
	}
	return writeReply(fd, in.Unique, 0, nil)
}

func writeReply(fd int, unique uint64, errno int32, body []byte) error {
	out := fuseOutHeader{
		Len:    uint32(binary.Size(fuseOutHeader{}) + len(body)),
		Error:  errno,
		Unique: unique,
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &out)
	buf.Write(body)

	_, err := unix.Write(fd, buf.Bytes())
	return err
}

func errnoOf(err error) int32 {
	if errno, ok := err.(unix.Errno); ok {
		return int32(errno)
	}
	return int32(vuerr.Errno(vuerr.KindOf(err)))
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
