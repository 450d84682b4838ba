package uinputproto

import (
	"bytes"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/vuinput/vuinputd/internal/chardevice"
	"github.com/vuinput/vuinputd/internal/container"
	"github.com/vuinput/vuinputd/internal/dispatcher"
	"github.com/vuinput/vuinputd/internal/lifecycle"
	"github.com/vuinput/vuinputd/internal/types"
	"github.com/vuinput/vuinputd/internal/vlog"
	"github.com/vuinput/vuinputd/internal/vuerr"
)

// Handle is one open() of the published character device: the
// mutex-protected accumulator of everything a client has configured so
// far, plus the state needed to replay it onto the real backing FD and
// propagate the result into the client's container.
type Handle struct {
	id chardevice.HandleID

	mu    sync.Mutex
	state types.HandleState

	backingFD   int
	pid         uint32
	containerID types.ContainerID
	nsDir       string

	evBits   map[uint16]bool
	keyBits  map[uint16]bool
	relBits  map[uint16]bool
	absBits  map[uint16]bool
	mscBits  map[uint16]bool
	ledBits  map[uint16]bool
	sndBits  map[uint16]bool
	ffBits   map[uint16]bool
	swBits   map[uint16]bool
	propBits map[uint16]bool

	name         [uinputMaxNameSize]byte
	ffEffectsMax uint32

	sysfsPath      string
	eventSysfsPath string
	devnodePath    string
	major          types.Major
	minor          types.Minor

	lastWriteErrno unix.Errno
}

var nextHandleID atomic.Uint64

func newHandle() *Handle {
	return &Handle{
		id:       chardevice.HandleID(nextHandleID.Add(1)),
		state:    types.Nonexistent,
		evBits:   make(map[uint16]bool),
		keyBits:  make(map[uint16]bool),
		relBits:  make(map[uint16]bool),
		absBits:  make(map[uint16]bool),
		mscBits:  make(map[uint16]bool),
		ledBits:  make(map[uint16]bool),
		sndBits:  make(map[uint16]bool),
		ffBits:   make(map[uint16]bool),
		swBits:   make(map[uint16]bool),
		propBits: make(map[uint16]bool),
	}
}

// handleOpen resolves the caller's container identity from its PID,
// opens the real backing device, and tracks a new Handle for it.
func handleOpen(pid uint32) (chardevice.HandleID, error) {
	id, err := container.ResolveIdentity(pid)
	if err != nil {
		vlog.Warnf("resolving container identity for pid %d: %v", pid, err)
		return 0, unix.EACCES
	}

	fd, err := unix.Open(deps.BackingPath, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return 0, vuerr.Wrap(vuerr.BackingKernel, err, "opening %s", deps.BackingPath)
	}

	h := newHandle()
	h.backingFD = fd
	h.pid = pid
	h.containerID = id
	h.nsDir = container.NamespacePath(pid)

	// Only start a new poll-and-untrack goroutine if this container isn't
	// already tracked; LookupOrCreate's existing-entry path never touches
	// its ctx argument, so building one on every redundant open would
	// leak a goroutine per open.
	if _, tracked := container.Lookup(id); !tracked {
		container.LookupOrCreate(container.WatchPID(pid), id)
	}

	trackHandle(h.id, h)
	return h.id, nil
}

// handleIoctl dispatches a single ioctl command for handle. cmd carries
// the command number exactly as the caller's libc computed it. Commands
// forwarded to the backing FD keep the original cmd value verbatim so it
// sees an identical call; UI_GET_VERSION and UI_GET_SYSNAME are answered
// here and never reach it.
func handleIoctl(id chardevice.HandleID, cmd uint32, inBuf []byte, outSize uint32) ([]byte, error) {
	h, ok := lookupHandle(id)
	if !ok {
		return nil, vuerr.New(vuerr.ClientProtocol, "ioctl on unknown handle %d", id)
	}

	switch {
	case cmd == UIGetVersion:
		return encodeU32(5), nil
	case iocType(cmd) == uinputIoctlType && iocNr(cmd) == nrGetSysname:
		return handleGetSysname(h, outSize)
	case cmd == UIDevCreate:
		return nil, h.create()
	case cmd == UIDevDestroy:
		return nil, h.destroy()
	case isSetBit(cmd):
		return nil, h.setBit(cmd, inBuf)
	case iocType(cmd) == uinputIoctlType && iocNr(cmd) == nrDevSetup:
		return nil, h.devSetup(cmd, inBuf)
	case iocType(cmd) == uinputIoctlType && iocNr(cmd) == nrSetPhys:
		return nil, h.setPhys(cmd, inBuf)
	case iocType(cmd) == uinputIoctlType && iocNr(cmd) == nrAbsSetup:
		return nil, h.ioctlBacking(cmd, inBuf, 0)
	case isFFUploadOrErase(cmd):
		return h.replay(cmd, inBuf, outSize)
	default:
		return h.replay(cmd, inBuf, outSize)
	}
}

func handleGetSysname(h *Handle, outSize uint32) ([]byte, error) {
	h.mu.Lock()
	sysfs := h.sysfsPath
	h.mu.Unlock()

	if sysfs == "" {
		return nil, unix.ENOENT
	}

	name := sysfsBasename(sysfs)
	if uint32(len(name))+1 > outSize {
		return nil, &chardevice.ErrRetry{Retry: chardevice.Retry{OutSize: uint32(len(name)) + 1}}
	}
	out := make([]byte, outSize)
	copy(out, name)
	return out, nil
}

// setBit handles every UI_SET_*BIT ioctl: update the accumulator, then
// replay verbatim onto the backing FD unless policy strips the bit. The
// accumulator always records the client's full request, even bits policy
// later strips from the backing FD, for diagnostic logging.
func (h *Handle) setBit(cmd uint32, inBuf []byte) error {
	if len(inBuf) < 4 {
		return vuerr.New(vuerr.ClientProtocol, "UI_SET_*BIT missing argument")
	}
	code := uint16(binary.LittleEndian.Uint32(inBuf))

	h.mu.Lock()
	set := h.bitmapFor(iocNr(cmd))
	if set != nil {
		set[code] = true
	}
	h.mu.Unlock()

	if !h.policyAllows(cmd, code) {
		return nil
	}

	return unix.IoctlSetInt(h.backingFD, uint(cmd), int(code))
}

func (h *Handle) bitmapFor(nr uint32) map[uint16]bool {
	switch nr {
	case nrSetEvBit:
		return h.evBits
	case nrSetKeyBit:
		return h.keyBits
	case nrSetRelBit:
		return h.relBits
	case nrSetAbsBit:
		return h.absBits
	case nrSetMscBit:
		return h.mscBits
	case nrSetLedBit:
		return h.ledBits
	case nrSetSndBit:
		return h.sndBits
	case nrSetFFBit:
		return h.ffBits
	case nrSetSwBit:
		return h.swBits
	case nrSetPropBit:
		return h.propBits
	default:
		return nil
	}
}

func (h *Handle) policyAllows(cmd uint32, code uint16) bool {
	switch iocNr(cmd) {
	case nrSetEvBit:
		return allowEvBit(deps.Policy, code)
	case nrSetKeyBit:
		return allowKeyBit(deps.Policy, code)
	case nrSetAbsBit:
		return allowAbsBit(deps.Policy, code)
	default:
		return true
	}
}

// devSetup replays the client's UI_DEV_SETUP verbatim (so any earlier
// ioctls depending on it, e.g. UI_ABS_SETUP, see a consistently configured
// backing FD) and remembers the requested name/ff-effects-max; the
// identity fields themselves are overridden again at UI_DEV_CREATE time.
func (h *Handle) devSetup(cmd uint32, inBuf []byte) error {
	var setup DeviceSetup
	if err := binary.Read(bytes.NewReader(inBuf), binary.LittleEndian, &setup); err != nil {
		return vuerr.Wrap(vuerr.ClientProtocol, err, "decoding UI_DEV_SETUP payload")
	}

	h.mu.Lock()
	h.name = setup.Name
	h.ffEffectsMax = setup.FFEffectsMax
	h.mu.Unlock()

	return h.ioctlBacking(cmd, inBuf, 0)
}

// physRetrySize bounds the phys string UI_SET_PHYS carries. The ioctl is
// declared over a "const char *" argument, so its encoded _IOC_SIZE is
// sizeof(char*), far too small for CUSE to auto-size inBuf from; a fixed,
// generously sized retry buffer sidesteps having to learn the string's
// real length up front.
const physRetrySize = 1024

// setPhys mirrors handleGetSysname's retry dance in the opposite
// direction: the first delivery's inBuf is sized off UI_SET_PHYS's
// encoded pointer size, not the string behind it, so it's rejected with
// a retry until the caller redelivers with a properly sized buffer.
func (h *Handle) setPhys(cmd uint32, inBuf []byte) error {
	if len(inBuf) < physRetrySize {
		return &chardevice.ErrRetry{Retry: chardevice.Retry{InSize: physRetrySize}}
	}
	return h.ioctlBacking(cmd, inBuf, 0)
}

// create runs UI_DEV_CREATE's full sequence: policy filtering was already
// applied incrementally as each SET_*BIT arrived, so here we only need to
// fix the device identity, issue the real create, learn the sysname, and
// block on the propagation job.
func (h *Handle) create() error {
	h.mu.Lock()
	next, action, _ := lifecycle.Reconcile(types.Live, h.state)
	if action != lifecycle.Create {
		observed := h.state
		h.mu.Unlock()
		return vuerr.New(vuerr.ClientProtocol, "UI_DEV_CREATE from state %s", observed)
	}
	h.state = next
	h.mu.Unlock()

	if err := h.overrideIdentity(); err != nil {
		return h.failCreate(vuerr.Wrap(vuerr.BackingKernel, err, "reissuing UI_DEV_SETUP with fixed identity"))
	}

	if err := h.ioctlBacking(UIDevCreate, nil, 0); err != nil {
		return h.failCreate(vuerr.Wrap(vuerr.BackingKernel, err, "UI_DEV_CREATE on backing FD"))
	}

	sysname, err := h.querySysname()
	if err != nil {
		return h.failCreate(err)
	}

	h.mu.Lock()
	h.sysfsPath = "/devices/virtual/input/" + sysname
	h.mu.Unlock()

	if err := h.scheduleInject(); err != nil {
		h.ioctlBacking(UIDevDestroy, nil, 0)
		// UI_DEV_DESTROY was already issued on the backing FD, but the
		// compensating container-side teardown the inject job schedules
		// on failure may not have completed yet: PendingCleanup, not
		// Nonexistent.
		h.mu.Lock()
		h.state = types.PendingCleanup
		h.mu.Unlock()
		return err
	}

	h.mu.Lock()
	h.state = types.Live
	h.mu.Unlock()
	return nil
}

func (h *Handle) failCreate(err error) error {
	h.mu.Lock()
	h.state = types.Nonexistent
	h.mu.Unlock()
	return err
}

func (h *Handle) destroy() error {
	h.mu.Lock()
	next, action, _ := lifecycle.Reconcile(types.Removed, h.state)
	alreadyConverged := action != lifecycle.Remove
	h.state = next
	h.mu.Unlock()

	if alreadyConverged {
		return nil
	}

	if err := h.ioctlBacking(UIDevDestroy, nil, 0); err != nil {
		vlog.DedupedWarnf("uidevdestroy-"+string(h.containerID), "UI_DEV_DESTROY on backing FD: %v", err)
	}

	h.scheduleRemove()

	h.mu.Lock()
	h.state = types.Removed
	h.mu.Unlock()
	return nil
}

func (h *Handle) scheduleInject() error {
	if deps.Placement == types.PlacementNone {
		return nil
	}

	h.mu.Lock()
	target := dispatcher.ContainerTarget{ID: h.containerID}
	params := dispatcher.InjectParams{
		NsDir:           h.nsDir,
		SysfsPath:       h.sysfsPath,
		DeviceClassProp: h.deviceClassProp(),
		Devname:         deps.Devname,
		Store:           deps.Store,
		WaitWindow:      deps.JobTimeout,
		Dispatcher:      deps.Dispatcher,
		Target:          target,
		OnResolved: func(eventSysfsPath, devnodePath string, major types.Major, minor types.Minor) {
			h.mu.Lock()
			h.eventSysfsPath = eventSysfsPath
			h.devnodePath = devnodePath
			h.major = major
			h.minor = minor
			h.mu.Unlock()
		},
	}
	h.mu.Unlock()

	job := dispatcher.InjectInContainerJob(params)
	if deps.Placement == types.PlacementOnHost {
		job = dispatcher.OnHostInjectJob(params)
	}

	done := deps.Dispatcher.Enqueue(target, job)
	return waitOrTimeout(done, deps.JobTimeout)
}

func (h *Handle) scheduleRemove() {
	if deps.Placement == types.PlacementNone {
		return
	}

	h.mu.Lock()
	params := dispatcher.RemoveParams{
		NsDir:          h.nsDir,
		DevnodePath:    h.devnodePath,
		Major:          h.major,
		Minor:          h.minor,
		SysfsPath:      h.sysfsPath,
		EventSysfsPath: h.eventSysfsPath,
		Devname:        deps.Devname,
	}
	h.mu.Unlock()

	if params.SysfsPath == "" {
		return // never reached Live; nothing was propagated to remove
	}

	job := dispatcher.RemoveFromContainerJob(params)
	if deps.Placement == types.PlacementOnHost {
		job = dispatcher.OnHostRemoveJob(params)
	}

	deps.Dispatcher.Enqueue(dispatcher.ContainerTarget{ID: h.containerID}, job)
}

func waitOrTimeout(done <-chan error, timeout time.Duration) error {
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return vuerr.New(vuerr.Timeout, "timed out waiting for container propagation job")
	}
}

// deviceClassProp classifies the accumulated capability bits into the
// ID_VUINPUT_* udev property other tools look for. Returns "" for
// anything that doesn't clearly fit one of the two known classes.
func (h *Handle) deviceClassProp() string {
	if h.keyBits[0x110] { // BTN_LEFT
		return "ID_VUINPUT_MOUSE=1"
	}
	if len(h.keyBits) > 0 {
		return "ID_VUINPUT_KEYBOARD=1"
	}
	return ""
}

func handleWrite(id chardevice.HandleID, buf []byte) (int, error) {
	h, ok := lookupHandle(id)
	if !ok {
		return 0, vuerr.New(vuerr.ClientProtocol, "write on unknown handle %d", id)
	}

	events, err := decodeEvents(buf)
	if err != nil {
		return 0, err
	}

	n, err := unix.Write(h.backingFD, encodeNative(events))
	if err != nil {
		h.logWriteError(err)
		return n, vuerr.Wrap(vuerr.BackingKernel, err, "writing events to backing FD")
	}
	h.mu.Lock()
	h.lastWriteErrno = 0
	h.mu.Unlock()
	return len(buf), nil
}

// logWriteError coalesces consecutive identical errnos into a single
// report, since a misbehaving client can otherwise flood the log with
// one line per dropped event.
func (h *Handle) logWriteError(err error) {
	errno, _ := err.(unix.Errno)

	h.mu.Lock()
	repeat := errno != 0 && errno == h.lastWriteErrno
	h.lastWriteErrno = errno
	h.mu.Unlock()

	if !repeat {
		vlog.Errorf("write to backing FD failed: %v", err)
	}
}

func handleRead(id chardevice.HandleID, maxSize uint32) ([]byte, error) {
	h, ok := lookupHandle(id)
	if !ok {
		return nil, vuerr.New(vuerr.ClientProtocol, "read on unknown handle %d", id)
	}

	buf := make([]byte, maxSize)
	n, err := unix.Read(h.backingFD, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return nil, nil
		}
		return nil, vuerr.Wrap(vuerr.BackingKernel, err, "reading ff-upload/erase request from backing FD")
	}
	return buf[:n], nil
}

func handleRelease(id chardevice.HandleID) error {
	h, ok := lookupHandle(id)
	if !ok {
		return nil
	}
	untrackHandle(id)

	h.mu.Lock()
	alreadyRemoved := h.state == types.Removed
	h.mu.Unlock()

	if !alreadyRemoved {
		go h.scheduleRemove()
	}

	unix.Close(h.backingFD)
	return nil
}

// replay issues cmd on the backing FD exactly as received, for any ioctl
// with no accumulator or policy significance to this front-end (this
// covers FF upload/erase forwarding too).
func (h *Handle) replay(cmd uint32, inBuf []byte, outSize uint32) ([]byte, error) {
	if iocDir(cmd) == iocRead && outSize > 0 {
		out := make([]byte, outSize)
		if err := ioctlPtr(h.backingFD, cmd, out); err != nil {
			return nil, vuerr.Wrap(vuerr.BackingKernel, err, "replaying ioctl 0x%x", cmd)
		}
		return out, nil
	}
	if err := ioctlPtr(h.backingFD, cmd, inBuf); err != nil {
		return nil, vuerr.Wrap(vuerr.BackingKernel, err, "replaying ioctl 0x%x", cmd)
	}
	return nil, nil
}

func (h *Handle) ioctlBacking(cmd uint32, buf []byte, outSize uint32) error {
	_, err := h.replay(cmd, buf, outSize)
	return err
}

// overrideIdentity reissues UI_DEV_SETUP with the daemon's fixed
// bus/vendor/product triple (the client's own values, captured in devSetup,
// are discarded here) unless policy says otherwise — today no policy does,
// so this is unconditional.
func (h *Handle) overrideIdentity() error {
	h.mu.Lock()
	setup := DeviceSetup{
		ID:           InputID{Bustype: FixedBustype, Vendor: FixedVendor, Product: FixedProduct},
		Name:         h.name,
		FFEffectsMax: h.ffEffectsMax,
	}
	h.mu.Unlock()

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &setup); err != nil {
		return err
	}

	cmd := iocEncode(iocWrite, uinputIoctlType, nrDevSetup, uint32(buf.Len()))
	return h.ioctlBacking(cmd, buf.Bytes(), 0)
}

func (h *Handle) querySysname() (string, error) {
	const bufLen = 32
	out := make([]byte, bufLen)
	if err := ioctlPtr(h.backingFD, UIGetSysname(bufLen), out); err != nil {
		return "", vuerr.Wrap(vuerr.BackingKernel, err, "UI_GET_SYSNAME on backing FD")
	}
	return cString(out), nil
}

func ioctlPtr(fd int, cmd uint32, buf []byte) error {
	var argp uintptr
	if len(buf) > 0 {
		argp = uintptr(unsafe.Pointer(&buf[0]))
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(cmd), argp)
	if errno != 0 {
		return errno
	}
	return nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func sysfsBasename(sysfsPath string) string {
	for i := len(sysfsPath) - 1; i >= 0; i-- {
		if sysfsPath[i] == '/' {
			return sysfsPath[i+1:]
		}
	}
	return sysfsPath
}

func encodeU32(v uint32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, v)
	return out
}
