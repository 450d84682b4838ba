package uinputproto

import (
	"sync"
	"time"

	"github.com/vuinput/vuinputd/internal/chardevice"
	"github.com/vuinput/vuinputd/internal/dispatcher"
	"github.com/vuinput/vuinputd/internal/types"
	"github.com/vuinput/vuinputd/internal/uevent"
)

// Deps are the package-level collaborators every Handle needs but none of
// them owns: the job dispatcher, the host uevent store, and the policy
// this daemon instance enforces. Set once at startup with SetDeps.
type Deps struct {
	Dispatcher  *dispatcher.Dispatcher
	Store       *uevent.Store
	Policy      types.DevicePolicy
	Placement   types.Placement
	JobTimeout  time.Duration
	Devname     string // the published device's name, reused for --placement=on-host's bind-mount paths
	BackingPath string // usually "/dev/uinput"
}

var deps Deps

// SetDeps installs the collaborators every Handle's callbacks use. Must be
// called once, before chardevice.Serve starts dispatching.
func SetDeps(d Deps) {
	deps = d
}

// table is the package-level HandleID -> *Handle map, mirroring the
// teacher's tracker.go map+RWMutex shape: open() adds an entry, release()
// removes it, every other callback looks one up under the read lock.
var (
	tableLock sync.RWMutex
	table     = make(map[chardevice.HandleID]*Handle)
)

func trackHandle(id chardevice.HandleID, h *Handle) {
	tableLock.Lock()
	defer tableLock.Unlock()
	table[id] = h
}

func lookupHandle(id chardevice.HandleID) (*Handle, bool) {
	tableLock.RLock()
	defer tableLock.RUnlock()
	h, ok := table[id]
	return h, ok
}

func untrackHandle(id chardevice.HandleID) {
	tableLock.Lock()
	defer tableLock.Unlock()
	delete(table, id)
}

// Handlers returns the callback set chardevice.Serve dispatches to.
func Handlers() chardevice.Handlers {
	return chardevice.Handlers{
		Open:    handleOpen,
		Ioctl:   handleIoctl,
		Write:   handleWrite,
		Read:    handleRead,
		Release: handleRelease,
	}
}
