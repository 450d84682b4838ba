// Package container resolves and tracks the containers vuinputd mediates
// device access for.
//
// Many of the methods below read or write a Container's fields under its
// lock; follow the same discipline as every other locked struct in this
// codebase:
//
// 1. Accessing a field directly? Lock.
// 2. Calling a method? Don't also lock — it locks internally, and nesting
//    risks deadlock.
// 3. Inside a method? Assume the lock is unlocked on entry; take it only
//    around the field accesses that need it.
package container

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/vuinput/vuinputd/internal/types"
	"github.com/vuinput/vuinputd/internal/vlog"
	"github.com/vuinput/vuinputd/internal/vuerr"
)

// Container is a single container's record: its namespace identity and the
// bookkeeping the dispatcher's per-target job queue hangs off of.
type Container struct {
	id types.ContainerID

	rwlock sync.RWMutex
	gone   bool
}

// ID returns the container's stable identity key.
func (c *Container) ID() types.ContainerID {
	return c.id
}

// MarkGone flags the container as no longer present. Idempotent.
func (c *Container) MarkGone() {
	c.rwlock.Lock()
	defer c.rwlock.Unlock()
	c.gone = true
}

// Gone reports whether MarkGone has been called for this container.
func (c *Container) Gone() bool {
	c.rwlock.RLock()
	defer c.rwlock.RUnlock()
	return c.gone
}

// ResolveIdentity reads /proc/<pid>/ns/{mnt,net} for the requesting
// process's namespace inodes and builds the stable ContainerID from them.
// Grounded on the namespace-identity resolution spec.md's open() callback
// requires: a process's mount+net namespace inodes survive after its PID
// exits, so the ID remains valid for later lookups even once the opening
// process is gone.
func ResolveIdentity(pid uint32) (types.ContainerID, error) {
	mntInode, err := namespaceInode(pid, "mnt")
	if err != nil {
		return "", vuerr.Wrap(vuerr.ClientProtocol, err, "resolving mount namespace for pid %d", pid)
	}
	netInode, err := namespaceInode(pid, "net")
	if err != nil {
		return "", vuerr.Wrap(vuerr.ClientProtocol, err, "resolving net namespace for pid %d", pid)
	}
	return types.NewContainerID(mntInode, netInode), nil
}

// NamespacePath builds the /proc/<pid>/ns path the namespace-switch helper
// is re-exec'd with.
func NamespacePath(pid uint32) string {
	return fmt.Sprintf("/proc/%d/ns", pid)
}

func namespaceInode(pid uint32, kind string) (uint64, error) {
	path := fmt.Sprintf("/proc/%d/ns/%s", pid, kind)
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	stat, ok := statInode(info)
	if !ok {
		return 0, vuerr.New(vuerr.Fatal, "unexpected stat type for %q", path)
	}
	return stat, nil
}

// registry is the package-level tracker of known containers, keyed by
// ContainerID, behind a map+RWMutex.
var registry = make(map[types.ContainerID]*Container)
var registryLock sync.RWMutex

// LookupOrCreate returns the tracked Container for id, creating and
// tracking a new one if this is the first time it's been seen. ctx is the
// container's lifetime context: when it is cancelled (because the caller
// observed the container's init PID exit), the returned Container is
// marked gone and untracked.
func LookupOrCreate(ctx context.Context, id types.ContainerID) *Container {
	registryLock.Lock()
	if existing, ok := registry[id]; ok {
		registryLock.Unlock()
		return existing
	}

	c := &Container{id: id}
	registry[id] = c
	registryLock.Unlock()

	go func() {
		<-ctx.Done()
		c.MarkGone()

		registryLock.Lock()
		delete(registry, id)
		registryLock.Unlock()

		vlog.Infof("untracked container %s", id)
	}()

	return c
}

// Lookup finds a tracked container by id without creating one.
func Lookup(id types.ContainerID) (*Container, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	c, ok := registry[id]
	return c, ok
}
