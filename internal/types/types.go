// Package types holds the small, strongly-typed identifiers shared across
// vuinputd's packages. They are kept in their own package (mirroring how
// larger packages like dispatcher and container both need to name the same
// concepts) so that lower-level packages never have to import the packages
// that would otherwise own these types.
package types

import "fmt"

// HandleID identifies one open of the published character device. It is
// opaque; the live values are minted by internal/uinputproto, one per
// accepted open(), as chardevice.HandleID.
type HandleID uint64

// ContainerID is the stable key for a container: the pair of its mount- and
// net-namespace inodes, formatted as "<mntInode>:<netInode>". It remains
// valid even after the container's init PID exits.
type ContainerID string

// NewContainerID builds the canonical key from the two namespace inodes.
func NewContainerID(mountNSInode, netNSInode uint64) ContainerID {
	return ContainerID(fmt.Sprintf("%d:%d", mountNSInode, netNSInode))
}

// Major and Minor are a device's kernel device-number components.
type Major uint32
type Minor uint32

// SysfsPath is a kernel DEVPATH, e.g. "/devices/virtual/input/input3" or
// "/devices/virtual/input/input3/event7".
type SysfsPath string

// DevicePolicy selects which capability bits the front-end forwards to the
// host backing FD. See internal/uinputproto/policy.go.
type DevicePolicy string

const (
	PolicyNone           DevicePolicy = "none"
	PolicyMuteSysRq      DevicePolicy = "mute-sys-rq"
	PolicySanitized      DevicePolicy = "sanitized"
	PolicyStrictGamepad  DevicePolicy = "strict-gamepad"
)

// Placement selects where container-visible artifacts (devnodes, udev data)
// are written.
type Placement string

const (
	PlacementInContainer Placement = "in-container"
	PlacementOnHost       Placement = "on-host"
	PlacementNone         Placement = "none"
)

// HandleState is a handle's position in its create/live/cleanup lifecycle.
type HandleState int

const (
	Nonexistent HandleState = iota
	Creating
	Live
	PendingCleanup
	Removed
)

func (s HandleState) String() string {
	switch s {
	case Nonexistent:
		return "nonexistent"
	case Creating:
		return "creating"
	case Live:
		return "live"
	case PendingCleanup:
		return "pending-cleanup"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// DeviceIdentity is a device's host identity once UI_DEV_CREATE succeeds.
type DeviceIdentity struct {
	Sysfs  SysfsPath
	Devnode string
	Major  Major
	Minor  Minor
}
