// Package nshelper implements the namespace-switch helper: a re-exec of
// the daemon binary that enters a target container's mount and network
// namespaces and performs exactly one filesystem or netlink action, then
// exits with a status code the dispatcher maps back to an error kind.
//
// Re-exec rather than fork is deliberate: by the time a container's first
// device is created, the daemon has already started other goroutines (the
// uevent monitor, other containers' job loops), and a bare fork in a
// multi-threaded process risks deadlocking on a lock another thread held
// at fork time — notably the memory allocator's. Re-exec starts over with
// a clean address space instead.
package nshelper

import (
	"encoding/base64"
	"encoding/json"

	"github.com/vuinput/vuinputd/internal/types"
	"github.com/vuinput/vuinputd/internal/vuerr"
)

// Kind discriminates the five actions a helper invocation can perform.
type Kind string

const (
	MknodDevice   Kind = "mknod-device"
	RemoveDevice  Kind = "remove-device"
	WriteUdevData Kind = "write-udev-data"
	DeleteUdevData Kind = "delete-udev-data"
	SendUevent    Kind = "send-uevent"
)

// Prop is a single udev or uevent key/value pair, carried as a slice
// rather than a map so its order survives the JSON round trip.
type Prop struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Action is the fully-specified payload base64-encoded onto
// --action-base64. Only the fields relevant to Kind are populated.
type Action struct {
	Kind Kind `json:"action"`

	Path  string      `json:"path,omitempty"`
	Major types.Major `json:"major,omitempty"`
	Minor types.Minor `json:"minor,omitempty"`

	UdevContent string `json:"udev_content,omitempty"`

	// UeventRecords lets SendUevent emit several related records (a
	// parent inputX add and its eventN child's add, say) from one helper
	// process, since they must land in the container's net namespace
	// together and spawning a helper per record would double the re-exec
	// cost for no benefit.
	UeventRecords []UeventRecord `json:"uevent_records,omitempty"`
}

// UeventRecord is one netlink uevent message for the SendUevent action.
type UeventRecord struct {
	Action    string `json:"action"`
	Devpath   string `json:"devpath"`
	Subsystem string `json:"subsystem"`
	Props     []Prop `json:"props,omitempty"`
}

// Encode base64-encodes the action's JSON form for the --action-base64
// flag.
func Encode(a Action) (string, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return "", vuerr.Wrap(vuerr.Fatal, err, "encoding namespace-helper action")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode reverses Encode, used by the re-exec'd child to recover the
// action its parent specified.
func Decode(encoded string) (Action, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Action{}, vuerr.Wrap(vuerr.ClientProtocol, err, "base64-decoding namespace-helper action")
	}

	var a Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return Action{}, vuerr.Wrap(vuerr.ClientProtocol, err, "JSON-decoding namespace-helper action")
	}
	return a, nil
}
