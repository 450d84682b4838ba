package nshelper

import (
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/vuinput/vuinputd/internal/vuerr"
)

// enterNamespaces joins the calling OS thread to the mount and network
// namespaces found under nsDir (a "/proc/<pid>/ns" directory). Both
// namespace file descriptors are opened and validated before either Setns
// call is made: once the first Setns succeeds there is no general way back
// if the second one fails, so any failure that can still be reported
// cleanly must happen first.
//
// The caller must have already called runtime.LockOSThread; this function
// does not unlock it, because a process that has just switched namespaces
// has no business resuming unrelated goroutine-scheduled work on that
// thread.
func enterNamespaces(nsDir string) error {
	mnt, err := unix.Open(nsDir+"/mnt", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return vuerr.Wrap(vuerr.ContainerGone, err, "opening mount namespace under %q", nsDir)
	}
	defer unix.Close(mnt)

	net, err := unix.Open(nsDir+"/net", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return vuerr.Wrap(vuerr.ContainerGone, err, "opening net namespace under %q", nsDir)
	}
	defer unix.Close(net)

	if err := unix.Setns(mnt, unix.CLONE_NEWNS); err != nil {
		return vuerr.Wrap(vuerr.ContainerGone, err, "entering mount namespace under %q", nsDir)
	}
	if err := unix.Setns(net, unix.CLONE_NEWNET); err != nil {
		return vuerr.Wrap(vuerr.ContainerGone, err, "entering net namespace under %q", nsDir)
	}

	return nil
}

// mustLockThisThread is called once, at the top of Run, to pin the helper
// process's sole goroutine of interest to its OS thread before any
// namespace switch. A freshly re-exec'd process has only the one
// goroutine, so this is as much documentation as mechanism.
func mustLockThisThread() {
	runtime.LockOSThread()
}
