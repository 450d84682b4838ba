package uevent

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/vuinput/vuinputd/internal/vuerr"
)

// kernelGroup is the kobject-uevent multicast group the kernel itself
// publishes to and listens for injected messages on.
const kernelGroup = 1

// socket wraps an AF_NETLINK/NETLINK_KOBJECT_UEVENT socket, optionally
// created inside a target network namespace.
type socket struct {
	fd int
}

// openSocket creates and binds a kobject-uevent netlink socket. If
// netnsPath is non-empty, the socket is created after switching the
// calling OS thread into that namespace, then the thread is switched back;
// the socket itself stays bound to the namespace it was created in.
func openSocket(netnsPath string) (*socket, error) {
	if netnsPath == "" {
		return connect()
	}
	return connectInNamespace(netnsPath)
}

func connect() (*socket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, vuerr.Wrap(vuerr.Fatal, err, "creating kobject-uevent netlink socket")
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelGroup}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, vuerr.Wrap(vuerr.Fatal, err, "binding kobject-uevent netlink socket")
	}

	return &socket{fd: fd}, nil
}

// connectInNamespace enters netnsPath's net namespace on the current OS
// thread, opens the socket, then restores the original namespace. Locking
// the OS thread for the duration is required because namespace membership
// is a per-thread property and the Go scheduler may otherwise migrate this
// goroutine mid-switch.
func connectInNamespace(netnsPath string) (*socket, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	current, err := unix.Open("/proc/self/ns/net", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, vuerr.Wrap(vuerr.ContainerGone, err, "opening current net namespace")
	}
	defer unix.Close(current)

	target, err := unix.Open(netnsPath, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, vuerr.Wrap(vuerr.ContainerGone, err, "opening target net namespace %q", netnsPath)
	}
	defer unix.Close(target)

	if err := unix.Setns(target, unix.CLONE_NEWNET); err != nil {
		return nil, vuerr.Wrap(vuerr.ContainerGone, err, "entering net namespace %q", netnsPath)
	}

	defer func() {
		if err := unix.Setns(current, unix.CLONE_NEWNET); err != nil {
			vuerrPanicRestoreNamespace(err)
		}
	}()

	return connect()
}

// vuerrPanicRestoreNamespace is split out so the one unrecoverable failure
// mode here (can't restore the calling thread's namespace) is visibly
// distinct from every other error path, which just returns an error.
func vuerrPanicRestoreNamespace(err error) {
	panic(vuerr.Wrap(vuerr.Fatal, err, "failed to restore original net namespace; OS thread is in an undefined state"))
}

func (s *socket) Close() error {
	return unix.Close(s.fd)
}

func (s *socket) Send(payload []byte) error {
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelGroup}
	if err := unix.Sendto(s.fd, payload, 0, addr); err != nil {
		return vuerr.Wrap(vuerr.HelperFailed, err, "sending uevent payload")
	}
	return nil
}

// Recv blocks for the next message on the socket.
func (s *socket) Recv() ([]byte, error) {
	buf := make([]byte, os.Getpagesize())
	for {
		n, _, err := unix.Recvfrom(s.fd, buf, unix.MSG_PEEK)
		if err != nil {
			return nil, vuerr.Wrap(vuerr.Fatal, err, "peeking uevent socket")
		}
		if n < len(buf) {
			break
		}
		buf = make([]byte, len(buf)+os.Getpagesize())
	}

	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return nil, vuerr.Wrap(vuerr.Fatal, err, "reading uevent socket")
	}
	return buf[:n], nil
}
