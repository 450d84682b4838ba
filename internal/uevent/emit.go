package uevent

// Emit sends a single formatted uevent message to the kernel group, from
// inside netnsPath if non-empty (used by the namespace-switch helper when
// injecting container-side events) or from the caller's own namespace
// otherwise (used by the host monitor's loopback self-test, if ever
// needed).
func Emit(netnsPath string, e Event) error {
	sock, err := openSocket(netnsPath)
	if err != nil {
		return err
	}
	defer sock.Close()

	return sock.Send(Format(e))
}
