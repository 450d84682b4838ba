package nshelper

import (
	"context"
	"os"
	"os/exec"

	"github.com/vuinput/vuinputd/internal/vuerr"
)

// Spawn re-execs the running binary with --target-namespace and
// --action-base64 set, waits for it to exit, and translates its exit code
// back into an error. nsDir is a "/proc/<pid>/ns" directory, typically
// built by container.NamespacePath.
func Spawn(ctx context.Context, nsDir string, action Action) error {
	encoded, err := Encode(action)
	if err != nil {
		return err
	}

	self, err := os.Executable()
	if err != nil {
		return vuerr.Wrap(vuerr.Fatal, err, "resolving daemon binary path for namespace-helper re-exec")
	}

	cmd := exec.CommandContext(ctx, self,
		"--target-namespace", nsDir,
		"--action-base64", encoded,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	runErr := cmd.Run()
	if runErr == nil {
		return nil
	}

	exitErr, ok := runErr.(*exec.ExitError)
	if !ok {
		return vuerr.Wrap(vuerr.HelperFailed, runErr, "running namespace-switch helper for action %q", action.Kind)
	}

	return kindForExitCode(exitErr.ExitCode()).With("action", string(action.Kind))
}

func kindForExitCode(code int) *vuerr.Error {
	switch code {
	case ExitNoSuchNamespace:
		return vuerr.New(vuerr.ContainerGone, "namespace-switch helper found no such namespace")
	case ExitPermission:
		return vuerr.New(vuerr.HelperFailed, "namespace-switch helper lacked permission")
	case ExitPolicy:
		return vuerr.New(vuerr.PolicyRejected, "namespace-switch helper rejected by policy")
	case ExitIO:
		return vuerr.New(vuerr.HelperFailed, "namespace-switch helper hit an I/O error")
	default:
		return vuerr.New(vuerr.HelperFailed, "namespace-switch helper exited with code %d", code)
	}
}
