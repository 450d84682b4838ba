package container

import (
	"os/exec"
	"testing"
	"time"
)

func TestWatchPIDCancelsAfterProcessExits(t *testing.T) {
	cmd := exec.Command("/bin/sleep", "0.1")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start /bin/sleep: %v", err)
	}

	ctx := WatchPID(uint32(cmd.Process.Pid))
	cmd.Wait()

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("WatchPID's context was never cancelled after the process exited")
	}
}

func TestPidAliveFalseForBogusPid(t *testing.T) {
	if pidAlive(0x7fffffff) {
		t.Error("expected a nonexistent pid to report not alive")
	}
}
