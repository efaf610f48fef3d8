//go:build unix

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// killProcessTree starts the child in its own process group and makes
// context cancellation kill the whole group, grandchildren included.
func killProcessTree(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
