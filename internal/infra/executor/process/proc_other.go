//go:build !unix

package process

import "os/exec"

// killProcessTree falls back to killing the direct child; WaitDelay bounds
// how long orphaned grandchildren can hold the output pipes.
func killProcessTree(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}
}
