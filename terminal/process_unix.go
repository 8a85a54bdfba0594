//go:build !windows

package terminal

import (
	"os/exec"
	"syscall"
)

// isolate starts cmd in its own process group and makes cancellation kill
// the whole group, so grandchildren holding the output pipes die too.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil || cmd.Process.Pid <= 0 {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
