//go:build unix

package spawn

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup signals the whole process group, not just the direct
// child — a compiler driver like gcc/clang may itself fork helper
// processes, so a naive fire-and-forget spawn would leave them running.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid := cmd.Process.Pid
	unix.Kill(-pgid, unix.SIGTERM)
	unix.Kill(-pgid, unix.SIGKILL)
}
