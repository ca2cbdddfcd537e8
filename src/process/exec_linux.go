package process

import (
	"os/exec"
	"syscall"
)

// ExecCommand creates an external command with this executor's argv[0].
// We set Pdeathsig to try to make sure commands don't outlive us if we die, and put each one
// in its own process group so anything it spawns is killed along with it.
// N.B. This does not start the command - the caller must handle that.
func (e *Executor) ExecCommand(command string, args ...string) *exec.Cmd {
	cmd := exec.Command(command, args...)
	cmd.Args[0] = e.argv0
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
		Setpgid:   true,
	}
	return cmd
}
