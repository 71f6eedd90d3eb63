//go:build unix

package supervisor

import (
	"os/exec"
	"syscall"
)

// isolate puts the child in its own process group so terminal signals aimed
// at the supervisor (Ctrl-C) do not reach the engine directly.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
