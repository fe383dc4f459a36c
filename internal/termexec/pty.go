package termexec

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"

	"loom/internal/batchexec"
)

// spawnPTY starts cmd's argv under a fresh pseudo-terminal, in its own
// process group (so Registry.Cancel/CancelAll can SIGTERM the whole
// group, not just the immediate child), and returns the pty master end.
func spawnPTY(cmd *batchexec.Command) (*exec.Cmd, *os.File, error) {
	c := exec.Command(cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	master, err := pty.Start(c)
	if err != nil {
		return nil, nil, err
	}
	return c, master, nil
}
