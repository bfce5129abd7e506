//go:build linux
// +build linux

package mediaops

import (
	"os/exec"
	"syscall"
)

// configureCmdSysProcAttr puts the child in its own process group on Linux
// so a hard-cancel can kill the whole tree, not just the direct child.
func configureCmdSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
