//go:build windows
// +build windows

package mediaops

import "os/exec"

// configureCmdSysProcAttr is a no-op on Windows to keep builds portable.
func configureCmdSysProcAttr(cmd *exec.Cmd) {
}
