//go:build linux
// +build linux

package queue

import (
	"os"
	"syscall"
)

// killProcessTree sends SIGKILL to the entire process group on Linux. The
// Supervisor wires this into every job's pipeline.Control as its hard-kill
// primitive for cancel.
func killProcessTree(p *os.Process) error {
	return syscall.Kill(-p.Pid, syscall.SIGKILL)
}
