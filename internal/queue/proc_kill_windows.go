//go:build windows
// +build windows

package queue

import "os"

// killProcessTree attempts to kill the process. Windows lacks a simple
// process-group SIGKILL equivalent; this falls back to killing just the
// direct child.
func killProcessTree(p *os.Process) error {
	return p.Kill()
}
