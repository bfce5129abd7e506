package cli

import (
	"errors"
	"fmt"
)

// Exit codes per spec.md §6.1's CLI wrapper contract.
const (
	exitSuccess     = 0
	exitBadUsage    = 64
	exitInternal    = 70
	exitInterrupted = 130
)

// errInterrupted marks a command aborted by SIGINT/SIGTERM so Execute can
// map it to exit code 130 instead of the generic internal-error code.
var errInterrupted = errors.New("interrupted")

// usageError marks a command failure caused by bad arguments/flags, mapped
// to exit code 64 instead of the generic internal-error code.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func newUsageError(format string, a ...interface{}) error {
	return &usageError{err: fmt.Errorf(format, a...)}
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ue *usageError
	if errors.As(err, &ue) {
		return exitBadUsage
	}
	if errors.Is(err, errInterrupted) {
		return exitInterrupted
	}
	return exitInternal
}
