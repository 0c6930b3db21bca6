package process

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// ExitStatus describes how a child terminated unsuccessfully.
type ExitStatus struct {
	Code   int    // exit code, -1 when terminated by a signal
	Signal string // signal name, empty for a normal exit
}

// Signaled reports whether the child was terminated by a signal.
func (s ExitStatus) Signaled() bool {
	return s.Signal != ""
}

func (s ExitStatus) String() string {
	if s.Signaled() {
		return "terminated by signal " + s.Signal
	}
	return fmt.Sprintf("exit code %d", s.Code)
}

// StatusOf extracts the ExitStatus from an error returned by exec.Cmd.Wait or Run.
// ok is false when err is nil or not an exit error (e.g. the binary was not found).
func StatusOf(err error) (status ExitStatus, ok bool) {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitStatus{}, false
	}
	status.Code = exitErr.ExitCode()
	if ws, isWait := exitErr.Sys().(syscall.WaitStatus); isWait && ws.Signaled() {
		status.Code = -1
		status.Signal = ws.Signal().String()
	} else if status.Code == -1 {
		status.Signal = "unknown"
	}
	return status, true
}
