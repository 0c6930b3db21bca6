package pipeline

import (
	"fmt"
)

// CompileError reports an unsuccessful compiler run.
type CompileError struct {
	ExitCode int    // -1 when terminated by a signal or when the compiler did not start
	Signal   string // set when terminated by a signal
	Err      error
}

func (e *CompileError) Error() string {
	switch {
	case e.Signal != "":
		return "compiler was terminated by signal " + e.Signal
	case e.ExitCode >= 0:
		return fmt.Sprintf("compiler exited with code %d", e.ExitCode)
	case e.Err != nil:
		return fmt.Sprintf("compiler could not be run: %v", e.Err)
	default:
		return "compiler failed"
	}
}

func (e *CompileError) Unwrap() error { return e.Err }

// BindingError reports a failure to generate the JavaScript companion script.
type BindingError struct {
	Path string
	Err  error
}

func (e *BindingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("binding generation failed for %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("binding generation failed: %v", e.Err)
}

func (e *BindingError) Unwrap() error { return e.Err }

// OptimizationError reports a failed optimizer run. Transient is set when the
// output matched a known cache-contention signature.
type OptimizationError struct {
	Attempts  int
	Transient bool
	Output    string
	Err       error
}

func (e *OptimizationError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("wasm-opt failed (%s) after %d attempt(s): %v", kind, e.Attempts, e.Err)
}

func (e *OptimizationError) Unwrap() error { return e.Err }
