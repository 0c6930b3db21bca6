package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/wasmrun/internal/logfields"
	"git.home.luguber.info/inful/wasmrun/internal/metrics"
	"git.home.luguber.info/inful/wasmrun/internal/observability"
	"git.home.luguber.info/inful/wasmrun/internal/retry"
)

// transientSignatures identify optimizer failures caused by concurrent cache access.
var transientSignatures = []string{"Directory not empty", "binary does not exist"}

// IsTransient reports whether optimizer output matches a known transient signature.
func IsTransient(output string) bool {
	for _, sig := range transientSignatures {
		if strings.Contains(output, sig) {
			return true
		}
	}
	return false
}

// Optimizer shrinks a binary in place or into a new file and returns the resulting path.
type Optimizer interface {
	Optimize(ctx context.Context, p Profile, wasmPath string) (string, error)
}

// WasmOpt runs binaryen's wasm-opt.
type WasmOpt struct {
	Binary    string // default "wasm-opt"
	ExtraArgs []string
	Policy    retry.Policy
	Runner    Runner
	Sleep     retry.Sleeper
	Recorder  metrics.Recorder
	LookPath  func(string) (string, error)
}

// Args returns the wasm-opt arguments for profile: Release shrinks at level 1 without
// debug info, Profiling keeps names (-g) and does not shrink.
func (o WasmOpt) Args(p Profile, in, out string) []string {
	shrink, opt := 1, 2
	if p == Profiling {
		shrink = 0
	}
	args := []string{in, "-o", out, "-O", "-ol", strconv.Itoa(opt), "-s", strconv.Itoa(shrink)}
	if p == Profiling {
		args = append(args, "-g")
	}
	return append(args, o.ExtraArgs...)
}

func (o WasmOpt) Optimize(ctx context.Context, p Profile, wasmPath string) (string, error) {
	bin := o.Binary
	if bin == "" {
		bin = "wasm-opt"
	}
	lookPath := o.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	resolved, err := lookPath(bin)
	if err != nil {
		observability.WarnContext(ctx, "wasm-opt not found; no optimization has been done on the WASM",
			logfields.Command(bin))
		return wasmPath, nil
	}

	runner := o.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	rec := o.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	policy := o.Policy
	if policy.Initial == 0 && policy.Max == 0 && policy.MaxRetries == 0 {
		policy = retry.DefaultPolicy()
	}
	out := strings.TrimSuffix(wasmPath, ".wasm") + "_opt.wasm"

	var lastOutput string
	attempts := 0
	err = policy.Do(ctx, o.Sleep, func(err error) bool {
		var oe *OptimizationError
		if errors.As(err, &oe) && oe.Transient {
			rec.IncOptimizerRetry()
			observability.WarnContext(ctx, "wasm-opt hit a transient failure; retrying", logfields.Attempt(attempts))
			return true
		}
		return false
	}, func(int) error {
		attempts++
		var buf bytes.Buffer
		cmd := exec.Command(resolved, o.Args(p, wasmPath, out)...)
		cmd.Stdout = &buf
		cmd.Stderr = &buf
		runErr := runner.Run(ctx, cmd)
		lastOutput = buf.String()
		if runErr == nil {
			return nil
		}
		return &OptimizationError{Attempts: attempts, Transient: IsTransient(lastOutput), Output: lastOutput, Err: runErr}
	})
	if err != nil {
		var oe *OptimizationError
		if errors.As(err, &oe) {
			oe.Attempts = attempts
			if lastOutput != "" {
				_, _ = os.Stderr.WriteString(lastOutput)
			}
			return "", oe
		}
		return "", &OptimizationError{Attempts: attempts, Err: err}
	}
	slog.Debug("wasm-opt finished", logfields.Path(out), logfields.Attempt(attempts))
	return out, nil
}
