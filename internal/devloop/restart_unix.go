//go:build unix

package devloop

import (
	"os"
	"os/exec"
	"syscall"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
)

// Exec replaces the current process image with argv. It only returns on failure.
func Exec(argv []string) error {
	if len(argv) == 0 {
		return ferrors.InternalError("empty restart command").Build()
	}
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryProcess, "restart command not found").
			WithContext("command", argv[0]).Build()
	}
	if err := syscall.Exec(bin, argv, os.Environ()); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryProcess, "failed to re-execute").
			WithContext("command", bin).Build()
	}
	return nil
}
