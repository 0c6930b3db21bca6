//go:build !unix

package devloop

import (
	"os"
	"os/exec"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
)

// Exec starts argv with the inherited stdio and exits the current process. There is
// a brief window where both processes are alive.
func Exec(argv []string) error {
	if len(argv) == 0 {
		return ferrors.InternalError("empty restart command").Build()
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryProcess, "failed to spawn restart command").
			WithContext("command", argv[0]).Build()
	}
	os.Exit(0)
	return nil
}
