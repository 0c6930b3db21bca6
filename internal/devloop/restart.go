package devloop

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"git.home.luguber.info/inful/wasmrun/internal/logfields"
)

// commandLineArguments is the main package path of a binary built from a file list.
const commandLineArguments = "command-line-arguments"

// RestartArgv derives the full-restart command line for a process running exe with
// args. A binary started through `go run <pkg>` is restarted the same way, so edited
// hook code is compiled again. Any other binary is re-executed as is. mainPath is the
// main package path from the build info.
func RestartArgv(exe, mainPath string, args []string) []string {
	if goRunBinary(exe) && mainPath != "" && mainPath != commandLineArguments {
		return append([]string{"go", "run", mainPath}, args...)
	}
	return append([]string{exe}, args...)
}

// goRunBinary reports whether exe sits in the go command's temporary build
// directory ($GOTMPDIR/go-build*/b001/exe/name).
func goRunBinary(exe string) bool {
	dir := filepath.Dir(exe)
	if filepath.Base(dir) != "exe" {
		return false
	}
	for d := dir; d != filepath.Dir(d); d = filepath.Dir(d) {
		if strings.HasPrefix(filepath.Base(d), "go-build") {
			return true
		}
	}
	return false
}

func (s *Supervisor) restartCommand() []string {
	if len(s.RestartCommand) > 0 {
		return s.RestartCommand
	}
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	mainPath := ""
	if info, ok := debug.ReadBuildInfo(); ok {
		mainPath = info.Path
	}
	argv := RestartArgv(exe, mainPath, os.Args[1:])
	if argv[0] == exe {
		slog.Warn("Full restart re-executes the current binary; hook changes need serve.restart_command",
			logfields.Command(exe))
	}
	return argv
}
