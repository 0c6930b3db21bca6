package pipeline

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/wasmrun/internal/config"
	"git.home.luguber.info/inful/wasmrun/internal/project"
)

// Compiler prepares the toolchain invocation for the frontend unit.
type Compiler struct {
	Toolchain config.Toolchain
	Package   string   // package inside the unit, default "."
	Tags      []string // build tags
	Env       []string // extra KEY=VALUE entries
	Binary    string   // overrides the go/tinygo executable
}

// BinaryPath is where the compiler writes the binary for unit and profile:
// <target>/wasm/{debug|release}/<unit>.wasm.
func BinaryPath(pc *project.Context, unit *project.Unit, p Profile) string {
	return filepath.Join(pc.TargetDir, "wasm", p.dir(), unit.Name+".wasm")
}

// Command returns the compiler command for profile. Output goes to out.
func (c Compiler) Command(pc *project.Context, unit *project.Unit, p Profile, out string) *exec.Cmd {
	pkg := c.Package
	if pkg == "" {
		pkg = "."
	}

	var args []string
	var bin string
	switch c.Toolchain {
	case config.ToolchainTinyGo:
		bin = "tinygo"
		args = []string{"build", "-target", "wasm"}
		switch p {
		case Release:
			args = append(args, "-opt", "z", "-no-debug")
		case Profiling:
			args = append(args, "-opt", "2")
		default:
			args = append(args, "-opt", "1")
		}
	default:
		bin = pc.GoBinary()
		args = []string{"build"}
		switch p {
		case Release:
			args = append(args, "-trimpath", "-ldflags=-s -w")
		case Profiling:
			args = append(args, "-trimpath")
		}
	}
	if len(c.Tags) > 0 {
		args = append(args, "-tags", strings.Join(c.Tags, ","))
	}
	args = append(args, "-o", out, pkg)

	if c.Binary != "" {
		bin = c.Binary
	}
	cmd := exec.Command(bin, args...)
	cmd.Dir = unit.Dir
	cmd.Env = append(os.Environ(), "GOOS=js", "GOARCH=wasm")
	cmd.Env = append(cmd.Env, c.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}
