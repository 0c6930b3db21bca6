package project

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GoEnv represents the subset of `go env` output wasmrun needs.
type GoEnv struct {
	GoWork string
	GoMod  string
	GoRoot string
}

// GoEnvReader abstracts go env lookups for testability.
type GoEnvReader interface {
	Read(ctx context.Context, dir string) (GoEnv, error)
}

// OSGoEnvReader runs the go command found on PATH.
type OSGoEnvReader struct{}

func (OSGoEnvReader) Read(ctx context.Context, dir string) (GoEnv, error) {
	cmd := exec.CommandContext(ctx, "go", "env", "-json", "GOWORK", "GOMOD", "GOROOT")
	cmd.Dir = dir

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return GoEnv{}, fmt.Errorf("go env failed: %w: %s", err, errMsg)
		}
		return GoEnv{}, fmt.Errorf("go env failed: %w", err)
	}

	var raw struct {
		GoWork string `json:"GOWORK"`
		GoMod  string `json:"GOMOD"`
		GoRoot string `json:"GOROOT"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return GoEnv{}, fmt.Errorf("failed to parse go env output: %w", err)
	}

	return normalizeGoEnv(raw.GoWork, raw.GoMod, raw.GoRoot), nil
}

// StaticGoEnv returns a fixed GoEnv; used by tests and by callers that already know the layout.
type StaticGoEnv GoEnv

func (s StaticGoEnv) Read(context.Context, string) (GoEnv, error) {
	e := GoEnv(s)
	return normalizeGoEnv(e.GoWork, e.GoMod, e.GoRoot), nil
}

func normalizeGoEnv(goWork, goMod, goRoot string) GoEnv {
	goWork = strings.TrimSpace(goWork)
	goMod = strings.TrimSpace(goMod)
	goRoot = strings.TrimSpace(goRoot)

	if strings.EqualFold(goWork, "off") {
		goWork = ""
	}

	if strings.EqualFold(goMod, os.DevNull) || strings.EqualFold(goMod, "NUL") {
		goMod = ""
	}

	if goWork != "" {
		goWork = filepath.Clean(goWork)
	}
	if goMod != "" {
		goMod = filepath.Clean(goMod)
	}
	if goRoot != "" {
		goRoot = filepath.Clean(goRoot)
	}

	return GoEnv{GoWork: goWork, GoMod: goMod, GoRoot: goRoot}
}
