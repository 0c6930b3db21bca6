package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/wasmrun/internal/config"
)

// Output file names written by the default post-build step.
const (
	ScriptName = "app.js"
	WasmName   = "app_bg.wasm"
)

// Binding is the result of binding generation.
type Binding struct {
	Script   []byte // ES module exporting a default init function
	WasmPath string
}

// Binder generates the JavaScript companion for a compiled binary.
type Binder interface {
	Bind(ctx context.Context, wasmPath string) (Binding, error)
}

// loaderScript is appended to wasm_exec.js. It turns the classic runtime script into
// an ES module whose default export instantiates and starts the binary.
const loaderScript = `
export default async function init(input) {
	const go = new globalThis.Go();
	if (input === undefined) {
		input = new URL("` + WasmName + `", import.meta.url);
	}
	if (typeof input === "string" || input instanceof URL || (typeof Request === "function" && input instanceof Request)) {
		input = fetch(input);
	}
	const source = await input;
	let result;
	if (typeof Response === "function" && source instanceof Response) {
		if (typeof WebAssembly.instantiateStreaming === "function") {
			try {
				result = await WebAssembly.instantiateStreaming(source.clone(), go.importObject);
			} catch (e) {
				if (source.headers.get("Content-Type") === "application/wasm") {
					throw e;
				}
				console.warn("WebAssembly.instantiateStreaming failed, falling back to ArrayBuffer instantiation", e);
			}
		}
		if (result === undefined) {
			result = await WebAssembly.instantiate(await source.arrayBuffer(), go.importObject);
		}
	} else {
		result = await WebAssembly.instantiate(source, go.importObject);
	}
	const instance = result instanceof WebAssembly.Instance ? result : result.instance;
	go.run(instance);
	return instance;
}
`

// LoaderScript returns the ES module loader appended to the runtime support script.
func LoaderScript() string { return loaderScript }

// RuntimeBinder builds the companion script from the toolchain's wasm_exec.js.
// The binary itself passes through unchanged.
type RuntimeBinder struct {
	Toolchain config.Toolchain
	GoRoot    string

	// TinyGoRoot resolves TINYGOROOT; nil runs `tinygo env TINYGOROOT`.
	TinyGoRoot func(ctx context.Context) (string, error)
}

func (b RuntimeBinder) Bind(ctx context.Context, wasmPath string) (Binding, error) {
	if _, err := os.Stat(wasmPath); err != nil {
		return Binding{}, &BindingError{Path: wasmPath, Err: err}
	}
	support, err := b.supportScript(ctx)
	if err != nil {
		return Binding{}, &BindingError{Path: wasmPath, Err: err}
	}

	var script bytes.Buffer
	script.Write(support)
	if !bytes.HasSuffix(support, []byte("\n")) {
		script.WriteByte('\n')
	}
	script.WriteString(loaderScript)
	return Binding{Script: script.Bytes(), WasmPath: wasmPath}, nil
}

func (b RuntimeBinder) supportScript(ctx context.Context) ([]byte, error) {
	candidates, err := b.candidates(ctx)
	if err != nil {
		return nil, err
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return nil, errors.New("wasm_exec.js not found in " + strings.Join(candidates, ", "))
}

func (b RuntimeBinder) candidates(ctx context.Context) ([]string, error) {
	if b.Toolchain == config.ToolchainTinyGo {
		lookup := b.TinyGoRoot
		if lookup == nil {
			lookup = tinyGoRoot
		}
		root, err := lookup(ctx)
		if err != nil {
			return nil, err
		}
		return []string{filepath.Join(root, "targets", "wasm_exec.js")}, nil
	}
	if b.GoRoot == "" {
		return nil, errors.New("GOROOT is unknown")
	}
	return []string{
		filepath.Join(b.GoRoot, "lib", "wasm", "wasm_exec.js"),
		filepath.Join(b.GoRoot, "misc", "wasm", "wasm_exec.js"),
	}, nil
}

func tinyGoRoot(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "tinygo", "env", "TINYGOROOT").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
