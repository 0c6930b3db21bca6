package assets

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gorilla/css/scanner"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/logfields"
	"git.home.luguber.info/inful/wasmrun/internal/observability"
)

// StyleOptions control stylesheet compilation.
type StyleOptions struct {
	UnitDir    string
	LookupDirs []string // relative to UnitDir
	SassBinary string
	Compressed bool // Release and Profiling

	// Run executes the sass command; nil runs it directly.
	Run      func(ctx context.Context, cmd *exec.Cmd) error
	LookPath func(string) (string, error)
}

type styleSource struct {
	dir  string // lookup dir
	path string
	rel  string
}

// BuildStyles compiles .scss/.sass sources and copies .css files from each existing
// lookup directory into outDir, mirroring relative paths. Files whose names begin
// with "_" are partials and produce no output.
func BuildStyles(ctx context.Context, opts StyleOptions, outDir string) (int, error) {
	var sassSources, cssSources []styleSource
	for _, d := range opts.LookupDirs {
		dir := resolve(opts.UnitDir, d)
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				observability.WarnContext(ctx, "could not walk into directory", logfields.Path(path), logfields.Error(err))
				return nil
			}
			if entry.IsDir() || strings.HasPrefix(entry.Name(), "_") {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".scss", ".sass":
				sassSources = append(sassSources, styleSource{dir: dir, path: path, rel: rel})
			case ".css":
				cssSources = append(cssSources, styleSource{dir: dir, path: path, rel: rel})
			}
			return nil
		})
		if err != nil {
			return 0, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to scan style directory").
				WithContext("path", dir).Build()
		}
	}

	written := 0
	if len(sassSources) > 0 {
		bin, err := lookSass(opts)
		if err != nil {
			return 0, ferrors.WrapError(err, ferrors.CategoryFileSystem,
				fmt.Sprintf("SASS sources found but %q is not installed", sassBinary(opts))).
				WithContext("path", sassSources[0].path).
				UserAction().
				Build()
		}
		for _, src := range sassSources {
			dst := filepath.Join(outDir, strings.TrimSuffix(src.rel, filepath.Ext(src.rel))+".css")
			if err := compileSass(ctx, opts, bin, src, dst); err != nil {
				return written, err
			}
			written++
		}
	}

	for _, src := range cssSources {
		dst := filepath.Join(outDir, src.rel)
		if err := copyCSS(src.path, dst, opts.Compressed); err != nil {
			return written, ferrors.WrapError(err, ferrors.CategoryFileSystem, "could not copy stylesheet").
				WithContext("path", src.path).Build()
		}
		written++
	}
	return written, nil
}

func sassBinary(opts StyleOptions) string {
	if opts.SassBinary == "" {
		return "sass"
	}
	return opts.SassBinary
}

func lookSass(opts StyleOptions) (string, error) {
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return lookPath(sassBinary(opts))
}

// SassArgs returns the sass CLI arguments for one source.
func SassArgs(src, dst, loadPath string, compressed bool) []string {
	style := "expanded"
	if compressed {
		style = "compressed"
	}
	return []string{"--no-source-map", "--style=" + style, "--load-path=" + loadPath, src, dst}
}

func compileSass(ctx context.Context, opts StyleOptions, bin string, src styleSource, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "could not create stylesheet directory").
			WithContext("path", dst).Build()
	}
	cmd := exec.CommandContext(ctx, bin, SassArgs(src.path, dst, src.dir, opts.Compressed)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	run := opts.Run
	if run == nil {
		run = func(_ context.Context, cmd *exec.Cmd) error { return cmd.Run() }
	}
	if err := run(ctx, cmd); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryBuild,
			fmt.Sprintf("could not convert SASS file `%s` to `%s`", src.path, dst)).Build()
	}
	return nil
}

func copyCSS(src, dst string, minify bool) error {
	if !minify {
		return copyFile(src, dst)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte(MinifyCSS(string(data))), 0o644)
}

// MinifyCSS drops comments and collapses whitespace using the CSS tokenizer.
// Whitespace is kept only where removing it would merge two tokens.
func MinifyCSS(src string) string {
	var out strings.Builder
	s := scanner.New(src)
	pendingSpace := false
	var last *scanner.Token
	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			break
		}
		switch tok.Type {
		case scanner.TokenComment:
			continue
		case scanner.TokenS:
			pendingSpace = true
			continue
		}
		if pendingSpace && last != nil && needsSpace(last, tok) {
			out.WriteByte(' ')
		}
		pendingSpace = false
		out.WriteString(tok.Value)
		last = tok
	}
	return out.String()
}

// needsSpace reports whether whitespace between a and b is significant.
func needsSpace(a, b *scanner.Token) bool {
	return !isChar(a, "{}:;,>") && !isChar(b, "{};,>")
}

func isChar(t *scanner.Token, set string) bool {
	return t.Type == scanner.TokenChar && len(t.Value) == 1 && strings.Contains(set, t.Value)
}
