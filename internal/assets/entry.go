package assets

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
	"git.home.luguber.info/inful/wasmrun/internal/logfields"
)

// DefaultIndex is written when the unit has neither an index.html nor a static directory.
const DefaultIndex = `<!DOCTYPE html><html><head><meta charset="utf-8"/><script type="module">import init from "/app.js";init();</script></head><body></body></html>`

// EntrySource says where the entry document came from.
type EntrySource string

const (
	EntryCopied    EntrySource = "index"
	EntryStatic    EntrySource = "static"
	EntrySynthetic EntrySource = "default"
)

// WriteEntry provides index.html in outDir. The unit's index file wins, then the
// contents of its static directory, then DefaultIndex.
func WriteEntry(unitDir, index, staticDir, outDir string) (EntrySource, error) {
	if index == "" {
		index = "index.html"
	}
	if staticDir == "" {
		staticDir = "static"
	}
	src := resolve(unitDir, index)
	dst := filepath.Join(outDir, "index.html")

	if fi, err := os.Stat(src); err == nil && !fi.IsDir() {
		if err := copyFile(src, dst); err != nil {
			return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "could not copy index.html").
				WithContext("path", dst).Build()
		}
		return EntryCopied, nil
	}

	static := resolve(unitDir, staticDir)
	if fi, err := os.Stat(static); err == nil && fi.IsDir() {
		if err := CopyDir(static, outDir); err != nil {
			return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "could not copy content of static directory").
				WithContext("path", static).Build()
		}
		return EntryStatic, nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "could not read static directory").
			WithContext("path", static).Build()
	}

	if err := os.WriteFile(dst, []byte(DefaultIndex), 0o644); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "could not write default index.html").
			WithContext("path", dst).Build()
	}
	slog.Debug("Wrote default entry document", logfields.Path(dst))
	return EntrySynthetic, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
