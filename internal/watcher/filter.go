package watcher

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/denormal/go-gitignore"
)

// FilterOptions describe the paths a watcher must never report.
type FilterOptions struct {
	Root         string // workspace root, base of the .gitignore rules
	OutputDir    string
	TargetDir    string
	UseGitignore bool
}

// Filter decides which paths are irrelevant for rebuilds.
type Filter struct {
	root     string
	excluded []string
	ignore   gitignore.GitIgnore
}

// NewFilter builds a filter. A missing .gitignore is not an error.
func NewFilter(opts FilterOptions) (*Filter, error) {
	f := &Filter{root: opts.Root}
	for _, dir := range []string{opts.OutputDir, opts.TargetDir} {
		if dir != "" {
			f.excluded = append(f.excluded, filepath.Clean(dir))
		}
	}
	if opts.UseGitignore && opts.Root != "" {
		data, err := os.ReadFile(filepath.Join(opts.Root, ".gitignore"))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			f.ignore = gitignore.New(bytes.NewReader(data), opts.Root, nil)
		}
	}
	return f, nil
}

// Ignored reports whether path should be dropped. isDir is used for directory-only
// gitignore patterns.
func (f *Filter) Ignored(path string, isDir bool) bool {
	if f == nil {
		return false
	}
	path = filepath.Clean(path)
	for _, dir := range f.excluded {
		if within(path, dir) {
			return true
		}
	}
	if ignoredName(filepath.Base(path)) {
		return true
	}
	if f.ignore != nil && f.root != "" {
		rel, err := filepath.Rel(f.root, path)
		if err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			if match := f.ignore.Relative(filepath.ToSlash(rel), isDir); match != nil && match.Ignore() {
				return true
			}
		}
	}
	return false
}

// ignoredName covers dotfiles and editor swap/temp files.
func ignoredName(base string) bool {
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}

func within(p, dir string) bool {
	if p == dir {
		return true
	}
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
