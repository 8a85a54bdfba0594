// Package workspace serves the editor's view of the local filesystem: the
// file tree, single-file reads and writes, uploads, a cached project summary
// and a change watcher.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrNotFound is returned when a requested path does not exist.
	ErrNotFound = errors.New("path not found")
	// ErrNotDir is returned when a directory was expected.
	ErrNotDir = errors.New("not a directory")
	// ErrBadRequest is returned for unusable request parameters.
	ErrBadRequest = errors.New("bad request")
)

// Workspace is a directory the editor works in. Relative request paths are
// resolved against its root; absolute paths are used as given.
type Workspace struct {
	root string
}

// New returns a workspace rooted at root, which must be an existing directory.
func New(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("workspace root %s: %w", abs, ErrNotDir)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// Resolve turns a request path into an absolute, cleaned path. Empty and "."
// mean the root.
func (w *Workspace) Resolve(path string) string {
	if path == "" || path == "." {
		return w.root
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(w.root, path)
}
