package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxFileBytes caps reads and uploads.
const maxFileBytes = 32 << 20

// ReadFile returns the resolved path and content of a text file.
func (w *Workspace) ReadFile(path string) (string, string, error) {
	if path == "" {
		return "", "", fmt.Errorf("path is required: %w", ErrBadRequest)
	}
	full := w.Resolve(path)
	fi, err := os.Stat(full)
	if os.IsNotExist(err) {
		return "", "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return "", "", err
	}
	if fi.IsDir() {
		return "", "", fmt.Errorf("%s is a directory: %w", full, ErrBadRequest)
	}
	if fi.Size() > maxFileBytes {
		return "", "", fmt.Errorf("%s is larger than %d bytes: %w", full, maxFileBytes, ErrBadRequest)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", "", err
	}
	return full, string(data), nil
}

// WriteFile stores content at path, creating parent directories.
func (w *Workspace) WriteFile(path, content string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required: %w", ErrBadRequest)
	}
	full := w.Resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", err
	}
	return full, nil
}

// Upload stores r as name inside dir (the root when empty). Only the base
// name of the upload is used.
func (w *Workspace) Upload(dir, name string, r io.Reader) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	if base == "/" || base == "." || base == ".." {
		return "", fmt.Errorf("invalid file name %q: %w", name, ErrBadRequest)
	}
	target := w.Resolve(dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", err
	}

	full := filepath.Join(target, base)
	f, err := os.Create(full)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, io.LimitReader(r, maxFileBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxFileBytes {
		err = fmt.Errorf("upload larger than %d bytes: %w", maxFileBytes, ErrBadRequest)
	}
	if err != nil {
		_ = os.Remove(full)
		return "", err
	}
	return full, nil
}
