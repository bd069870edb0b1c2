// Package tempfiles owns the service's dedicated scratch directory. Audio
// chunks and synthesized WAVs live there only for the duration of a request.
package tempfiles

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

type Dir struct {
	path string
}

// New creates dir (relative paths resolve against the working directory)
// if it does not exist yet.
func New(dir string) (*Dir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve temp dir: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &Dir{path: abs}, nil
}

func (d *Dir) Path() string { return d.path }

// NewPath returns a fresh, unused file name such as chunk_<uuid>.wav.
func (d *Dir) NewPath(prefix, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return filepath.Join(d.path, fmt.Sprintf("%s_%s.%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""), ext))
}

// Write stores data under a fresh name and returns its path.
func (d *Dir) Write(prefix, ext string, data []byte) (string, error) {
	p := d.NewPath(prefix, ext)
	if err := os.WriteFile(p, data, filePerm); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return p, nil
}

// Remove deletes the files, logging rather than failing: cleanup runs on
// paths where the request has already been answered.
func (d *Dir) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Warn("temp file cleanup failed", "path", p, "error", err)
			continue
		}
		slog.Debug("deleted temp file", "path", p)
	}
}

// Reset empties the directory and recreates it. Called on shutdown.
func (d *Dir) Reset() error {
	if err := os.RemoveAll(d.path); err != nil {
		return fmt.Errorf("remove temp dir: %w", err)
	}
	if err := os.MkdirAll(d.path, dirPerm); err != nil {
		return fmt.Errorf("recreate temp dir: %w", err)
	}
	return nil
}
