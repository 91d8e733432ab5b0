package storage

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	filePermission = 0644
	dirPermission  = 0755
)

// FileSink writes generated files below a root directory.
type FileSink struct {
	root   string
	logger *slog.Logger

	written   []string
	unchanged int
}

// NewFileSink creates a sink rooted at root. The directory is created on the
// first write.
func NewFileSink(root string, logger *slog.Logger) *FileSink {
	return &FileSink{root: root, logger: logger}
}

// Root returns the output directory.
func (s *FileSink) Root() string { return s.root }

// WriteFile writes content to name, relative to the root. Files whose
// content is already current are left untouched, so watchers on the output
// directory see no event.
func (s *FileSink) WriteFile(name string, content []byte) error {
	if err := validateName(name); err != nil {
		return fmt.Errorf("invalid output name: %w", err)
	}
	path := filepath.Join(s.root, filepath.FromSlash(name))
	if err := s.verifyPathInRoot(path); err != nil {
		return err
	}

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		s.unchanged++
		s.logger.Debug("output unchanged", slog.String("path", path))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermission); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := atomicWriteFile(path, content, filePermission); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	s.written = append(s.written, name)

	s.logger.Debug("wrote output",
		slog.String("path", path),
		slog.Int("bytes", len(content)))
	return nil
}

// Written returns the names written so far, in order.
func (s *FileSink) Written() []string {
	return append([]string(nil), s.written...)
}

// Unchanged returns how many writes were skipped because the file was
// already current.
func (s *FileSink) Unchanged() int { return s.unchanged }

// atomicWriteFile writes data to a file atomically by writing to a temp file
// in the same directory, syncing, then renaming over the target path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}

// validateName checks that a generated file name is a clean relative path.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("name must not contain null bytes")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("name %q must be relative", name)
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." {
			return fmt.Errorf("name must not contain %q", "..")
		}
	}
	return nil
}

// verifyPathInRoot checks that the resolved path stays below the root.
func (s *FileSink) verifyPathInRoot(path string) error {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return fmt.Errorf("path outside output directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %q escapes output directory", path)
	}
	return nil
}
