package storage

import (
	"os"
	"path/filepath"
)

const appDir = ".nrpc"

// DefaultStoragePath returns the per-user directory for nrpc state:
//   - macOS/Linux: ~/.nrpc
//   - Windows: %USERPROFILE%\.nrpc
func DefaultStoragePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDir), nil
}
