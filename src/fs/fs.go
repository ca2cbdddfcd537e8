// Package fs provides various filesystem helpers.
package fs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/flaker/flaker/src/cli/logging"
)

var log = logging.Log

// DirPermissions are the default permission bits we apply to directories.
const DirPermissions = os.ModeDir | 0775

// WriteFile writes data from a reader to the file named 'to', with an attempt to perform
// a write & rename so a half-written report is never left behind.
func WriteFile(from io.Reader, to string, mode os.FileMode) error {
	dir, file := filepath.Split(to)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return err
	}
	tempFile, err := os.CreateTemp(dir, "."+file)
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name()) // No-op once the rename has happened
	if _, err := io.Copy(tempFile, from); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0664
	}
	if err := os.Chmod(tempFile.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tempFile.Name(), to)
}
