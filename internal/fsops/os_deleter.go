package fsops

import (
	"io/fs"
	"os"
)

// OSDeleter implements Deleter using real os package calls
type OSDeleter struct{}

func (OSDeleter) ReadDir(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(dir)
}

// RemoveFile uses os.Remove, which unlinks and never follows a symlink
func (OSDeleter) RemoveFile(path string) error {
	return os.Remove(path)
}

// RemoveDir uses os.Remove, which only succeeds on an empty directory
func (OSDeleter) RemoveDir(path string) error {
	return os.Remove(path)
}
