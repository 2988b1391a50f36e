package fsops

import "io/fs"

// Deleter abstracts the filesystem calls made by tree deletion.
// Enables instrumenting tests to observe call order and inject failures.
type Deleter interface {
	// ReadDir lists the immediate children of dir without following symlinks
	ReadDir(dir string) ([]fs.DirEntry, error)
	// RemoveFile unlinks a non-directory. A symlink is removed as a link.
	RemoveFile(path string) error
	// RemoveDir removes an empty directory
	RemoveDir(path string) error
}
