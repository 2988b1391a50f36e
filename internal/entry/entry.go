package entry

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Kind classifies a filesystem entry. It is decided once, without following
// symlinks, and never re-queried.
type Kind int

const (
	File Kind = iota
	Dir
	Symlink
)

func (k Kind) String() string {
	switch k {
	case Dir:
		return "directory"
	case Symlink:
		return "symlink"
	default:
		return "file"
	}
}

// Entry is a path tagged with its kind
type Entry struct {
	Path string
	Kind Kind
	Size int64 // only populated when the caller asked for sizes
}

// KindOf maps a file mode to a Kind. Sockets, fifos and devices are files.
func KindOf(mode fs.FileMode) Kind {
	switch {
	case mode&fs.ModeSymlink != 0:
		return Symlink
	case mode.IsDir():
		return Dir
	default:
		return File
	}
}

// FromDirEntry builds an Entry for a child of parent
func FromDirEntry(parent string, d fs.DirEntry) Entry {
	return Entry{
		Path: filepath.Join(parent, d.Name()),
		Kind: KindOf(d.Type()),
	}
}

// Lstat classifies path without following a trailing symlink
func Lstat(path string) (Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{Path: path, Kind: KindOf(info.Mode())}
	if e.Kind != Dir {
		e.Size = info.Size()
	}
	return e, nil
}
