package fsops

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

type fakeNode struct {
	mode fs.FileMode
	size int64
}

// FakeDeleter implements Deleter over an in-memory tree for testing.
// Records every call in order and is safe for concurrent use.
type FakeDeleter struct {
	mu    sync.Mutex
	nodes map[string]fakeNode
	fail  map[string]error
	calls []string
}

// NewFakeDeleter returns an empty in-memory tree
func NewFakeDeleter() *FakeDeleter {
	return &FakeDeleter{
		nodes: make(map[string]fakeNode),
		fail:  make(map[string]error),
	}
}

// AddDir adds a directory and any missing parents
func (f *FakeDeleter) AddDir(p string) {
	f.add(p, fakeNode{mode: fs.ModeDir | 0o755})
}

// AddFile adds a regular file of the given size and any missing parents
func (f *FakeDeleter) AddFile(p string, size int64) {
	f.add(p, fakeNode{mode: 0o644, size: size})
}

// AddSymlink adds a symlink entry and any missing parents
func (f *FakeDeleter) AddSymlink(p string) {
	f.add(p, fakeNode{mode: fs.ModeSymlink | 0o777})
}

// Fail makes every removal of p return err
func (f *FakeDeleter) Fail(p string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[path.Clean(p)] = err
}

// Exists reports whether p is still present
func (f *FakeDeleter) Exists(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[path.Clean(p)]
	return ok
}

// Calls returns the recorded calls in the order they happened.
// Entries look like "readdir:/a", "rm:/a/x", "rmdir:/a".
func (f *FakeDeleter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeDeleter) add(p string, n fakeNode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if _, ok := f.nodes[dir]; !ok {
			f.nodes[dir] = fakeNode{mode: fs.ModeDir | 0o755}
		}
	}
	f.nodes[p] = n
}

func (f *FakeDeleter) children(dir string) []string {
	prefix := dir + "/"
	if dir == "/" {
		prefix = "/"
	}
	var out []string
	for p := range f.nodes {
		if strings.HasPrefix(p, prefix) && !strings.Contains(p[len(prefix):], "/") && p != dir {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (f *FakeDeleter) ReadDir(dir string) ([]fs.DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir = path.Clean(dir)
	f.calls = append(f.calls, "readdir:"+dir)

	n, ok := f.nodes[dir]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: dir, Err: syscall.ENOENT}
	}
	if !n.mode.IsDir() {
		return nil, &fs.PathError{Op: "readdirent", Path: dir, Err: syscall.ENOTDIR}
	}

	var entries []fs.DirEntry
	for _, c := range f.children(dir) {
		entries = append(entries, fakeDirEntry{name: path.Base(c), node: f.nodes[c]})
	}
	return entries, nil
}

func (f *FakeDeleter) RemoveFile(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	f.calls = append(f.calls, "rm:"+p)

	if err, ok := f.fail[p]; ok {
		return &fs.PathError{Op: "remove", Path: p, Err: err}
	}
	if _, ok := f.nodes[p]; !ok {
		return &fs.PathError{Op: "remove", Path: p, Err: syscall.ENOENT}
	}
	delete(f.nodes, p)
	return nil
}

func (f *FakeDeleter) RemoveDir(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	f.calls = append(f.calls, "rmdir:"+p)

	if err, ok := f.fail[p]; ok {
		return &fs.PathError{Op: "remove", Path: p, Err: err}
	}
	if _, ok := f.nodes[p]; !ok {
		return &fs.PathError{Op: "remove", Path: p, Err: syscall.ENOENT}
	}
	if len(f.children(p)) > 0 {
		return &fs.PathError{Op: "remove", Path: p, Err: syscall.ENOTEMPTY}
	}
	delete(f.nodes, p)
	return nil
}

type fakeDirEntry struct {
	name string
	node fakeNode
}

func (e fakeDirEntry) Name() string               { return e.name }
func (e fakeDirEntry) IsDir() bool                { return e.node.mode.IsDir() }
func (e fakeDirEntry) Type() fs.FileMode          { return e.node.mode.Type() }
func (e fakeDirEntry) Info() (fs.FileInfo, error) { return fakeInfo(e), nil }

type fakeInfo fakeDirEntry

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return i.node.size }
func (i fakeInfo) Mode() fs.FileMode  { return i.node.mode }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.node.mode.IsDir() }
func (i fakeInfo) Sys() any           { return nil }
