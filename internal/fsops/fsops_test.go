package fsops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"syscall"
	"testing"
)

func TestOSDeleter(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, "dir")
	file := filepath.Join(dir, "file")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	var d Deleter = OSDeleter{}

	des, err := d.ReadDir(dir)
	if err != nil || len(des) != 1 || des[0].Name() != "file" {
		t.Fatalf("ReadDir = %v, %v", des, err)
	}

	if err := d.RemoveDir(dir); err == nil {
		t.Error("RemoveDir on a non-empty directory should fail")
	}
	if err := d.RemoveFile(file); err != nil {
		t.Fatalf("RemoveFile failed: %v", err)
	}
	if err := d.RemoveDir(dir); err != nil {
		t.Fatalf("RemoveDir failed: %v", err)
	}
	if err := d.RemoveFile(file); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("RemoveFile on missing file = %v, expected ErrNotExist", err)
	}
}

func TestFakeDeleterTree(t *testing.T) {
	f := NewFakeDeleter()
	f.AddFile("/a/y/z", 3)
	f.AddFile("/a/x", 1)
	f.AddSymlink("/a/link")

	des, err := f.ReadDir("/a")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var names []string
	for _, de := range des {
		names = append(names, de.Name())
	}
	if !reflect.DeepEqual(names, []string{"link", "x", "y"}) {
		t.Errorf("ReadDir names = %v, expected sorted [link x y]", names)
	}
	if des[0].Type()&fs.ModeSymlink == 0 || !des[2].IsDir() {
		t.Errorf("Unexpected entry types: %v %v", des[0].Type(), des[2].Type())
	}
	info, _ := des[1].Info()
	if info.Size() != 1 {
		t.Errorf("x size = %d, expected 1", info.Size())
	}

	if err := f.RemoveDir("/a/y"); !errors.Is(err, syscall.ENOTEMPTY) {
		t.Errorf("RemoveDir(/a/y) = %v, expected ENOTEMPTY", err)
	}
	if err := f.RemoveFile("/a/y/z"); err != nil {
		t.Fatalf("RemoveFile failed: %v", err)
	}
	if err := f.RemoveDir("/a/y"); err != nil {
		t.Fatalf("RemoveDir failed: %v", err)
	}
	if f.Exists("/a/y") {
		t.Error("/a/y should be gone")
	}

	if _, err := f.ReadDir("/a/x"); !errors.Is(err, syscall.ENOTDIR) {
		t.Errorf("ReadDir on a file = %v, expected ENOTDIR", err)
	}
	if _, err := f.ReadDir("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadDir on missing dir = %v, expected ErrNotExist", err)
	}

	want := []string{"readdir:/a", "rmdir:/a/y", "rm:/a/y/z", "rmdir:/a/y", "readdir:/a/x", "readdir:/missing"}
	if got := f.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("Calls = %v, expected %v", got, want)
	}
}

func TestFakeDeleterInjectedFailure(t *testing.T) {
	f := NewFakeDeleter()
	f.AddFile("/a/locked", 1)
	f.Fail("/a/locked", syscall.EACCES)

	err := f.RemoveFile("/a/locked")
	var perr *fs.PathError
	if !errors.As(err, &perr) || perr.Path != "/a/locked" || !errors.Is(err, fs.ErrPermission) {
		t.Errorf("RemoveFile = %v, expected a permission PathError for /a/locked", err)
	}
	if !f.Exists("/a/locked") {
		t.Error("A failed removal must leave the entry in place")
	}
}
