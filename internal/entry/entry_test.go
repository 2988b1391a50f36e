package entry

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		mode fs.FileMode
		want Kind
	}{
		{"regular file", 0o644, File},
		{"directory", fs.ModeDir | 0o755, Dir},
		{"symlink", fs.ModeSymlink | 0o777, Symlink},
		{"socket", fs.ModeSocket, File},
		{"fifo", fs.ModeNamedPipe, File},
		{"device", fs.ModeDevice, File},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.mode); got != tt.want {
				t.Errorf("KindOf(%v) = %v, expected %v", tt.mode, got, tt.want)
			}
		})
	}
}

func TestLstat(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file")
	dir := filepath.Join(tmpDir, "dir")
	link := filepath.Join(tmpDir, "link")

	if err := os.WriteFile(file, []byte("12345"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.Symlink(dir, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		path     string
		want     Kind
		wantSize int64
	}{
		{file, File, 5},
		{dir, Dir, 0},
		{link, Symlink, int64(len(dir))},
	}

	for _, tt := range tests {
		e, err := Lstat(tt.path)
		if err != nil {
			t.Fatalf("Lstat(%s) failed: %v", tt.path, err)
		}
		if e.Kind != tt.want || e.Path != tt.path {
			t.Errorf("Lstat(%s) = %+v, expected kind %v", tt.path, e, tt.want)
		}
		if e.Size != tt.wantSize {
			t.Errorf("Lstat(%s).Size = %d, expected %d", tt.path, e.Size, tt.wantSize)
		}
	}

	if _, err := Lstat(filepath.Join(tmpDir, "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Lstat(missing) = %v, expected ErrNotExist", err)
	}
}

func TestFromDirEntry(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, "sub"), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.Symlink("sub", filepath.Join(tmpDir, "link")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	des, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	got := make(map[string]Kind)
	for _, de := range des {
		e := FromDirEntry(tmpDir, de)
		got[e.Path] = e.Kind
	}
	if got[filepath.Join(tmpDir, "sub")] != Dir {
		t.Errorf("sub classified as %v", got[filepath.Join(tmpDir, "sub")])
	}
	if got[filepath.Join(tmpDir, "link")] != Symlink {
		t.Errorf("link classified as %v, a link to a directory must stay a link", got[filepath.Join(tmpDir, "link")])
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{File: "file", Dir: "directory", Symlink: "symlink"} {
		if k.String() != want {
			t.Errorf("%d.String() = %q, expected %q", k, k.String(), want)
		}
	}
}
