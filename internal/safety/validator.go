package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrProtectedPath  = errors.New("protected path")
	ErrOutsideAllowed = errors.New("outside allowed roots")
)

// ViolationError reports a path the validator refused to delete
type ViolationError struct {
	Path string
	Err  error
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("refusing to remove %s: %v", e.Path, e.Err)
}

func (e *ViolationError) Unwrap() error {
	return e.Err
}

// Validator guards top-level deletion targets
type Validator struct {
	AllowedRoots   []string
	SystemRoots    []string // refused only as exact targets
	ProtectedPaths []string // refused together with everything below them
}

// NewValidator creates a validator with allowed roots and optional additional protected paths.
// An empty allowed list permits every path that is not protected.
//
// The built-in system directories are protected as targets themselves, so
// /usr or /dev can never be removed, while /usr/local/src/build or
// /dev/shm/cache can.
func NewValidator(allowed []string, extraProtected []string) *Validator {
	return &Validator{
		AllowedRoots:   normalizeRoots(allowed),
		SystemRoots:    systemRoots(),
		ProtectedPaths: normalizeRoots(extraProtected),
	}
}

// ValidateDeleteTarget is the single-source-of-truth for delete authorization.
// The path itself is checked, never a symlink target: links are removed as
// links, so where they point cannot widen a deletion.
func (v *Validator) ValidateDeleteTarget(path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return &ViolationError{Path: path, Err: err}
	}

	if IsSystemRoot(p, v.SystemRoots) || IsProtectedPath(p, v.ProtectedPaths) {
		return &ViolationError{Path: path, Err: ErrProtectedPath}
	}

	if len(v.AllowedRoots) > 0 && !IsWithinAllowedRoots(p, v.AllowedRoots) {
		return &ViolationError{Path: path, Err: ErrOutsideAllowed}
	}

	return nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// IsWithinAllowedRoots checks if path is within any allowed root
func IsWithinAllowedRoots(path string, allowedRoots []string) bool {
	p := filepath.Clean(path)
	for _, r := range allowedRoots {
		if hasPathPrefix(p, r) {
			return true
		}
	}
	return false
}

// IsProtectedPath checks if path is, or is inside, a protected path.
// "/" only protects itself.
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)
	for _, prot := range protected {
		prot = filepath.Clean(prot)
		if p == prot || hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

// IsSystemRoot reports whether path is exactly one of roots, or "/"
func IsSystemRoot(path string, roots []string) bool {
	p := filepath.Clean(path)
	if p == string(os.PathSeparator) {
		return true
	}
	for _, r := range roots {
		if p == filepath.Clean(r) {
			return true
		}
	}
	return false
}

// hasPathPrefix checks if path has the given prefix
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if prefix == string(os.PathSeparator) {
		return path == "/"
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// normalizeRoots converts slice of roots to absolute, cleaned paths
func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}

// systemRoots returns the directories that are never a deletion target
func systemRoots() []string {
	return []string{
		"/",
		"/bin",
		"/boot",
		"/dev",
		"/etc",
		"/lib",
		"/lib64",
		"/proc",
		"/sbin",
		"/sys",
		"/usr",
	}
}
