// Package resolve expands glob patterns into the filesystem entries they
// currently match.
package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"fastrm/internal/entry"
)

// PatternError reports a syntactically invalid glob pattern
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

var errStop = errors.New("stop walking")

// Resolver expands patterns relative to the working directory
type Resolver struct{}

// New returns a Resolver
func New() *Resolver {
	return &Resolver{}
}

// Resolve lazily yields the entries matched by pattern. Matches are produced
// while the filesystem is walked, so callers can start deleting early matches
// before later ones are found.
//
// An invalid pattern yields a single *PatternError. A pattern without glob
// metacharacters is a literal path and matches only if it exists. Symlinks
// are never followed while matching, and a match inside a directory that was
// already yielded is skipped: deleting that directory covers it.
func (r *Resolver) Resolve(pattern string) iter.Seq2[entry.Entry, error] {
	return func(yield func(entry.Entry, error) bool) {
		if pattern == "" {
			yield(entry.Entry{}, &PatternError{Pattern: pattern, Err: doublestar.ErrBadPattern})
			return
		}
		if !hasMeta(pattern) {
			resolveLiteral(pattern, yield)
			return
		}
		if !doublestar.ValidatePathPattern(pattern) {
			yield(entry.Entry{}, &PatternError{Pattern: pattern, Err: doublestar.ErrBadPattern})
			return
		}

		base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
		base = filepath.FromSlash(base)
		claimed := make(map[string]struct{})

		err := doublestar.GlobWalk(os.DirFS(base), rest, func(match string, _ fs.DirEntry) error {
			// The walker's DirEntry may come from a stat that followed a
			// link, so every match is classified again with lstat.
			path := filepath.Join(base, filepath.FromSlash(match))
			// "**" matches the walk root too. The working directory itself
			// is never a target, only what is inside it.
			if path == "." || insideClaimed(path, claimed) {
				return nil
			}

			e, err := entry.Lstat(path)
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			if err == nil && e.Kind == entry.Dir {
				claimed[path] = struct{}{}
			}
			if !yield(e, err) {
				return errStop
			}
			return nil
		}, doublestar.WithNoFollow())

		switch {
		case err == nil, errors.Is(err, errStop):
		case errors.Is(err, doublestar.ErrBadPattern):
			yield(entry.Entry{}, &PatternError{Pattern: pattern, Err: err})
		default:
			yield(entry.Entry{}, fmt.Errorf("resolve %q: %w", pattern, err))
		}
	}
}

func resolveLiteral(pattern string, yield func(entry.Entry, error) bool) {
	e, err := entry.Lstat(filepath.Clean(pattern))
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	yield(e, err)
}

// insideClaimed reports whether a proper ancestor of path was already yielded
func insideClaimed(path string, claimed map[string]struct{}) bool {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if _, ok := claimed[dir]; ok {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
	}
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, `*?[{\`)
}
