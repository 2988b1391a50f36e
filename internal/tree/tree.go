// Package tree removes files and whole directory trees in parallel.
//
// Directories are removed in post-order: a directory's entries are listed
// once, every entry is removed as its own unit of work on the shared pool,
// and the directory itself is removed only after all of them succeeded.
// Siblings share nothing but the pool, so they run in any order. Symlinks
// are unlinked and never descended into.
package tree

import (
	"context"
	"errors"
	"io/fs"
	"sync/atomic"

	"fastrm/internal/entry"
	"fastrm/internal/fsops"
	"fastrm/internal/logging"
	"fastrm/internal/outcome"
	"fastrm/internal/pool"
)

// ErrCanceled marks work that was never started because the run was canceled
var ErrCanceled = errors.New("not started: run canceled")

// Options tune a Deleter
type Options struct {
	// Diag receives each path right before it is removed. nil disables it.
	Diag *logging.DiagWriter
	// MissingOK treats an entry that vanished before its removal as removed
	MissingOK bool
	// TrackBytes sizes every file before unlinking it, costing one lstat each
	TrackBytes bool
	// OnRemove is called after each successful removal. Must be safe for
	// concurrent use.
	OnRemove func(entry.Entry)
	// OnFailure is called once for each entry whose own listing or removal
	// failed. Parents skipped because of a failed child are not reported.
	// Must be safe for concurrent use.
	OnFailure func(entry.Entry, error)
}

// Stats counts what a Deleter removed
type Stats struct {
	Files    int64
	Dirs     int64
	Symlinks int64
	Bytes    int64
}

// Deleter removes entries using the shared worker pool
type Deleter struct {
	pool *pool.Pool
	fs   fsops.Deleter
	opts Options

	files, dirs, symlinks, bytes atomic.Int64
}

// New returns a Deleter that runs on p. A nil fsys uses the real filesystem.
func New(p *pool.Pool, fsys fsops.Deleter, opts Options) *Deleter {
	if fsys == nil {
		fsys = fsops.OSDeleter{}
	}
	return &Deleter{pool: p, fs: fsys, opts: opts}
}

// Stats returns the running totals. Totals are exact once every Delete has
// returned.
func (d *Deleter) Stats() Stats {
	return Stats{
		Files:    d.files.Load(),
		Dirs:     d.dirs.Load(),
		Symlinks: d.symlinks.Load(),
		Bytes:    d.bytes.Load(),
	}
}

// Delete removes e. A directory is emptied first, its entries removed in
// parallel; if any of them fails the directory is left in place and that
// failure is returned. Delete must run on a pool worker.
//
// When ctx is canceled, entries whose removal has not started yet are
// skipped and reported as ErrCanceled. Removals already running finish.
func (d *Deleter) Delete(ctx context.Context, e entry.Entry) error {
	if ctx.Err() != nil {
		return ErrCanceled
	}
	if e.Kind != entry.Dir {
		return d.removeFile(e)
	}
	return d.removeTree(ctx, e)
}

func (d *Deleter) removeFile(e entry.Entry) error {
	d.opts.Diag.Line(e.Path)
	if err := d.fs.RemoveFile(e.Path); err != nil {
		return d.fail(e, err)
	}

	switch e.Kind {
	case entry.Symlink:
		d.symlinks.Add(1)
	default:
		d.files.Add(1)
		d.bytes.Add(e.Size)
	}
	d.removed(e)
	return nil
}

func (d *Deleter) removeTree(ctx context.Context, dir entry.Entry) error {
	children, err := d.list(dir.Path)
	if err != nil {
		return d.fail(dir, err)
	}

	agg := outcome.New(nil)
	scope := d.pool.NewScope()
	for _, child := range children {
		scope.Go(func() {
			agg.Add(d.Delete(ctx, child))
		})
	}
	scope.Wait()

	if err := agg.Err(); err != nil {
		return err
	}

	d.opts.Diag.Line(dir.Path)
	if err := d.fs.RemoveDir(dir.Path); err != nil {
		return d.fail(dir, err)
	}
	d.dirs.Add(1)
	d.removed(dir)
	return nil
}

// list enumerates dir once and classifies each child by its entry type
func (d *Deleter) list(dir string) ([]entry.Entry, error) {
	des, err := d.fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	children := make([]entry.Entry, 0, len(des))
	for _, de := range des {
		child := entry.FromDirEntry(dir, de)
		if d.opts.TrackBytes && child.Kind == entry.File {
			if info, err := de.Info(); err == nil {
				child.Size = info.Size()
			}
		}
		children = append(children, child)
	}
	return children, nil
}

// fail filters vanished entries when MissingOK is set and reports the rest
func (d *Deleter) fail(e entry.Entry, err error) error {
	if d.opts.MissingOK && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if d.opts.OnFailure != nil {
		d.opts.OnFailure(e, err)
	}
	return err
}

func (d *Deleter) removed(e entry.Entry) {
	if d.opts.OnRemove != nil {
		d.opts.OnRemove(e)
	}
}
