// Package pool provides the bounded fork-join worker pool shared by every
// unit of deletion work in a run.
//
// A worker is any goroutine holding one of the pool's slots. Submitting work
// from a worker never blocks: the unit either gets a free slot and its own
// goroutine, or it runs inline on the submitting worker. A worker that joins
// on a scope hands its slot back while it waits, so the slot keeps executing
// other pending work. Slot holders therefore never wait on anything, which is
// what keeps nested joins deadlock-free for any nesting depth and pool size.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"

	"fastrm/internal/metrics"
)

// ErrInvalidSize is returned when the worker count is not a positive integer
var ErrInvalidSize = errors.New("worker count must be a positive integer")

// Pool is a fixed set of worker slots. It is sized once and never resized.
type Pool struct {
	size int
	sem  *semaphore.Weighted
}

// New creates a pool with size worker slots
func New(size int) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Pool{
		size: size,
		sem:  semaphore.NewWeighted(int64(size)),
	}, nil
}

// Size returns the number of worker slots
func (p *Pool) Size() int {
	return p.size
}

// Run executes fn as a worker, waiting for a free slot first
func (p *Pool) Run(fn func()) {
	p.acquire()
	defer p.release()
	fn()
}

// NewScope returns an empty fork-join group bound to the pool
func (p *Pool) NewScope() *Scope {
	return &Scope{pool: p}
}

func (p *Pool) acquire() {
	// Background never cancels, so Acquire cannot fail.
	_ = p.sem.Acquire(context.Background(), 1)
	metrics.WorkersActive.Inc()
}

func (p *Pool) tryAcquire() bool {
	if !p.sem.TryAcquire(1) {
		return false
	}
	metrics.WorkersActive.Inc()
	return true
}

func (p *Pool) release() {
	metrics.WorkersActive.Dec()
	p.sem.Release(1)
}

// Scope is a fork-join group. Go and Wait must be called from a worker, that
// is from inside Pool.Run or from a unit submitted with Go.
type Scope struct {
	pool    *Pool
	wg      sync.WaitGroup
	catcher panics.Catcher
	forked  atomic.Bool
}

// Go submits fn. It starts on its own goroutine if a slot is free, otherwise
// the calling worker runs it before Go returns.
func (s *Scope) Go(fn func()) {
	if !s.pool.tryAcquire() {
		s.catcher.Try(fn)
		return
	}

	s.forked.Store(true)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.pool.release()
		s.catcher.Try(fn)
	}()
}

// Wait blocks until every unit submitted with Go has finished. The caller's
// slot is lent to the pool for the duration of the wait. A panic raised by
// any unit is re-raised here.
func (s *Scope) Wait() {
	if s.forked.Load() {
		s.pool.release()
		s.wg.Wait()
		s.pool.acquire()
	}
	s.catcher.Repanic()
}
