// Package outcome reduces the results of concurrently running units of work
// to a single success or first-failure result.
package outcome

import "sync/atomic"

type failure struct {
	err error
}

// Aggregator keeps the first failure to arrive and counts the rest.
// "First" means first to reach Add, not first in path order. It is safe for
// concurrent use.
type Aggregator struct {
	first    atomic.Pointer[failure]
	failures atomic.Int64

	onFirst func(error)
}

// New returns an empty Aggregator. onFirst, if non-nil, is called exactly once
// with the first failure.
func New(onFirst func(error)) *Aggregator {
	return &Aggregator{onFirst: onFirst}
}

// Add records the outcome of one unit of work. nil is success.
func (a *Aggregator) Add(err error) {
	if err == nil {
		return
	}
	a.failures.Add(1)
	if a.first.CompareAndSwap(nil, &failure{err: err}) && a.onFirst != nil {
		a.onFirst(err)
	}
}

// Err returns the representative failure, or nil if every unit succeeded
func (a *Aggregator) Err() error {
	if f := a.first.Load(); f != nil {
		return f.err
	}
	return nil
}

// Failures returns how many units failed
func (a *Aggregator) Failures() int64 {
	return a.failures.Load()
}
