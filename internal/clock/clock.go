// Package clock implements the Clock Source (C3): a single indirection
// over wall-clock time so the validator's freshness check can be tested
// without sleeping or mocking time.Now globally.
package clock

import "time"

// Source returns the current wall-clock time in whole seconds since the
// epoch. A monotonic clock is not assumed; large backward jumps are
// tolerated per spec.md §4.3.
type Source interface {
	Now() int64
}

// Real is the production Source, backed by time.Now.
type Real struct{}

// Now returns time.Now().Unix().
func (Real) Now() int64 { return time.Now().Unix() }

// Fixed is a Source that always returns the same instant, for tests.
type Fixed int64

// Now returns the fixed instant.
func (f Fixed) Now() int64 { return int64(f) }
