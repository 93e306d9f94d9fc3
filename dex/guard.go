package dex

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/michaelpento.lv/flashswap/types"
)

// SlippageGuard enforces the caller's deadline and minimum output.
type SlippageGuard struct {
	now func() time.Time
}

// NewSlippageGuard creates a guard reading time from now. A nil clock uses
// time.Now.
func NewSlippageGuard(now func() time.Time) *SlippageGuard {
	if now == nil {
		now = time.Now
	}
	return &SlippageGuard{now: now}
}

// CheckDeadline fails with ErrExpired once the clock is past deadline. The
// zero time means no deadline.
func (g *SlippageGuard) CheckDeadline(deadline time.Time) error {
	if deadline.IsZero() {
		return nil
	}
	if now := g.now(); now.After(deadline) {
		return types.ErrExpired.Wrapf("deadline %s passed at %s",
			deadline.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	}
	return nil
}

// CheckMinOut fails with ErrInsufficientOutputAmount when actual < min. A nil
// minimum accepts anything.
func (g *SlippageGuard) CheckMinOut(actual, min *uint256.Int) error {
	if min == nil {
		return nil
	}
	if actual == nil || actual.Lt(min) {
		got := "0"
		if actual != nil {
			got = actual.Dec()
		}
		return types.ErrInsufficientOutputAmount.Wrapf("got %s, want at least %s", got, min.Dec())
	}
	return nil
}
