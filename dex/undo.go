package dex

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/math"
)

// ApplyDeltas computes the reserves left after a swap. An output must be
// strictly below the reserve it draws from.
func ApplyDeltas(reserve0, reserve1, amount0In, amount1In, amount0Out, amount1Out *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	next0, err := applyDelta(reserve0, amount0In, amount0Out)
	if err != nil {
		return nil, nil, fmt.Errorf("reserve0: %w", err)
	}
	next1, err := applyDelta(reserve1, amount1In, amount1Out)
	if err != nil {
		return nil, nil, fmt.Errorf("reserve1: %w", err)
	}
	return next0, next1, nil
}

func applyDelta(reserve, in, out *uint256.Int) (*uint256.Int, error) {
	funded, err := math.Add(math.Clone(reserve), math.Clone(in))
	if err != nil {
		return nil, err
	}
	if !math.IsZero(out) && !out.Lt(funded) {
		return nil, types.ErrInsufficientLiquidity.Wrapf("output %s drains reserve %s", out.Dec(), funded.Dec())
	}
	return math.Sub(funded, math.Clone(out))
}

type swapEntry struct {
	id         types.PoolID
	amount0In  *uint256.Int
	amount1In  *uint256.Int
	amount0Out *uint256.Int
	amount1Out *uint256.Int
}

// UndoLog applies swaps to a ledger and remembers each one so the whole
// sequence can be reverted. It is owned by a single operation.
type UndoLog struct {
	entries []swapEntry
}

// Apply forwards the swap to the ledger and records it on success.
func (u *UndoLog) Apply(ledger PoolLedger, id types.PoolID, amount0In, amount1In, amount0Out, amount1Out *uint256.Int) error {
	e := swapEntry{
		id:         id,
		amount0In:  math.Clone(amount0In),
		amount1In:  math.Clone(amount1In),
		amount0Out: math.Clone(amount0Out),
		amount1Out: math.Clone(amount1Out),
	}
	if err := ledger.ApplySwap(id, e.amount0In, e.amount1In, e.amount0Out, e.amount1Out); err != nil {
		return err
	}
	u.entries = append(u.entries, e)
	return nil
}

// Revert replays the inverse of every recorded swap, newest first. Swapping
// ins and outs restores the exact prior reserves.
func (u *UndoLog) Revert(ledger PoolLedger) error {
	for i := len(u.entries) - 1; i >= 0; i-- {
		e := u.entries[i]
		if err := ledger.ApplySwap(e.id, e.amount0Out, e.amount1Out, e.amount0In, e.amount1In); err != nil {
			u.entries = u.entries[:i+1]
			return fmt.Errorf("revert swap %d on pool %s: %w", i, e.id.Hex(), err)
		}
	}
	u.entries = nil
	return nil
}

// Len is the number of swaps that would be reverted.
func (u *UndoLog) Len() int {
	return len(u.entries)
}

// Commit forgets the recorded swaps.
func (u *UndoLog) Commit() {
	u.entries = nil
}
