package simulator

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/michaelpento.lv/flashswap/dex"
	"github.com/michaelpento.lv/flashswap/types"
)

// overlay is a copy-on-write view of a ledger. Reads fall through to the
// base until a pool is written; writes never reach the base.
type overlay struct {
	base     dex.PoolLedger
	mu       sync.Mutex
	reserves map[types.PoolID][2]*uint256.Int
}

var _ dex.PoolLedger = (*overlay)(nil)

func newOverlay(base dex.PoolLedger) *overlay {
	return &overlay{
		base:     base,
		reserves: make(map[types.PoolID][2]*uint256.Int),
	}
}

func (o *overlay) PoolFor(tokenA, tokenB common.Address) (types.PoolID, error) {
	return o.base.PoolFor(tokenA, tokenB)
}

func (o *overlay) Pool(id types.PoolID) (types.Pool, error) {
	pool, err := o.base.Pool(id)
	if err != nil {
		return types.Pool{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.reserves[id]; ok {
		pool.Reserve0, pool.Reserve1 = r[0].Clone(), r[1].Clone()
	}
	return pool, nil
}

func (o *overlay) GetReserves(id types.PoolID) (*uint256.Int, *uint256.Int, error) {
	pool, err := o.Pool(id)
	if err != nil {
		return nil, nil, err
	}
	return pool.Reserve0, pool.Reserve1, nil
}

func (o *overlay) ApplySwap(id types.PoolID, amount0In, amount1In, amount0Out, amount1Out *uint256.Int) error {
	reserve0, reserve1, err := o.GetReserves(id)
	if err != nil {
		return err
	}
	next0, next1, err := dex.ApplyDeltas(reserve0, reserve1, amount0In, amount1In, amount0Out, amount1Out)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.reserves[id] = [2]*uint256.Int{next0, next1}
	o.mu.Unlock()
	return nil
}

// Lock and Release go to the base so a simulation sees a state no other
// operation is halfway through.
func (o *overlay) Lock(ctx context.Context, id types.PoolID) error {
	return o.base.Lock(ctx, id)
}

func (o *overlay) Release(id types.PoolID) {
	o.base.Release(id)
}
