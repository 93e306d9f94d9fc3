package dex

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/michaelpento.lv/flashswap/types"
)

// PoolLedger is the authoritative store of pool reserves. Implementations
// must make ApplySwap atomic per pool; callers hold the pool's lock across the
// read that authorizes a mutation and the mutation itself.
type PoolLedger interface {
	// PoolFor returns the pool trading tokenA against tokenB
	PoolFor(tokenA, tokenB common.Address) (types.PoolID, error)

	// Pool returns a copy of the pool's tokens and reserves
	Pool(id types.PoolID) (types.Pool, error)

	// GetReserves returns the reserves in token0/token1 order
	GetReserves(id types.PoolID) (reserve0, reserve1 *uint256.Int, err error)

	// ApplySwap moves reserves by the given in/out amounts
	ApplySwap(id types.PoolID, amount0In, amount1In, amount0Out, amount1Out *uint256.Int) error

	// Lock blocks until the pool is exclusively held or ctx is done
	Lock(ctx context.Context, id types.PoolID) error

	// Release frees a pool acquired with Lock
	Release(id types.PoolID)
}
