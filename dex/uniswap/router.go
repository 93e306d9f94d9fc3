package uniswap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flashswap/dex"
	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/math"
	"github.com/michaelpento.lv/flashswap/utils/metrics"
)

// RouterConfig configures a Router
type RouterConfig struct {
	FeePerMille uint64
	Guard       *dex.SlippageGuard
	Metrics     *metrics.SwapMetrics
}

// Router quotes and executes swaps along token paths
type Router struct {
	ledger      dex.PoolLedger
	guard       *dex.SlippageGuard
	feePerMille uint64
	metrics     *metrics.SwapMetrics
	logger      *zap.Logger
}

// SwapResult is the realized outcome of a path swap
type SwapResult struct {
	Amounts   []*uint256.Int
	Pools     []types.PoolID
	Recipient common.Address
}

// AmountIn is what the caller paid into the first pool
func (r *SwapResult) AmountIn() *uint256.Int {
	return r.Amounts[0]
}

// AmountOut is what the last pool paid out
func (r *SwapResult) AmountOut() *uint256.Int {
	return r.Amounts[len(r.Amounts)-1]
}

// NewRouter creates a router over ledger
func NewRouter(ledger dex.PoolLedger, cfg RouterConfig, logger *zap.Logger) (*Router, error) {
	if err := ValidateFee(cfg.FeePerMille); err != nil {
		return nil, err
	}
	if cfg.Guard == nil {
		cfg.Guard = dex.NewSlippageGuard(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		ledger:      ledger,
		guard:       cfg.Guard,
		feePerMille: cfg.FeePerMille,
		metrics:     cfg.Metrics,
		logger:      logger,
	}, nil
}

// GetAmountsOut quotes every hop of path for amountIn
func (r *Router) GetAmountsOut(ctx context.Context, amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	pools, err := ResolvePools(r.ledger, path)
	if err != nil {
		return nil, err
	}
	release, err := dex.LockAll(ctx, r.ledger, pools)
	if err != nil {
		return nil, err
	}
	defer release()

	return r.amountsOut(amountIn, path, pools)
}

// GetAmountsIn quotes the inputs needed along path to receive amountOut
func (r *Router) GetAmountsIn(ctx context.Context, amountOut *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	pools, err := ResolvePools(r.ledger, path)
	if err != nil {
		return nil, err
	}
	release, err := dex.LockAll(ctx, r.ledger, pools)
	if err != nil {
		return nil, err
	}
	defer release()

	return r.amountsIn(amountOut, path, pools)
}

// SwapExactTokensForTokens sells exactly amountIn along path. Every hop is
// applied as quoted; if the final output is below minAmountOut all hops are
// rolled back.
func (r *Router) SwapExactTokensForTokens(ctx context.Context, amountIn, minAmountOut *uint256.Int, path []common.Address, to common.Address, deadline time.Time) (*SwapResult, error) {
	return r.swap(ctx, "exact_in", path, to, deadline, func(pools []types.PoolID) ([]*uint256.Int, error) {
		return r.amountsOut(amountIn, path, pools)
	}, func(amounts []*uint256.Int) error {
		return r.guard.CheckMinOut(amounts[len(amounts)-1], minAmountOut)
	})
}

// SwapTokensForExactTokens buys exactly amountOut along path, spending at
// most maxAmountIn.
func (r *Router) SwapTokensForExactTokens(ctx context.Context, amountOut, maxAmountIn *uint256.Int, path []common.Address, to common.Address, deadline time.Time) (*SwapResult, error) {
	return r.swap(ctx, "exact_out", path, to, deadline, func(pools []types.PoolID) ([]*uint256.Int, error) {
		return r.amountsIn(amountOut, path, pools)
	}, func(amounts []*uint256.Int) error {
		if maxAmountIn != nil && amounts[0].Gt(maxAmountIn) {
			return types.ErrExcessiveInputAmount.Wrapf("need %s, max %s", amounts[0].Dec(), maxAmountIn.Dec())
		}
		return nil
	})
}

func (r *Router) swap(
	ctx context.Context,
	kind string,
	path []common.Address,
	to common.Address,
	deadline time.Time,
	quote func([]types.PoolID) ([]*uint256.Int, error),
	settle func([]*uint256.Int) error,
) (result *SwapResult, err error) {
	start := time.Now()
	var undo dex.UndoLog
	rolledBack := false
	defer func() {
		r.metrics.ObserveSwap(statusOf(err), len(path)-1, rolledBack, time.Since(start))
	}()

	if err := r.guard.CheckDeadline(deadline); err != nil {
		return nil, err
	}

	pools, err := ResolvePools(r.ledger, path)
	if err != nil {
		return nil, err
	}
	release, err := dex.LockAll(ctx, r.ledger, pools)
	if err != nil {
		return nil, err
	}
	defer release()

	amounts, err := quote(pools)
	if err != nil {
		return nil, err
	}

	err = r.applyPath(ctx, &undo, path, pools, amounts)
	if err == nil {
		err = settle(amounts)
	}
	if err != nil {
		rolledBack = undo.Len() > 0
		if rbErr := undo.Revert(r.ledger); rbErr != nil {
			r.logger.Error("Failed to roll back swap", zap.Error(rbErr))
			return nil, errors.Join(err, rbErr)
		}
		r.logger.Debug("Swap rolled back",
			zap.String("kind", kind),
			zap.Error(err))
		return nil, err
	}
	undo.Commit()

	r.logger.Info("Swap executed",
		zap.String("kind", kind),
		zap.String("amountIn", amounts[0].Dec()),
		zap.String("amountOut", amounts[len(amounts)-1].Dec()),
		zap.Int("hops", len(pools)),
		zap.String("to", to.Hex()))

	return &SwapResult{Amounts: amounts, Pools: pools, Recipient: to}, nil
}

func (r *Router) applyPath(ctx context.Context, undo *dex.UndoLog, path []common.Address, pools []types.PoolID, amounts []*uint256.Int) error {
	for i, id := range pools {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ApplyHop(r.ledger, undo, id, path[i], amounts[i], amounts[i+1]); err != nil {
			return fmt.Errorf("hop %d: %w", i, err)
		}
	}
	return nil
}

func (r *Router) amountsOut(amountIn *uint256.Int, path []common.Address, pools []types.PoolID) ([]*uint256.Int, error) {
	if math.IsZero(amountIn) {
		return nil, types.ErrInsufficientInputAmount
	}
	amounts := make([]*uint256.Int, len(path))
	amounts[0] = amountIn.Clone()
	for i, id := range pools {
		reserveIn, reserveOut, err := HopReserves(r.ledger, id, path[i])
		if err != nil {
			return nil, err
		}
		out, err := GetAmountOut(amounts[i], reserveIn, reserveOut, r.feePerMille)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		if out.IsZero() {
			return nil, types.ErrInsufficientOutputAmount.Wrapf("hop %d yields nothing for %s", i, amounts[i].Dec())
		}
		amounts[i+1] = out
	}
	return amounts, nil
}

func (r *Router) amountsIn(amountOut *uint256.Int, path []common.Address, pools []types.PoolID) ([]*uint256.Int, error) {
	if math.IsZero(amountOut) {
		return nil, types.ErrInsufficientOutputAmount
	}
	amounts := make([]*uint256.Int, len(path))
	amounts[len(amounts)-1] = amountOut.Clone()
	for i := len(pools) - 1; i >= 0; i-- {
		reserveIn, reserveOut, err := HopReserves(r.ledger, pools[i], path[i])
		if err != nil {
			return nil, err
		}
		in, err := GetAmountIn(amounts[i+1], reserveIn, reserveOut, r.feePerMille)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		amounts[i] = in
	}
	return amounts, nil
}

// ResolvePools validates path and returns the pool of every hop
func ResolvePools(ledger dex.PoolLedger, path []common.Address) ([]types.PoolID, error) {
	if len(path) < 2 {
		return nil, types.ErrInvalidPath.Wrapf("need at least 2 tokens, got %d", len(path))
	}
	pools := make([]types.PoolID, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		if path[i] == path[i+1] {
			return nil, types.ErrInvalidPath.Wrapf("hop %d trades %s for itself", i, path[i].Hex())
		}
		id, err := ledger.PoolFor(path[i], path[i+1])
		if err != nil {
			return nil, types.ErrInvalidPath.Wrapf("hop %d: %v", i, err)
		}
		pools = append(pools, id)
	}
	return pools, nil
}

// HopReserves reads a pool's live reserves ordered as (tokenIn, tokenOut)
func HopReserves(ledger dex.PoolLedger, id types.PoolID, tokenIn common.Address) (*uint256.Int, *uint256.Int, error) {
	pool, err := ledger.Pool(id)
	if err != nil {
		return nil, nil, err
	}
	return pool.ReservesFor(tokenIn)
}

// ApplyHop sells amountIn of tokenIn into pool id for amountOut, through
// undo, and verifies the constant product did not shrink. The caller must
// hold the pool's lock.
func ApplyHop(ledger dex.PoolLedger, undo *dex.UndoLog, id types.PoolID, tokenIn common.Address, amountIn, amountOut *uint256.Int) error {
	pool, err := ledger.Pool(id)
	if err != nil {
		return err
	}
	zero := math.Zero()
	switch tokenIn {
	case pool.Token0:
		err = undo.Apply(ledger, id, amountIn, zero, zero, amountOut)
	case pool.Token1:
		err = undo.Apply(ledger, id, zero, amountIn, amountOut, zero)
	default:
		return types.ErrInvalidPath.Wrapf("token %s is not traded by pool %s", tokenIn.Hex(), id.Hex())
	}
	if err != nil {
		return err
	}

	after0, after1, err := ledger.GetReserves(id)
	if err != nil {
		return err
	}
	return CheckInvariant(pool.Reserve0, pool.Reserve1, after0, after1)
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrExpired):
		return "expired"
	case errors.Is(err, types.ErrInsufficientOutputAmount):
		return "insufficient_output_amount"
	case errors.Is(err, types.ErrExcessiveInputAmount):
		return "excessive_input_amount"
	case errors.Is(err, types.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, types.ErrInvalidPath):
		return "invalid_path"
	default:
		return "error"
	}
}
