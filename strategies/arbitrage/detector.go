package arbitrage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flashswap/dex"
	"github.com/michaelpento.lv/flashswap/simulator"
	"github.com/michaelpento.lv/flashswap/types"
)

// PriceBook holds each token's reference price
type PriceBook map[common.Address]*uint256.Int

// Detector sizes flash-loan cycles with the solver and confirms them by
// simulation
type Detector struct {
	ledger    dex.PoolLedger
	simulator *simulator.Simulator
	minProfit *uint256.Int
	logger    *zap.Logger
	mu        sync.Mutex
}

// NewDetector creates a new arbitrage detector
func NewDetector(ledger dex.PoolLedger, sim *simulator.Simulator, minProfit *uint256.Int, logger *zap.Logger) *Detector {
	if minProfit == nil {
		minProfit = new(uint256.Int)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		ledger:    ledger,
		simulator: sim,
		minProfit: minProfit,
		logger:    logger,
	}
}

// Evaluate sizes the loan for cycle from the pool of its first swap hop,
// cycle[1]/cycle[2], and dry-runs it. A nil opportunity means the cycle is
// not worth executing.
func (d *Detector) Evaluate(ctx context.Context, cycle []common.Address, prices PriceBook) (*types.ArbitrageOpportunity, error) {
	if len(cycle) < 4 {
		return nil, types.ErrInvalidPath.Wrapf("cycle needs a swap hop besides the lending pool, got %d tokens", len(cycle))
	}
	priceIn, ok := prices[cycle[1]]
	if !ok {
		return nil, types.ErrInvalidPrice.Wrapf("no price for %s", cycle[1].Hex())
	}
	priceOut, ok := prices[cycle[2]]
	if !ok {
		return nil, types.ErrInvalidPrice.Wrapf("no price for %s", cycle[2].Hex())
	}

	solution, err := SolveForPool(ctx, d.ledger, cycle[1], cycle[2], priceIn, priceOut)
	if err != nil {
		return nil, err
	}
	if !solution.Profitable() || solution.TokenIn != cycle[1] {
		return nil, nil
	}

	sim, err := d.simulator.SimulateAttack(ctx, cycle, solution.Quote.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("simulation failed: %w", err)
	}
	if !sim.Success {
		d.logger.Debug("Cycle rejected by simulation",
			zap.String("reason", sim.Reason),
			zap.String("borrow", solution.Quote.AmountIn.Dec()))
		return nil, nil
	}
	if sim.Profit().Lt(d.minProfit) {
		return nil, nil
	}

	attack := sim.Attack
	return &types.ArbitrageOpportunity{
		Path:           attack.Path,
		Pools:          attack.Pools,
		BorrowAmount:   attack.BorrowAmount,
		RepaymentDue:   attack.RepaymentDue,
		ExpectedProfit: attack.Profit,
		HopAmounts:     attack.HopAmounts,
	}, nil
}

// FindArbitrage evaluates every triangular cycle base -> x -> y -> base over
// tokens and returns the profitable ones, best first.
func (d *Detector) FindArbitrage(ctx context.Context, base common.Address, tokens []common.Address, prices PriceBook) ([]*types.ArbitrageOpportunity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ordered := dex.Distinct(tokens)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].Bytes(), ordered[j].Bytes()) < 0
	})

	var opportunities []*types.ArbitrageOpportunity
	for _, x := range ordered {
		for _, y := range ordered {
			if x == y || x == base || y == base {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			cycle := []common.Address{base, x, y, base}
			opp, err := d.Evaluate(ctx, cycle, prices)
			if err != nil {
				d.logger.Debug("Skipping cycle",
					zap.String("x", x.Hex()),
					zap.String("y", y.Hex()),
					zap.Error(err))
				continue
			}
			if opp != nil {
				d.logger.Info("Found arbitrage opportunity",
					zap.String("borrow", opp.BorrowAmount.Dec()),
					zap.String("profit", opp.ExpectedProfit.Dec()))
				opportunities = append(opportunities, opp)
			}
		}
	}

	rank(opportunities)
	return opportunities, nil
}

// rank orders opportunities best first. Equal profits fall back to path
// order so repeated scans agree.
func rank(opportunities []*types.ArbitrageOpportunity) {
	sort.SliceStable(opportunities, func(i, j int) bool {
		if c := opportunities[i].ExpectedProfit.Cmp(opportunities[j].ExpectedProfit); c != 0 {
			return c > 0
		}
		return pathLess(opportunities[i].Path, opportunities[j].Path)
	})
}

func pathLess(a, b []common.Address) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := bytes.Compare(a[i].Bytes(), b[i].Bytes()); c != 0 {
			return c < 0
		}
	}
	return len(a) < len(b)
}
