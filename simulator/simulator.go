package simulator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flashswap/dex"
	"github.com/michaelpento.lv/flashswap/flashloan"
)

// SimulationResult represents the result of a dry-run attack
type SimulationResult struct {
	Success bool
	Reason  string
	Error   error
	Attack  *flashloan.AttackResult
}

// Profit is zero for a failed simulation
func (r *SimulationResult) Profit() *uint256.Int {
	if r.Attack == nil {
		return new(uint256.Int)
	}
	return r.Attack.Profit
}

// Simulator runs attacks against a throwaway overlay of the ledger, using
// the same executor code as a live attack.
type Simulator struct {
	ledger      dex.PoolLedger
	feePerMille uint64
	logger      *zap.Logger
}

// NewSimulator creates a new attack simulator
func NewSimulator(ledger dex.PoolLedger, feePerMille uint64, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		ledger:      ledger,
		feePerMille: feePerMille,
		logger:      logger,
	}
}

// SimulateAttack dry-runs an attack. A failing attack is reported in the
// result, not as an error; an error means the simulation itself could not run.
func (s *Simulator) SimulateAttack(ctx context.Context, path []common.Address, borrowAmount *uint256.Int) (*SimulationResult, error) {
	executor, err := flashloan.NewExecutor(newOverlay(s.ledger), flashloan.ExecutorConfig{
		FeePerMille: s.feePerMille,
	}, s.logger.Named("simulation"))
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	attack, err := executor.Attack(ctx, path, borrowAmount)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return &SimulationResult{
			Success: false,
			Reason:  flashloan.Reason(err),
			Error:   err,
		}, nil
	}
	return &SimulationResult{
		Success: true,
		Attack:  attack,
	}, nil
}
