package flashloan

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flashswap/dex"
	"github.com/michaelpento.lv/flashswap/dex/uniswap"
	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/math"
)

// Executor runs flash-loan attacks: borrow from the first pool of a cycle,
// swap through the rest, repay the first pool, keep the surplus. Either every
// step commits or none does.
type Executor struct {
	ledger dex.PoolLedger
	cfg    ExecutorConfig
	logger *zap.Logger
	nextID atomic.Uint64
}

// NewExecutor creates an executor over ledger
func NewExecutor(ledger dex.PoolLedger, cfg ExecutorConfig, logger *zap.Logger) (*Executor, error) {
	if err := uniswap.ValidateFee(cfg.FeePerMille); err != nil {
		return nil, err
	}
	if cfg.Guard == nil {
		cfg.Guard = dex.NewSlippageGuard(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Attack borrows borrowAmount of path[1] and returns the realized profit in
// path[0].
func (e *Executor) Attack(ctx context.Context, path []common.Address, borrowAmount *uint256.Int) (*AttackResult, error) {
	return e.Execute(ctx, AttackParams{Path: path, BorrowAmount: borrowAmount})
}

// Execute runs one attack with explicit parameters
func (e *Executor) Execute(ctx context.Context, params AttackParams) (result *AttackResult, err error) {
	start := time.Now()
	m := e.cfg.Metrics
	if m != nil {
		m.Attempts.Inc()
		m.ActiveSessions.Inc()
		defer func() {
			m.ActiveSessions.Dec()
			m.ExecutionTime.Observe(time.Since(start).Seconds())
			if err != nil {
				m.Reverted.WithLabelValues(Reason(err)).Inc()
			} else {
				m.Settled.Inc()
				m.Profit.Add(math.ToFloat64(result.Profit))
				m.Borrowed.Add(math.ToFloat64(result.BorrowAmount))
			}
			m.UpdateSuccessRate()
		}()
	}

	if err := e.wait(ctx); err != nil {
		return nil, err
	}

	pools, err := ValidatePath(e.ledger, params.Path)
	if err != nil {
		return nil, err
	}
	if math.IsZero(params.BorrowAmount) {
		return nil, types.ErrInsufficientInputAmount.Wrap("borrow amount must be positive")
	}

	s := newSession(e.nextID.Add(1), params.Path, params.BorrowAmount)
	logger := e.logger.With(zap.Uint64("session", s.id))

	release, err := dex.LockAll(ctx, e.ledger, pools)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err = e.run(ctx, s, params, pools)
	if err != nil {
		if rbErr := s.undo.Revert(e.ledger); rbErr != nil {
			logger.Error("Failed to roll back attack", zap.Error(rbErr))
			err = errors.Join(err, rbErr)
		}
		s.state = StateReverted
		logger.Info("Attack reverted",
			zap.String("reason", Reason(err)),
			zap.Int("hop", s.hopIndex),
			zap.Error(err))
		e.record(ctx, logger, s, params, nil, err, time.Since(start))
		return nil, err
	}
	s.undo.Commit()

	result.Duration = time.Since(start)
	logger.Info("Attack settled",
		zap.String("borrowed", result.BorrowAmount.Dec()),
		zap.String("repaid", result.RepaymentDue.Dec()),
		zap.String("profit", result.Profit.Dec()),
		zap.Duration("duration", result.Duration))
	e.record(ctx, logger, s, params, result, nil, result.Duration)
	return result, nil
}

func (e *Executor) run(ctx context.Context, s *session, params AttackParams, pools []types.PoolID) (*AttackResult, error) {
	path := params.Path
	lending := pools[0]

	// borrow path[1] from the lending pool, owing path[0]
	if err := s.transition(StateBorrowing); err != nil {
		return nil, err
	}
	if err := s.enter(lending); err != nil {
		return nil, err
	}
	lendingPool, err := e.ledger.Pool(lending)
	if err != nil {
		return nil, err
	}
	debtReserve, borrowReserve, err := lendingPool.ReservesFor(s.repaymentToken)
	if err != nil {
		return nil, err
	}
	s.repaymentDue, err = uniswap.GetAmountIn(s.borrowedAmount, debtReserve, borrowReserve, e.cfg.FeePerMille)
	if err != nil {
		return nil, fmt.Errorf("borrow: %w", err)
	}
	zero := math.Zero()
	if s.borrowedToken == lendingPool.Token0 {
		err = s.undo.Apply(e.ledger, lending, zero, zero, s.borrowedAmount, zero)
	} else {
		err = s.undo.Apply(e.ledger, lending, zero, zero, zero, s.borrowedAmount)
	}
	if err != nil {
		return nil, fmt.Errorf("borrow: %w", err)
	}

	hopAmounts := []*uint256.Int{s.borrowedAmount.Clone()}
	amount := s.borrowedAmount
	for i := 1; i < len(path)-1; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.transition(StateSwapping); err != nil {
			return nil, err
		}
		s.hopIndex = i
		out, err := e.swapHop(s, pools[i], path[i], amount)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		hopAmounts = append(hopAmounts, out)
		amount = out
	}

	if err := s.transition(StateRepaying); err != nil {
		return nil, err
	}
	finalOutput := amount
	if finalOutput.Lt(s.repaymentDue) {
		return nil, types.ErrInsufficientProfit.Wrapf("cycle returns %s, owes %s", finalOutput.Dec(), s.repaymentDue.Dec())
	}
	profit := new(uint256.Int).Sub(finalOutput, s.repaymentDue)
	if err := e.cfg.Guard.CheckDeadline(params.Deadline); err != nil {
		return nil, err
	}
	if err := e.checkMinProfit(profit, params.MinProfit); err != nil {
		return nil, err
	}

	if s.repaymentToken == lendingPool.Token0 {
		err = s.undo.Apply(e.ledger, lending, s.repaymentDue, zero, zero, zero)
	} else {
		err = s.undo.Apply(e.ledger, lending, zero, s.repaymentDue, zero, zero)
	}
	if err != nil {
		return nil, fmt.Errorf("repay: %w", err)
	}
	after0, after1, err := e.ledger.GetReserves(lending)
	if err != nil {
		return nil, err
	}
	if err := uniswap.CheckInvariant(lendingPool.Reserve0, lendingPool.Reserve1, after0, after1); err != nil {
		return nil, fmt.Errorf("repay: %w", err)
	}
	s.exit(lending)

	if err := s.transition(StateSettled); err != nil {
		return nil, err
	}
	return &AttackResult{
		SessionID:     s.id,
		Path:          append([]common.Address(nil), path...),
		Pools:         pools,
		LendingPool:   lending,
		BorrowedToken: s.borrowedToken,
		DebtToken:     s.repaymentToken,
		BorrowAmount:  s.borrowedAmount.Clone(),
		RepaymentDue:  s.repaymentDue.Clone(),
		HopAmounts:    hopAmounts,
		FinalOutput:   finalOutput.Clone(),
		Profit:        profit,
		State:         s.state,
	}, nil
}

// swapHop sells amountIn of tokenIn into pool id. The pool is entered in the
// session guard for the read and the mutation only.
func (e *Executor) swapHop(s *session, id types.PoolID, tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	if err := s.enter(id); err != nil {
		return nil, err
	}
	defer s.exit(id)

	reserveIn, reserveOut, err := uniswap.HopReserves(e.ledger, id, tokenIn)
	if err != nil {
		return nil, err
	}
	out, err := uniswap.GetAmountOut(amountIn, reserveIn, reserveOut, e.cfg.FeePerMille)
	if err != nil {
		return nil, err
	}
	if out.IsZero() {
		return nil, types.ErrInsufficientOutputAmount.Wrapf("%s in yields nothing", amountIn.Dec())
	}
	if err := uniswap.ApplyHop(e.ledger, &s.undo, id, tokenIn, amountIn, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Executor) checkMinProfit(profit, min *uint256.Int) error {
	if min == nil {
		min = e.cfg.MinProfit
	}
	if err := e.cfg.Guard.CheckMinOut(profit, min); err != nil {
		return types.ErrInsufficientProfit.Wrapf("profit %s below minimum %s", profit.Dec(), min.Dec())
	}
	return nil
}

func (e *Executor) wait(ctx context.Context) error {
	if e.cfg.Limiter == nil {
		return nil
	}
	if e.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.WaitTimeout)
		defer cancel()
	}
	if err := e.cfg.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

func (e *Executor) record(ctx context.Context, logger *zap.Logger, s *session, params AttackParams, result *AttackResult, cause error, elapsed time.Duration) {
	if e.cfg.Recorder == nil {
		return
	}
	rec := &types.SettlementRecord{
		SessionID:    s.id,
		Path:         params.Path,
		BorrowAmount: s.borrowedAmount.Dec(),
		RepaymentDue: decOrEmpty(s.repaymentDue),
		State:        StateReverted.String(),
		Duration:     elapsed,
		CreatedAt:    time.Now().UTC(),
	}
	if result != nil {
		rec.FinalOutput = result.FinalOutput.Dec()
		rec.Profit = result.Profit.Dec()
		rec.State = result.State.String()
	}
	if cause != nil {
		rec.Reason = Reason(cause)
	}
	// a journal failure must not turn a settled attack into a failed one
	if err := e.cfg.Recorder.RecordSettlement(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("Failed to record settlement", zap.Error(err))
	}
}

// ValidatePath checks that path is a cycle of distinct adjacent tokens over
// existing pools and returns the pool of every hop, lending pool first.
func ValidatePath(ledger dex.PoolLedger, path []common.Address) ([]types.PoolID, error) {
	if len(path) < 2 {
		return nil, types.ErrInvalidPath.Wrapf("need at least 2 tokens, got %d", len(path))
	}
	if path[0] != path[len(path)-1] {
		return nil, types.ErrInvalidPath.Wrapf("path must return to %s", path[0].Hex())
	}
	return uniswap.ResolvePools(ledger, path)
}

// Reason maps an attack failure to a short metric label
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, types.ErrInsufficientProfit):
		return "insufficient_profit"
	case errors.Is(err, types.ErrReentrancy):
		return "reentrancy"
	case errors.Is(err, types.ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, types.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, types.ErrInsufficientInputAmount):
		return "insufficient_input_amount"
	case errors.Is(err, types.ErrInsufficientOutputAmount):
		return "insufficient_output_amount"
	case errors.Is(err, types.ErrExpired):
		return "expired"
	case errors.Is(err, types.ErrOverflow):
		return "overflow"
	case errors.Is(err, types.ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, types.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

func decOrEmpty(x *uint256.Int) string {
	if x == nil {
		return ""
	}
	return x.Dec()
}
