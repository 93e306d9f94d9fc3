package flashloan

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/flashswap/dex"
	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/metrics"
)

// ExecutorConfig contains configuration for the executor
type ExecutorConfig struct {
	FeePerMille uint64
	// MinProfit is the default floor for AttackParams.MinProfit
	MinProfit *uint256.Int
	Guard     *dex.SlippageGuard
	// Limiter throttles attacks; nil means unlimited
	Limiter     *rate.Limiter
	WaitTimeout time.Duration
	Recorder    Recorder
	Metrics     *metrics.FlashLoanMetrics
}

// AttackParams contains parameters for executing a flash-loan attack
type AttackParams struct {
	Path         []common.Address // cycle starting and ending at the debt token
	BorrowAmount *uint256.Int     // amount of Path[1] taken from the lending pool
	MinProfit    *uint256.Int     // nil uses the executor default
	Deadline     time.Time        // zero means none
}

// AttackResult is the outcome of a settled attack
type AttackResult struct {
	SessionID     uint64
	Path          []common.Address
	Pools         []types.PoolID
	LendingPool   types.PoolID
	BorrowedToken common.Address
	DebtToken     common.Address
	BorrowAmount  *uint256.Int
	RepaymentDue  *uint256.Int
	HopAmounts    []*uint256.Int
	FinalOutput   *uint256.Int
	Profit        *uint256.Int
	State         State
	Duration      time.Duration
}
