package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"

	"github.com/michaelpento.lv/flashswap/dex/uniswap"
	"github.com/michaelpento.lv/flashswap/flashloan"
	"github.com/michaelpento.lv/flashswap/simulator"
	"github.com/michaelpento.lv/flashswap/strategies/arbitrage"
	"github.com/michaelpento.lv/flashswap/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	Codespace string `json:"codespace,omitempty"`
	Code      uint32 `json:"code,omitempty"`
}

type PoolResponse struct {
	ID       string `json:"id"`
	Token0   string `json:"token0"`
	Symbol0  string `json:"symbol0,omitempty"`
	Token1   string `json:"token1"`
	Symbol1  string `json:"symbol1,omitempty"`
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
}

type AmountsResponse struct {
	Path    []string `json:"path"`
	Amounts []string `json:"amounts"`
}

type SolveResponse struct {
	Pool       string `json:"pool"`
	Direction  string `json:"direction"`
	TokenIn    string `json:"token_in"`
	TokenOut   string `json:"token_out"`
	AmountIn   string `json:"amount_in"`
	AmountOut  string `json:"amount_out"`
	Profitable bool   `json:"profitable"`
}

type SwapRequest struct {
	Path []string `json:"path"`
	// exact input
	AmountIn     string `json:"amount_in,omitempty"`
	MinAmountOut string `json:"min_amount_out,omitempty"`
	// exact output
	AmountOut   string `json:"amount_out,omitempty"`
	MaxAmountIn string `json:"max_amount_in,omitempty"`

	To              string `json:"to,omitempty"`
	DeadlineSeconds int64  `json:"deadline_seconds,omitempty"`
}

type SwapResponse struct {
	Path    []string `json:"path"`
	Pools   []string `json:"pools"`
	Amounts []string `json:"amounts"`
	To      string   `json:"to"`
}

type AttackRequest struct {
	Path            []string `json:"path"`
	BorrowAmount    string   `json:"borrow_amount"`
	MinProfit       string   `json:"min_profit,omitempty"`
	DeadlineSeconds int64    `json:"deadline_seconds,omitempty"`
	DryRun          bool     `json:"dry_run,omitempty"`
}

type AttackResponse struct {
	SessionID     uint64   `json:"session_id"`
	Path          []string `json:"path"`
	Pools         []string `json:"pools"`
	LendingPool   string   `json:"lending_pool"`
	BorrowedToken string   `json:"borrowed_token"`
	DebtToken     string   `json:"debt_token"`
	BorrowAmount  string   `json:"borrow_amount"`
	RepaymentDue  string   `json:"repayment_due"`
	HopAmounts    []string `json:"hop_amounts"`
	FinalOutput   string   `json:"final_output"`
	Profit        string   `json:"profit"`
	State         string   `json:"state"`
	DurationMs    float64  `json:"duration_ms"`
}

type SimulationResponse struct {
	Success bool            `json:"success"`
	Reason  string          `json:"reason,omitempty"`
	Error   string          `json:"error,omitempty"`
	Attack  *AttackResponse `json:"attack,omitempty"`
}

type OpportunitiesRequest struct {
	Base   string            `json:"base"`
	Tokens []string          `json:"tokens,omitempty"`
	Prices map[string]string `json:"prices"`
}

type OpportunityResponse struct {
	Path           []string `json:"path"`
	Pools          []string `json:"pools"`
	BorrowAmount   string   `json:"borrow_amount"`
	RepaymentDue   string   `json:"repayment_due"`
	ExpectedProfit string   `json:"expected_profit"`
}

type SettlementResponse struct {
	ID           int64    `json:"id"`
	SessionID    uint64   `json:"session_id"`
	Path         []string `json:"path"`
	BorrowAmount string   `json:"borrow_amount"`
	RepaymentDue string   `json:"repayment_due,omitempty"`
	FinalOutput  string   `json:"final_output,omitempty"`
	Profit       string   `json:"profit,omitempty"`
	State        string   `json:"state"`
	Reason       string   `json:"reason,omitempty"`
	DurationMs   float64  `json:"duration_ms"`
	CreatedAt    string   `json:"created_at"`
}

func NewSettlementResponse(rec *types.SettlementRecord) SettlementResponse {
	return SettlementResponse{
		ID:           rec.ID,
		SessionID:    rec.SessionID,
		Path:         hexes(rec.Path),
		BorrowAmount: rec.BorrowAmount,
		RepaymentDue: rec.RepaymentDue,
		FinalOutput:  rec.FinalOutput,
		Profit:       rec.Profit,
		State:        rec.State,
		Reason:       rec.Reason,
		DurationMs:   float64(rec.Duration.Microseconds()) / 1000,
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339Nano),
	}
}

// DigestResponse carries the xxhash of every pool's reserves. It changes
// whenever any reserve does.
type DigestResponse struct {
	Digest string `json:"digest"`
}

// SettlementStatsResponse counts journaled attacks per final state
type SettlementStatsResponse struct {
	Total   int64            `json:"total"`
	ByState map[string]int64 `json:"by_state"`
}

func NewSettlementStatsResponse(stats map[string]int64) SettlementStatsResponse {
	resp := SettlementStatsResponse{ByState: make(map[string]int64, len(stats))}
	for state, n := range stats {
		resp.ByState[state] = n
		resp.Total += n
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var coded *errorsmod.Error
	if errors.As(err, &coded) {
		resp.Codespace = coded.Codespace()
		resp.Code = coded.ABCICode()
	}
	writeJSON(w, statusFor(err), resp)
}

// badRequest marks malformed input that never reached the core
type badRequest struct{ error }

func (b badRequest) Unwrap() error { return b.error }

func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalidPath),
		errors.Is(err, types.ErrInsufficientInputAmount),
		errors.Is(err, types.ErrInvalidPrice),
		errors.Is(err, types.ErrInvalidFee),
		errors.Is(err, types.ErrIdenticalAddresses),
		errors.Is(err, types.ErrZeroAddress):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrInsufficientOutputAmount),
		errors.Is(err, types.ErrInsufficientLiquidity),
		errors.Is(err, types.ErrExcessiveInputAmount),
		errors.Is(err, types.ErrInsufficientProfit),
		errors.Is(err, types.ErrExpired),
		errors.Is(err, types.ErrReentrancy),
		errors.Is(err, types.ErrOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func hexes(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out
}

func poolHexes(ids []types.PoolID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

func decimals(xs []*uint256.Int) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = dec(x)
	}
	return out
}

func dec(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.Dec()
}

// NewAttackResponse renders an attack result with decimal amounts
func NewAttackResponse(r *flashloan.AttackResult) *AttackResponse {
	if r == nil {
		return nil
	}
	return &AttackResponse{
		SessionID:     r.SessionID,
		Path:          hexes(r.Path),
		Pools:         poolHexes(r.Pools),
		LendingPool:   r.LendingPool.Hex(),
		BorrowedToken: r.BorrowedToken.Hex(),
		DebtToken:     r.DebtToken.Hex(),
		BorrowAmount:  dec(r.BorrowAmount),
		RepaymentDue:  dec(r.RepaymentDue),
		HopAmounts:    decimals(r.HopAmounts),
		FinalOutput:   dec(r.FinalOutput),
		Profit:        dec(r.Profit),
		State:         r.State.String(),
		DurationMs:    float64(r.Duration.Microseconds()) / 1000,
	}
}

// NewSimulationResponse renders a dry-run outcome
func NewSimulationResponse(r *simulator.SimulationResult) SimulationResponse {
	resp := SimulationResponse{
		Success: r.Success,
		Reason:  r.Reason,
		Attack:  NewAttackResponse(r.Attack),
	}
	if r.Error != nil {
		resp.Error = r.Error.Error()
	}
	return resp
}

// NewPoolResponse renders a pool. symbol returns "" for unnamed tokens.
func NewPoolResponse(p types.Pool, symbol func(common.Address) string) PoolResponse {
	return PoolResponse{
		ID:       p.ID.Hex(),
		Token0:   p.Token0.Hex(),
		Symbol0:  symbol(p.Token0),
		Token1:   p.Token1.Hex(),
		Symbol1:  symbol(p.Token1),
		Reserve0: dec(p.Reserve0),
		Reserve1: dec(p.Reserve1),
	}
}

func NewOpportunityResponse(o *types.ArbitrageOpportunity) OpportunityResponse {
	return OpportunityResponse{
		Path:           hexes(o.Path),
		Pools:          poolHexes(o.Pools),
		BorrowAmount:   dec(o.BorrowAmount),
		RepaymentDue:   dec(o.RepaymentDue),
		ExpectedProfit: dec(o.ExpectedProfit),
	}
}

// NewAmountsResponse pairs a path with its per-hop amounts
func NewAmountsResponse(path []common.Address, amounts []*uint256.Int) AmountsResponse {
	return AmountsResponse{Path: hexes(path), Amounts: decimals(amounts)}
}

// NewSwapResponse renders a realized swap
func NewSwapResponse(path []common.Address, r *uniswap.SwapResult) SwapResponse {
	return SwapResponse{Path: hexes(path), Pools: poolHexes(r.Pools), Amounts: decimals(r.Amounts), To: r.Recipient.Hex()}
}

// NewSolveResponse renders a solver result
func NewSolveResponse(s *arbitrage.Solution) SolveResponse {
	return SolveResponse{
		Pool:       s.Pool.Hex(),
		Direction:  s.Quote.Direction.String(),
		TokenIn:    s.TokenIn.Hex(),
		TokenOut:   s.TokenOut.Hex(),
		AmountIn:   dec(s.Quote.AmountIn),
		AmountOut:  dec(s.Quote.AmountOut),
		Profitable: s.Profitable(),
	}
}
