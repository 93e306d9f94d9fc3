package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flashswap/flashloan"
	"github.com/michaelpento.lv/flashswap/strategies/arbitrage"
	"github.com/michaelpento.lv/flashswap/utils/math"
)

const defaultSettlementLimit = 50

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.deps.Market.Pools(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]PoolResponse, 0, len(pools))
	for _, p := range pools {
		resp = append(resp, NewPoolResponse(p, s.symbol))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) quoteOut(w http.ResponseWriter, r *http.Request) {
	path, amount, err := s.quoteParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	amounts, err := s.deps.Router.GetAmountsOut(r.Context(), amount, path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewAmountsResponse(path, amounts))
}

func (s *Server) quoteIn(w http.ResponseWriter, r *http.Request) {
	path, amount, err := s.quoteParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	amounts, err := s.deps.Router.GetAmountsIn(r.Context(), amount, path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewAmountsResponse(path, amounts))
}

func (s *Server) solve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenA, err := s.deps.Market.ResolveToken(q.Get("token_a"))
	if err != nil {
		writeError(w, err)
		return
	}
	tokenB, err := s.deps.Market.ResolveToken(q.Get("token_b"))
	if err != nil {
		writeError(w, err)
		return
	}
	priceA, err := parseAmount("price_a", q.Get("price_a"))
	if err != nil {
		writeError(w, err)
		return
	}
	priceB, err := parseAmount("price_b", q.Get("price_b"))
	if err != nil {
		writeError(w, err)
		return
	}

	solution, err := arbitrage.SolveForPool(r.Context(), s.deps.Market, tokenA, tokenB, priceA, priceB)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSolveResponse(solution))
}

func (s *Server) swap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest{fmt.Errorf("invalid request body: %w", err)})
		return
	}

	path, err := s.deps.Market.ResolvePath(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	var to common.Address
	if req.To != "" {
		if !common.IsHexAddress(req.To) {
			writeError(w, badRequest{fmt.Errorf("invalid recipient %q", req.To)})
			return
		}
		to = common.HexToAddress(req.To)
	}
	deadline := s.deadline(req.DeadlineSeconds)

	exactOut := req.AmountOut != ""
	if exactOut == (req.AmountIn != "") {
		writeError(w, badRequest{fmt.Errorf("exactly one of amount_in and amount_out is required")})
		return
	}

	if exactOut {
		amountOut, err := parseAmount("amount_out", req.AmountOut)
		if err != nil {
			writeError(w, err)
			return
		}
		maxIn, err := parseOptionalAmount("max_amount_in", req.MaxAmountIn)
		if err != nil {
			writeError(w, err)
			return
		}
		if maxIn == nil {
			maxIn = new(uint256.Int).SetAllOne()
		}
		result, err := s.deps.Router.SwapTokensForExactTokens(r.Context(), amountOut, maxIn, path, to, deadline)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NewSwapResponse(path, result))
		return
	}

	amountIn, err := parseAmount("amount_in", req.AmountIn)
	if err != nil {
		writeError(w, err)
		return
	}
	minOut, err := parseOptionalAmount("min_amount_out", req.MinAmountOut)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.deps.Router.SwapExactTokensForTokens(r.Context(), amountIn, minOut, path, to, deadline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSwapResponse(path, result))
}

func (s *Server) attack(w http.ResponseWriter, r *http.Request) {
	var req AttackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest{fmt.Errorf("invalid request body: %w", err)})
		return
	}

	path, err := s.deps.Market.ResolvePath(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	borrow, err := parseAmount("borrow_amount", req.BorrowAmount)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.DryRun {
		sim, err := s.deps.Simulator.SimulateAttack(r.Context(), path, borrow)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NewSimulationResponse(sim))
		return
	}

	minProfit, err := parseOptionalAmount("min_profit", req.MinProfit)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.deps.Executor.Execute(r.Context(), flashloan.AttackParams{
		Path:         path,
		BorrowAmount: borrow,
		MinProfit:    minProfit,
		Deadline:     s.deadline(req.DeadlineSeconds),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewAttackResponse(result))
}

func (s *Server) opportunities(w http.ResponseWriter, r *http.Request) {
	if s.deps.Detector == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "detector not configured"})
		return
	}

	var req OpportunitiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest{fmt.Errorf("invalid request body: %w", err)})
		return
	}

	base, err := s.deps.Market.ResolveToken(req.Base)
	if err != nil {
		writeError(w, err)
		return
	}
	prices := make(arbitrage.PriceBook, len(req.Prices))
	tokens := make([]common.Address, 0, len(req.Prices))
	for symbol, raw := range req.Prices {
		token, err := s.deps.Market.ResolveToken(symbol)
		if err != nil {
			writeError(w, err)
			return
		}
		price, err := parseAmount("price of "+symbol, raw)
		if err != nil {
			writeError(w, err)
			return
		}
		prices[token] = price
		tokens = append(tokens, token)
	}
	if len(req.Tokens) > 0 {
		if tokens, err = s.deps.Market.ResolvePath(req.Tokens); err != nil {
			writeError(w, err)
			return
		}
	}

	opps, err := s.deps.Detector.FindArbitrage(r.Context(), base, tokens, prices)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]OpportunityResponse, 0, len(opps))
	for _, o := range opps {
		resp = append(resp, NewOpportunityResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) settlements(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "journal not configured"})
		return
	}

	limit := defaultSettlementLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, badRequest{fmt.Errorf("invalid limit %q", raw)})
			return
		}
		limit = n
	}

	records, err := s.deps.Journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to read settlements", zap.Error(err))
		writeError(w, err)
		return
	}
	resp := make([]SettlementResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, NewSettlementResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) digest(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Market.Digest(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DigestResponse{Digest: fmt.Sprintf("%016x", d)})
}

func (s *Server) settlementStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "journal not configured"})
		return
	}

	stats, err := s.deps.Journal.Stats(r.Context())
	if err != nil {
		s.logger.Error("Failed to count settlements", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSettlementStatsResponse(stats))
}

func (s *Server) quoteParams(r *http.Request) ([]common.Address, *uint256.Int, error) {
	q := r.URL.Query()
	raw := q.Get("path")
	if raw == "" {
		return nil, nil, badRequest{fmt.Errorf("path is required")}
	}
	path, err := s.deps.Market.ResolvePath(strings.Split(raw, ","))
	if err != nil {
		return nil, nil, err
	}
	amount, err := parseAmount("amount", q.Get("amount"))
	if err != nil {
		return nil, nil, err
	}
	return path, amount, nil
}

// deadline is now+seconds when given, else the configured window
func (s *Server) deadline(seconds int64) time.Time {
	now := time.Now()
	if seconds > 0 {
		return now.Add(time.Duration(seconds) * time.Second)
	}
	return s.deps.Deadline(now)
}

func (s *Server) symbol(token common.Address) string {
	if sym := s.deps.Market.Symbol(token); sym != token.Hex() {
		return sym
	}
	return ""
}

func parseAmount(field, raw string) (*uint256.Int, error) {
	if raw == "" {
		return nil, badRequest{fmt.Errorf("%s is required", field)}
	}
	x, err := math.ParseAmount(raw)
	if err != nil {
		return nil, badRequest{fmt.Errorf("%s: %w", field, err)}
	}
	return x, nil
}

func parseOptionalAmount(field, raw string) (*uint256.Int, error) {
	if raw == "" {
		return nil, nil
	}
	return parseAmount(field, raw)
}
