package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flashswap/dex"
	"github.com/michaelpento.lv/flashswap/dex/uniswap"
	"github.com/michaelpento.lv/flashswap/flashloan"
	"github.com/michaelpento.lv/flashswap/simulator"
	"github.com/michaelpento.lv/flashswap/strategies/arbitrage"
	"github.com/michaelpento.lv/flashswap/types"
)

// Market is the ledger surface the API reads and resolves tokens against
type Market interface {
	dex.PoolLedger
	Pools(ctx context.Context) ([]types.Pool, error)
	Digest(ctx context.Context) (uint64, error)
	ResolveToken(s string) (common.Address, error)
	ResolvePath(symbols []string) ([]common.Address, error)
	Symbol(token common.Address) string
}

// SettlementReader lists and counts journaled attacks
type SettlementReader interface {
	Recent(ctx context.Context, limit int) ([]*types.SettlementRecord, error)
	Stats(ctx context.Context) (map[string]int64, error)
}

// Dependencies holds everything the handlers call into
type Dependencies struct {
	Market    Market
	Router    *uniswap.Router
	Executor  *flashloan.Executor
	Simulator *simulator.Simulator
	Detector  *arbitrage.Detector
	Journal   SettlementReader // optional
	Gatherer  prometheus.Gatherer
	Deadline  func(now time.Time) time.Time
	Logger    *zap.Logger
}

// Server serves the flashswap HTTP API
type Server struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewServer validates deps and builds a server
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Market == nil || deps.Router == nil || deps.Executor == nil || deps.Simulator == nil {
		return nil, errors.New("api: market, router, executor and simulator are required")
	}
	if deps.Deadline == nil {
		deps.Deadline = func(time.Time) time.Time { return time.Time{} }
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{deps: deps, logger: deps.Logger}, nil
}

// Routes builds the router.
//
//	GET  /healthz
//	GET  /metrics
//	GET  /api/v1/pools
//	GET  /api/v1/digest
//	GET  /api/v1/quote/out?amount=&path=WETH,USDC
//	GET  /api/v1/quote/in?amount=&path=WETH,USDC
//	GET  /api/v1/solve?token_a=&token_b=&price_a=&price_b=
//	POST /api/v1/swap
//	POST /api/v1/attack
//	POST /api/v1/opportunities
//	GET  /api/v1/settlements?limit=
//	GET  /api/v1/settlements/stats
func (s *Server) Routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery(s.logger))
	router.Use(logging(s.logger))

	router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if s.deps.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/pools", s.listPools).Methods(http.MethodGet)
	v1.HandleFunc("/digest", s.digest).Methods(http.MethodGet)
	v1.HandleFunc("/quote/out", s.quoteOut).Methods(http.MethodGet)
	v1.HandleFunc("/quote/in", s.quoteIn).Methods(http.MethodGet)
	v1.HandleFunc("/solve", s.solve).Methods(http.MethodGet)
	v1.HandleFunc("/swap", s.swap).Methods(http.MethodPost)
	v1.HandleFunc("/attack", s.attack).Methods(http.MethodPost)
	v1.HandleFunc("/opportunities", s.opportunities).Methods(http.MethodPost)
	v1.HandleFunc("/settlements", s.settlements).Methods(http.MethodGet)
	v1.HandleFunc("/settlements/stats", s.settlementStats).Methods(http.MethodGet)

	return router
}

// Serve serves on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Handler:      s.Routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}
