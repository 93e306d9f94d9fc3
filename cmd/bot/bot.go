package bot

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flashswap/api"
	"github.com/michaelpento.lv/flashswap/config"
	"github.com/michaelpento.lv/flashswap/dex"
	"github.com/michaelpento.lv/flashswap/dex/uniswap"
	"github.com/michaelpento.lv/flashswap/flashloan"
	"github.com/michaelpento.lv/flashswap/journal"
	"github.com/michaelpento.lv/flashswap/ledger"
	"github.com/michaelpento.lv/flashswap/simulator"
	"github.com/michaelpento.lv/flashswap/strategies/arbitrage"
	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/math"
	"github.com/michaelpento.lv/flashswap/utils/metrics"
	"github.com/michaelpento.lv/flashswap/utils/monitor"
)

// Bot wires the ledger, pricing, execution and persistence together
type Bot struct {
	cfg       *config.Config
	Ledger    *ledger.Memory
	Router    *uniswap.Router
	Executor  *flashloan.Executor
	Simulator *simulator.Simulator
	Detector  *arbitrage.Detector
	Journal   *journal.Store
	monitor   *monitor.PoolMonitor
	registry  *prometheus.Registry
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// New creates a bot from cfg. The ledger is seeded from cfg.Ledger.SeedPath,
// or with the default WETH/USDC/USDT market when none is set.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Bot, error) {
	minProfit, err := cfg.MinProfitAmount()
	if err != nil {
		return nil, err
	}

	l, err := ledger.NewSeeded(logger.Named("ledger"), ledger.Options{
		PairCacheSize: cfg.Ledger.PairCacheSize,
	}, cfg.Ledger.SeedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	b := &Bot{
		cfg:    cfg,
		Ledger: l,
		logger: logger,
	}

	var reg prometheus.Registerer
	if cfg.Metrics.Enabled {
		b.registry = metrics.NewRegistry()
		reg = b.registry
	}
	namespace := cfg.Metrics.Namespace

	guard := dex.NewSlippageGuard(nil)
	b.Router, err = uniswap.NewRouter(l, uniswap.RouterConfig{
		FeePerMille: cfg.FeePerMille,
		Guard:       guard,
		Metrics:     metrics.NewSwapMetrics(reg, namespace),
	}, logger.Named("router"))
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	var recorder flashloan.Recorder
	if cfg.Journal.Enabled {
		b.Journal, err = journal.Open(ctx, cfg.Journal.Driver, cfg.Journal.DSN)
		if err != nil {
			return nil, err
		}
		recorder = b.Journal
	}

	b.Executor, err = flashloan.NewExecutor(l, flashloan.ExecutorConfig{
		FeePerMille: cfg.FeePerMille,
		MinProfit:   minProfit,
		Guard:       guard,
		Limiter:     cfg.AttackRateLimit.Limiter(),
		WaitTimeout: cfg.AttackRateLimit.WaitTimeout,
		Recorder:    recorder,
		Metrics:     metrics.NewFlashLoanMetrics(reg, namespace),
	}, logger.Named("flashloan"))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	b.Simulator = simulator.NewSimulator(l, cfg.FeePerMille, logger.Named("simulator"))
	b.Detector = arbitrage.NewDetector(l, b.Simulator, minProfit, logger.Named("detector"))
	b.monitor = monitor.NewPoolMonitor(l, reg, namespace, time.Second, logger.Named("monitor"))

	return b, nil
}

// Server builds the HTTP API over the bot's components
func (b *Bot) Server() (*api.Server, error) {
	deps := api.Dependencies{
		Market:    b.Ledger,
		Router:    b.Router,
		Executor:  b.Executor,
		Simulator: b.Simulator,
		Detector:  b.Detector,
		Deadline:  b.cfg.Deadline,
		Logger:    b.logger.Named("api"),
	}
	if b.Journal != nil {
		deps.Journal = b.Journal
	}
	if b.registry != nil {
		deps.Gatherer = b.registry
	}
	return api.NewServer(deps)
}

// Start binds the HTTP listener and launches the server, the pool monitor
// and, when enabled, the arbitrage scanner. It returns once everything runs.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting flashswap...")

	var sc *scan
	if b.cfg.Scanner.Enabled {
		var err error
		if sc, err = b.newScan(); err != nil {
			return err
		}
	}

	srv, err := b.Server()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", b.cfg.HTTP.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", b.cfg.HTTP.ListenAddr, err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := srv.Serve(ctx, ln, b.cfg.HTTP.ReadTimeout, b.cfg.HTTP.WriteTimeout); err != nil {
			b.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	b.monitor.Start(ctx)

	if sc != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.processOpportunities(ctx, sc)
		}()
	}

	return nil
}

// Stop waits for every goroutine started by Start and releases resources.
// Cancel Start's context first.
func (b *Bot) Stop() {
	b.logger.Info("Stopping flashswap...")
	b.monitor.Stop()
	b.wg.Wait()
	b.Close()
}

// Close releases the journal
func (b *Bot) Close() {
	if b.Journal != nil {
		if err := b.Journal.Close(); err != nil {
			b.logger.Warn("Failed to close journal", zap.Error(err))
		}
	}
}

type scan struct {
	base   common.Address
	tokens []common.Address
	prices arbitrage.PriceBook
}

func (b *Bot) newScan() (*scan, error) {
	base, err := b.Ledger.ResolveToken(b.cfg.Scanner.Base)
	if err != nil {
		return nil, err
	}
	s := &scan{base: base, prices: make(arbitrage.PriceBook)}
	for symbol, raw := range b.cfg.Scanner.Prices {
		token, err := b.Ledger.ResolveToken(symbol)
		if err != nil {
			return nil, err
		}
		price, err := math.ParseAmount(raw)
		if err != nil {
			return nil, err
		}
		s.prices[token] = price
		s.tokens = append(s.tokens, token)
	}
	return s, nil
}

// processOpportunities scans for cycles on every tick and, with AutoExecute,
// attacks the most profitable one.
func (b *Bot) processOpportunities(ctx context.Context, s *scan) {
	ticker := time.NewTicker(b.cfg.Scanner.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opps, err := b.Detector.FindArbitrage(ctx, s.base, s.tokens, s.prices)
			if err != nil {
				if ctx.Err() == nil {
					b.logger.Error("Arbitrage scan failed", zap.Error(err))
				}
				continue
			}
			if len(opps) == 0 || !b.cfg.Scanner.AutoExecute {
				continue
			}
			if err := b.executeOpportunity(ctx, opps[0]); err != nil {
				b.logger.Warn("Failed to execute opportunity",
					zap.Error(err),
					zap.String("expected_profit", opps[0].ExpectedProfit.Dec()))
			}
		}
	}
}

func (b *Bot) executeOpportunity(ctx context.Context, opp *types.ArbitrageOpportunity) error {
	b.logger.Info("Executing opportunity",
		zap.Int("hops", len(opp.Pools)),
		zap.String("borrow", opp.BorrowAmount.Dec()),
		zap.String("expected_profit", opp.ExpectedProfit.Dec()))

	_, err := b.Executor.Execute(ctx, flashloan.AttackParams{
		Path:         opp.Path,
		BorrowAmount: opp.BorrowAmount,
		Deadline:     b.cfg.Deadline(time.Now()),
	})
	return err
}
