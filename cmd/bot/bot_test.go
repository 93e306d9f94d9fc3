package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/flashswap/config"
	"github.com/michaelpento.lv/flashswap/utils/testutils"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.HTTP.ListenAddr = "127.0.0.1:0"
	cfg.Journal = config.JournalConfig{
		Enabled: true,
		Driver:  "sqlite3",
		DSN:     filepath.Join(t.TempDir(), "journal.db"),
	}
	return cfg
}

func TestNew(t *testing.T) {
	b, err := New(context.Background(), testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer b.Close()

	assert.NotNil(t, b.Router)
	assert.NotNil(t, b.Executor)
	assert.NotNil(t, b.Journal)

	srv, err := b.Server()
	require.NoError(t, err)
	assert.NotNil(t, srv.Routes())
}

func TestMetricsPerInstance(t *testing.T) {
	var bots []*Bot
	for i := 0; i < 2; i++ {
		cfg := testConfig(t)
		cfg.Metrics.Enabled = true
		b, err := New(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer b.Close()
		bots = append(bots, b)
	}

	usdc, err := bots[0].Ledger.ResolveToken("USDC")
	require.NoError(t, err)
	usdt, err := bots[0].Ledger.ResolveToken("USDT")
	require.NoError(t, err)
	_, err = bots[0].Router.SwapExactTokensForTokens(context.Background(), testutils.Ether(1), nil,
		testutils.Path(usdc, usdt), common.Address{}, time.Time{})
	require.NoError(t, err)

	scrape := func(b *Bot) string {
		srv, err := b.Server()
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		return rec.Body.String()
	}

	first := scrape(bots[0])
	assert.Contains(t, first, `flashswap_swaps_total{status="ok"} 1`)
	assert.Contains(t, first, "flashswap_swap_hops_total 1")
	assert.Contains(t, first, "go_goroutines")

	second := scrape(bots[1])
	assert.Contains(t, second, "flashswap_swap_hops_total 0")
	assert.NotContains(t, second, `flashswap_swaps_total{status="ok"}`)
}

func TestNewRejectsBadSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.SeedPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestScannerExecutesOpportunity(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scanner.Enabled = true
	cfg.Scanner.AutoExecute = true
	cfg.Scanner.Interval = 10 * time.Millisecond

	b, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	usdc, err := b.Ledger.ResolveToken("USDC")
	require.NoError(t, err)
	usdt, err := b.Ledger.ResolveToken("USDT")
	require.NoError(t, err)
	_, err = b.Router.SwapExactTokensForTokens(context.Background(), testutils.Ether(1), nil,
		testutils.Path(usdc, usdt), common.Address{}, time.Time{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, b.Start(ctx))

	require.Eventually(t, func() bool {
		stats, err := b.Journal.Stats(context.Background())
		return err == nil && stats["settled"] > 0
	}, 5*time.Second, 20*time.Millisecond)

	records, err := b.Journal.Recent(context.Background(), 100)
	require.NoError(t, err)
	first := records[len(records)-1]
	assert.Equal(t, "settled", first.State)
	assert.Equal(t, "4809315094360074", first.Profit)

	cancel()
	b.Stop()
}
