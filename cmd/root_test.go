package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/flashswap/api"
	"github.com/michaelpento.lv/flashswap/config"
	"github.com/michaelpento.lv/flashswap/types"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Metrics.Enabled = false
	return cfg
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flashswap.json")
	require.NoError(t, config.SaveConfig(cfg, path))
	return path
}

func run(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	return runWith(t, testConfig(), args...)
}

func runWith(t *testing.T, cfg *config.Config, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(append(args, "--config", writeTestConfig(t, cfg)))
	err := rootCmd.ExecuteContext(context.Background())
	return out, err
}

func TestMain(m *testing.M) {
	// keep a developer's .env out of the tests
	dir, err := os.MkdirTemp("", "flashswap-cmd")
	if err != nil {
		panic(err)
	}
	if err := os.Chdir(dir); err != nil {
		panic(err)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func TestPoolsCommand(t *testing.T) {
	out, err := run(t, "pools")
	require.NoError(t, err)

	var pools []api.PoolResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &pools))
	assert.Len(t, pools, 3)
}

func TestQuoteCommand(t *testing.T) {
	out, err := run(t, "quote", "--path", "USDC,USDT", "--amount", "1000000000000000000", "--exact-out=false")
	require.NoError(t, err)

	var resp api.AmountsResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, []string{"1000000000000000000", "499248873309964947"}, resp.Amounts)

	_, err = run(t, "quote", "--path", "USDC,USDT", "--amount", "1000000000000000000", "--exact-out")
	assert.ErrorIs(t, err, types.ErrInsufficientLiquidity)
}

func TestSwapCommand(t *testing.T) {
	_, err := run(t, "swap", "--path", "USDC,USDT",
		"--amount-in", "1000000000000000000", "--min-out", "500000000000000000")
	assert.ErrorIs(t, err, types.ErrInsufficientOutputAmount)

	out, err := run(t, "swap", "--path", "USDC,USDT",
		"--amount-in", "1000000000000000000", "--min-out", "400000000000000000")
	require.NoError(t, err)
	var resp api.SwapResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "499248873309964947", resp.Amounts[1])
}

func TestSolveCommand(t *testing.T) {
	out, err := run(t, "solve", "--token-a", "USDC", "--token-b", "USDT", "--price-a", "1", "--price-b", "1")
	require.NoError(t, err)

	var resp api.SolveResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.False(t, resp.Profitable)
	assert.Equal(t, "0", resp.AmountIn)
}

func TestAttackCommand(t *testing.T) {
	out, err := run(t, "attack", "--path", "WETH,USDT,USDC,WETH", "--borrow", "100000000000000000", "--dry-run")
	require.NoError(t, err)

	var sim api.SimulationResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &sim))
	assert.False(t, sim.Success)
	assert.Equal(t, "insufficient_profit", sim.Reason)

	_, err = run(t, "attack", "--path", "WETH,USDT,USDC,WETH", "--borrow", "100000000000000000", "--dry-run=false")
	assert.ErrorIs(t, err, types.ErrInsufficientProfit)
}

func TestSettlementsCommand(t *testing.T) {
	_, err := run(t, "settlements", "--stats=false")
	assert.Error(t, err)

	t.Setenv(config.EnvJournalDSN, filepath.Join(t.TempDir(), "journal.db"))

	_, err = run(t, "attack", "--path", "WETH,USDT,USDC,WETH", "--borrow", "100000000000000000", "--dry-run=false")
	require.ErrorIs(t, err, types.ErrInsufficientProfit)

	out, err := run(t, "settlements", "--stats")
	require.NoError(t, err)
	var stats api.SettlementStatsResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.ByState["reverted"])

	out, err = run(t, "settlements", "--stats=false", "--limit", "10")
	require.NoError(t, err)
	var records []api.SettlementResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "insufficient_profit", records[0].Reason)
	assert.Equal(t, "100000000000000000", records[0].BorrowAmount)
}

func TestScanCommand(t *testing.T) {
	out, err := run(t, "scan", "--base", "WETH", "--price", "USDC=1", "--price", "USDT=1")
	require.NoError(t, err)

	var opps []api.OpportunityResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &opps))
	assert.Empty(t, opps)

	_, err = run(t, "scan", "--price", "USDC")
	assert.Error(t, err)
}

func TestLogConfigInstallsLogger(t *testing.T) {
	cfg := testConfig()
	cfg.Log.Level = "info"
	cfg.Log.File = filepath.Join(t.TempDir(), "flashswap.log")

	_, err := runWith(t, cfg, "pools")
	require.NoError(t, err)
	assert.FileExists(t, cfg.Log.File)

	cfg.Log.Level = "loud"
	_, err = runWith(t, cfg, "pools")
	assert.ErrorContains(t, err, "log error")
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashswap.json")
	exec := func(args ...string) error {
		rootCmd.SetOut(new(bytes.Buffer))
		rootCmd.SetErr(new(bytes.Buffer))
		rootCmd.SetArgs(append(args, "--config", path))
		return rootCmd.ExecuteContext(context.Background())
	}

	require.NoError(t, exec("init", "--force=false"))
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	assert.ErrorContains(t, exec("init", "--force=false"), "already exists")
	assert.NoError(t, exec("init", "--force"))
}
