package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flashswap/cmd/bot"
	"github.com/michaelpento.lv/flashswap/config"
	"github.com/michaelpento.lv/flashswap/utils"
	"github.com/michaelpento.lv/flashswap/utils/math"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "flashswap",
	Short: "Constant-product AMM pricing and flash-loan arbitrage",
	Long: `flashswap prices and executes constant-product swaps over an in-memory
pool ledger, sizes profit-maximizing trades, and runs atomic flash-loan
arbitrage cycles that either repay the lending pool or roll back entirely.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.flashswap.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	if err := config.LoadEnv(); err != nil {
		utils.GetLogger().Warn("Failed to load .env", zap.Error(err))
	}
}

// newBot loads the configuration, installs its logger and builds a freshly
// seeded bot
func newBot(cmd *cobra.Command) (*bot.Bot, *config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := utils.InitLogger(cfg.Log.Options(debug))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	b, err := bot.New(cmd.Context(), cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return b, cfg, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func resolvePath(b *bot.Bot, raw string) ([]common.Address, error) {
	if raw == "" {
		return nil, fmt.Errorf("--path is required")
	}
	return b.Ledger.ResolvePath(strings.Split(raw, ","))
}

func requiredAmount(flag, raw string) (*uint256.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("--%s is required", flag)
	}
	return math.ParseAmount(raw)
}

func optionalAmount(raw string) (*uint256.Int, error) {
	if raw == "" {
		return nil, nil
	}
	return math.ParseAmount(raw)
}
