package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/flashswap/api"
	"github.com/michaelpento.lv/flashswap/flashloan"
)

var (
	attackPath      string
	attackBorrow    string
	attackMinProfit string
	attackDeadline  time.Duration
	attackDryRun    bool
)

var attackCmd = &cobra.Command{
	Use:   "attack",
	Short: "Run a flash-loan arbitrage cycle",
	Long: `Borrow --borrow of the second token of --path from the pool of its first
two tokens, swap along the rest of the path, and repay the lending pool in
the first token. Any shortfall rolls every pool back. --dry-run simulates
without touching the ledger.`,
	Example: `  flashswap attack --path WETH,USDT,USDC,WETH --borrow 499997456682235632 --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, cfg, err := newBot(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		path, err := resolvePath(b, attackPath)
		if err != nil {
			return err
		}
		borrow, err := requiredAmount("borrow", attackBorrow)
		if err != nil {
			return err
		}

		if attackDryRun {
			sim, err := b.Simulator.SimulateAttack(cmd.Context(), path, borrow)
			if err != nil {
				return err
			}
			return printJSON(cmd, api.NewSimulationResponse(sim))
		}

		minProfit, err := optionalAmount(attackMinProfit)
		if err != nil {
			return err
		}
		deadline := cfg.Deadline(time.Now())
		if attackDeadline > 0 {
			deadline = time.Now().Add(attackDeadline)
		}
		result, err := b.Executor.Execute(cmd.Context(), flashloan.AttackParams{
			Path:         path,
			BorrowAmount: borrow,
			MinProfit:    minProfit,
			Deadline:     deadline,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, api.NewAttackResponse(result))
	},
}

func init() {
	rootCmd.AddCommand(attackCmd)
	attackCmd.Flags().StringVar(&attackPath, "path", "", "cycle of token symbols or addresses, first == last")
	attackCmd.Flags().StringVar(&attackBorrow, "borrow", "", "amount of the second path token to borrow")
	attackCmd.Flags().StringVar(&attackMinProfit, "min-profit", "", "minimum profit in the first path token")
	attackCmd.Flags().DurationVar(&attackDeadline, "deadline", 0, "deadline from now (default from config)")
	attackCmd.Flags().BoolVar(&attackDryRun, "dry-run", false, "simulate without mutating pools")
}
