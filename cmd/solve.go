package cmd

import (
	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/flashswap/api"
	"github.com/michaelpento.lv/flashswap/strategies/arbitrage"
)

var (
	solveTokenA string
	solveTokenB string
	solvePriceA string
	solvePriceB string
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Compute the trade that moves a pool to the given true prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := newBot(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		tokenA, err := b.Ledger.ResolveToken(solveTokenA)
		if err != nil {
			return err
		}
		tokenB, err := b.Ledger.ResolveToken(solveTokenB)
		if err != nil {
			return err
		}
		priceA, err := requiredAmount("price-a", solvePriceA)
		if err != nil {
			return err
		}
		priceB, err := requiredAmount("price-b", solvePriceB)
		if err != nil {
			return err
		}

		solution, err := arbitrage.SolveForPool(cmd.Context(), b.Ledger, tokenA, tokenB, priceA, priceB)
		if err != nil {
			return err
		}
		return printJSON(cmd, api.NewSolveResponse(solution))
	},
}

func init() {
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().StringVar(&solveTokenA, "token-a", "", "first token")
	solveCmd.Flags().StringVar(&solveTokenB, "token-b", "", "second token")
	solveCmd.Flags().StringVar(&solvePriceA, "price-a", "1", "true price of the first token")
	solveCmd.Flags().StringVar(&solvePriceB, "price-b", "1", "true price of the second token")
}
