package cmd

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/flashswap/api"
	"github.com/michaelpento.lv/flashswap/strategies/arbitrage"
	"github.com/michaelpento.lv/flashswap/utils/math"
)

var (
	scanBase   string
	scanPrices []string
)

var scanCmd = &cobra.Command{
	Use:     "scan",
	Short:   "Find profitable triangular flash-loan cycles",
	Example: `  flashswap scan --base WETH --price USDC=1 --price USDT=1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := newBot(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		base, err := b.Ledger.ResolveToken(scanBase)
		if err != nil {
			return err
		}
		prices := make(arbitrage.PriceBook, len(scanPrices))
		tokens := make([]common.Address, 0, len(scanPrices))
		for _, kv := range scanPrices {
			symbol, raw, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid --price %q, want SYMBOL=PRICE", kv)
			}
			token, err := b.Ledger.ResolveToken(symbol)
			if err != nil {
				return err
			}
			price, err := math.ParseAmount(raw)
			if err != nil {
				return err
			}
			prices[token] = price
			tokens = append(tokens, token)
		}

		opps, err := b.Detector.FindArbitrage(cmd.Context(), base, tokens, prices)
		if err != nil {
			return err
		}
		out := make([]api.OpportunityResponse, 0, len(opps))
		for _, o := range opps {
			out = append(out, api.NewOpportunityResponse(o))
		}
		return printJSON(cmd, out)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanBase, "base", "WETH", "token every cycle starts and ends with")
	scanCmd.Flags().StringArrayVar(&scanPrices, "price", nil, "SYMBOL=PRICE reference price, repeatable")
}
