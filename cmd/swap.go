package cmd

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/flashswap/api"
	"github.com/michaelpento.lv/flashswap/dex/uniswap"
)

var (
	swapPath      string
	swapAmountIn  string
	swapMinOut    string
	swapAmountOut string
	swapMaxIn     string
	swapTo        string
	swapDeadline  time.Duration
)

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Swap along a path on the seeded ledger",
	Long: `Swap an exact input (--amount-in, optional --min-out) or for an exact
output (--amount-out, optional --max-in). The swap either completes on every
hop or leaves all reserves unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (swapAmountIn == "") == (swapAmountOut == "") {
			return fmt.Errorf("exactly one of --amount-in and --amount-out is required")
		}

		b, cfg, err := newBot(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		path, err := resolvePath(b, swapPath)
		if err != nil {
			return err
		}
		var to common.Address
		if swapTo != "" {
			if !common.IsHexAddress(swapTo) {
				return fmt.Errorf("invalid recipient %q", swapTo)
			}
			to = common.HexToAddress(swapTo)
		}
		deadline := cfg.Deadline(time.Now())
		if swapDeadline > 0 {
			deadline = time.Now().Add(swapDeadline)
		}

		var result *uniswap.SwapResult
		if swapAmountOut != "" {
			amountOut, err := requiredAmount("amount-out", swapAmountOut)
			if err != nil {
				return err
			}
			maxIn, err := optionalAmount(swapMaxIn)
			if err != nil {
				return err
			}
			if maxIn == nil {
				maxIn = new(uint256.Int).SetAllOne()
			}
			result, err = b.Router.SwapTokensForExactTokens(cmd.Context(), amountOut, maxIn, path, to, deadline)
			if err != nil {
				return err
			}
		} else {
			amountIn, err := requiredAmount("amount-in", swapAmountIn)
			if err != nil {
				return err
			}
			minOut, err := optionalAmount(swapMinOut)
			if err != nil {
				return err
			}
			result, err = b.Router.SwapExactTokensForTokens(cmd.Context(), amountIn, minOut, path, to, deadline)
			if err != nil {
				return err
			}
		}
		return printJSON(cmd, api.NewSwapResponse(path, result))
	},
}

func init() {
	rootCmd.AddCommand(swapCmd)
	swapCmd.Flags().StringVar(&swapPath, "path", "", "comma separated token symbols or addresses")
	swapCmd.Flags().StringVar(&swapAmountIn, "amount-in", "", "exact input amount")
	swapCmd.Flags().StringVar(&swapMinOut, "min-out", "", "minimum acceptable output")
	swapCmd.Flags().StringVar(&swapAmountOut, "amount-out", "", "exact output amount")
	swapCmd.Flags().StringVar(&swapMaxIn, "max-in", "", "maximum acceptable input")
	swapCmd.Flags().StringVar(&swapTo, "to", "", "recipient address")
	swapCmd.Flags().DurationVar(&swapDeadline, "deadline", 0, "deadline from now (default from config)")
}
