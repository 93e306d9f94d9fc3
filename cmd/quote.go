package cmd

import (
	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/flashswap/api"
)

var (
	quotePath     string
	quoteAmount   string
	quoteExactOut bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Quote every hop of a path",
	Long: `Quote the amounts along a path. By default --amount is the input and the
output of each hop is returned; with --exact-out --amount is the desired
final output and the required input of each hop is returned.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := newBot(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		path, err := resolvePath(b, quotePath)
		if err != nil {
			return err
		}
		amount, err := requiredAmount("amount", quoteAmount)
		if err != nil {
			return err
		}

		quote := b.Router.GetAmountsOut
		if quoteExactOut {
			quote = b.Router.GetAmountsIn
		}
		amounts, err := quote(cmd.Context(), amount, path)
		if err != nil {
			return err
		}
		return printJSON(cmd, api.NewAmountsResponse(path, amounts))
	},
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().StringVar(&quotePath, "path", "", "comma separated token symbols or addresses")
	quoteCmd.Flags().StringVar(&quoteAmount, "amount", "", "amount in the smallest unit")
	quoteCmd.Flags().BoolVar(&quoteExactOut, "exact-out", false, "treat --amount as the desired output")
}
