package cmd

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/flashswap/api"
)

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "List the seeded pools and their reserves",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := newBot(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		pools, err := b.Ledger.Pools(cmd.Context())
		if err != nil {
			return err
		}
		symbol := func(token common.Address) string {
			if s := b.Ledger.Symbol(token); s != token.Hex() {
				return s
			}
			return ""
		}
		out := make([]api.PoolResponse, 0, len(pools))
		for _, p := range pools {
			out = append(out, api.NewPoolResponse(p, symbol))
		}
		return printJSON(cmd, out)
	},
}

func init() {
	rootCmd.AddCommand(poolsCmd)
}
