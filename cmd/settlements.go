package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/flashswap/api"
)

var (
	settlementsLimit int
	settlementsStats bool
)

var settlementsCmd = &cobra.Command{
	Use:   "settlements",
	Short: "List journaled flash-loan attacks",
	Long: `Read the settlement journal. Without --stats the most recent --limit
attacks are listed newest first; with --stats they are counted per final
state. The journal must be enabled in the config or via FLASHSWAP_JOURNAL.`,
	Example: `  FLASHSWAP_JOURNAL=flashswap.db flashswap settlements --stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := newBot(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		if b.Journal == nil {
			return fmt.Errorf("journal is not enabled")
		}

		if settlementsStats {
			stats, err := b.Journal.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, api.NewSettlementStatsResponse(stats))
		}

		if settlementsLimit <= 0 {
			return fmt.Errorf("--limit must be positive")
		}
		records, err := b.Journal.Recent(cmd.Context(), settlementsLimit)
		if err != nil {
			return err
		}
		resp := make([]api.SettlementResponse, 0, len(records))
		for _, rec := range records {
			resp = append(resp, api.NewSettlementResponse(rec))
		}
		return printJSON(cmd, resp)
	},
}

func init() {
	rootCmd.AddCommand(settlementsCmd)
	settlementsCmd.Flags().IntVar(&settlementsLimit, "limit", 50, "number of attacks to list")
	settlementsCmd.Flags().BoolVar(&settlementsStats, "stats", false, "count attacks per final state")
}
