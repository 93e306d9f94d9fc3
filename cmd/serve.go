package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flashswap/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API over a long-lived ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, cfg, err := newBot(cmd)
		if err != nil {
			return err
		}
		log := utils.GetLogger()

		ctx := cmd.Context()
		if err := b.Start(ctx); err != nil {
			b.Close()
			return err
		}
		log.Info("flashswap serving",
			zap.String("addr", cfg.HTTP.ListenAddr),
			zap.Bool("scanner", cfg.Scanner.Enabled))

		<-ctx.Done()
		b.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
