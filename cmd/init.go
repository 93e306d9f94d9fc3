package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/flashswap/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long: `Write the default configuration to --config, or $HOME/.flashswap.json when
no path is given. An existing file is kept unless --force is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" && !initForce {
			if _, err := os.Stat(cfgFile); err == nil {
				return fmt.Errorf("%s already exists, use --force to overwrite", cfgFile)
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
		if err := config.SaveConfig(config.DefaultConfig(), cfgFile); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", displayPath(cfgFile))
		return nil
	},
}

func displayPath(p string) string {
	if p == "" {
		return "$HOME/.flashswap.json"
	}
	return p
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
}
