package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	dataDir    string
	defaultCfg string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("engine failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f rootFlags
	root := &cobra.Command{
		Use:           "engine",
		Short:         "Market-signal analytics engine for the recruitment marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	dataDir := os.Getenv("ENGINE_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	root.PersistentFlags().StringVar(&f.dataDir, "data-dir", dataDir, "directory holding config.yml, the sqlite db and the scheduler lock")
	root.PersistentFlags().StringVar(&f.defaultCfg, "default-config", "config/config.yml", "config copied into the data dir on first run")

	root.AddCommand(
		newServeCmd(&f),
		newMigrateCmd(&f),
		newSweepCmd(&f),
		newDigestCmd(&f),
		newTokenCmd(&f),
		newSeedCmd(&f),
	)
	return root
}
