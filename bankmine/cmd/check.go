package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the extractor still matches the live site",
	Long: `check re-opens a small sample of already-recorded transactions by
their stored URLs and compares the re-extracted fields against the
ledger. Any mismatch means the site layout drifted and syncing would
corrupt the ledger.`,
	Run: func(cmd *cobra.Command, _ []string) {
		log := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("unable to load configuration")
		}

		ctx := context.Background()
		syncer, err := buildSyncer(ctx, cmd, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to set up check run")
		}

		if err := syncer.Check(ctx, nil); err != nil {
			log.Fatal().Err(err).Msg("consistency check failed")
		}
		fmt.Println("consistency check passed")
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
