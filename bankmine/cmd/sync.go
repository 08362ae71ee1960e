package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hako/durafmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/plenert/bankmine"
	"github.com/plenert/bankmine/web"
)

var (
	skipCheck    bool
	dryRun       bool
	lookbackFlag int
	retriesFlag  int
	labelsFlag   string
	localeFlag   string
)

// buildSyncer wires ledger, vocabulary, extractor and navigator for the
// sync and check commands.
func buildSyncer(ctx context.Context, cmd *cobra.Command, cfg Config, log zerolog.Logger) (*bankmine.Syncer, error) {
	if cmd.Flags().Changed("lookback") {
		cfg.Lookback = lookbackFlag
	}
	if cmd.Flags().Changed("retries") {
		cfg.Retries = retriesFlag
	}
	if labelsFlag != "" {
		cfg.Labels = labelsFlag
	}
	if localeFlag != "" {
		cfg.Locale = localeFlag
	}

	if cfg.Ledger == "" {
		return nil, errors.New("no ledger file configured (use -f or bankmine.toml)")
	}
	ledger, err := bankmine.OpenLedgerFile(cfg.Ledger)
	if err != nil {
		return nil, err
	}

	var vocab *bankmine.Vocabulary
	if cfg.Labels != "" {
		if vocab, err = bankmine.LoadLabelFile(cfg.Labels); err != nil {
			return nil, err
		}
		log.Info().Str("labels", cfg.Labels).Int("count", vocab.Len()).Msg("loaded label vocabulary")
	}

	dates, err := bankmine.NewDateFormat(cfg.Locale)
	if err != nil {
		return nil, err
	}

	if cfg.SessionID == "" {
		return nil, errors.New("no webdriver session id configured (session_id or BANKMINE_SESSION_ID)")
	}
	driver := web.NewWebDriver(cfg.WebDriverURL, cfg.SessionID)
	home, err := driver.CurrentTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("webdriver session %s: %w", cfg.SessionID, err)
	}
	nav := web.NewNavigator(driver, home,
		web.WithRateLimit(rate.Limit(cfg.RequestsPerSecond)),
		web.WithLogger(log),
	)

	return &bankmine.Syncer{
		Ledger:       ledger,
		Feed:         nav,
		Opener:       nav,
		Extractor:    bankmine.NewExtractor(bankmine.N26Layouts(), dates),
		Vocabulary:   vocab,
		Lookback:     cfg.Lookback,
		Retries:      cfg.Retries,
		RetryBackoff: 2 * time.Second,
		DryRun:       dryRun,
		Log:          log,
	}, nil
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mine new transactions from the live session into the ledger",
	Run: func(cmd *cobra.Command, _ []string) {
		log := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("unable to load configuration")
		}

		ctx := context.Background()
		syncer, err := buildSyncer(ctx, cmd, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to set up sync run")
		}

		if skipCheck {
			log.Warn().Msg("consistency check skipped on request")
		} else if err := syncer.Check(ctx, nil); err != nil {
			log.Fatal().Err(err).Msg("extractor no longer matches the live site, ledger left untouched")
		}

		result, err := syncer.Sync(ctx)
		if err != nil {
			if errors.Is(err, bankmine.ErrBoundaryNotFound) {
				log.Fatal().Err(err).Msg("gap condition, ledger left untouched")
			}
			log.Fatal().Err(err).Msg("sync failed")
		}

		elapsed := durafmt.Parse(result.Elapsed.Round(time.Second)).LimitFirstN(2)
		fmt.Printf("appended %d transaction(s), visited %d, in %s\n", result.Appended, result.Visited, elapsed)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip the pre-sync consistency check (not recommended).")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Walk and report without appending to the ledger.")
	syncCmd.Flags().IntVar(&lookbackFlag, "lookback", 500, "Cap on newest entries visited per run; 0 disables.\nAssumes the boundary lies within that window.")
	syncCmd.Flags().IntVar(&retriesFlag, "retries", 1, "Extra extraction attempts per transaction.")
	syncCmd.Flags().StringVar(&labelsFlag, "labels", "", "Label vocabulary CSV for NewTags resolution.")
	syncCmd.Flags().StringVar(&localeFlag, "locale", "", "Detail-view date locale (default from config, \"it\").")
}
