package cmd

import (
	"fmt"
	"os"
	"time"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/pelletier/go-toml"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var ledgerFilePath string
var configFilePath string
var verbose bool

// Config mirrors bankmine.toml. Flags override file values; the
// webdriver endpoint and session may also come from the environment
// (BANKMINE_WEBDRIVER_URL, BANKMINE_SESSION_ID), loaded from .env when
// present so the session id never lands in a committed file.
type Config struct {
	Ledger            string  `toml:"ledger"`
	Labels            string  `toml:"labels"`
	Locale            string  `toml:"locale"`
	Lookback          int     `toml:"lookback"`
	Retries           int     `toml:"retries"`
	WebDriverURL      string  `toml:"webdriver_url"`
	SessionID         string  `toml:"session_id"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

func defaultConfig() Config {
	return Config{
		Locale:            "it",
		Lookback:          500,
		Retries:           1,
		WebDriverURL:      "http://localhost:9515",
		RequestsPerSecond: 1,
	}
}

func loadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	path := configFilePath
	if path == "" {
		if _, err := os.Stat("bankmine.toml"); err == nil {
			path = "bankmine.toml"
		}
	}
	if path != "" {
		tree, err := toml.LoadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := tree.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}

	if v := os.Getenv("BANKMINE_WEBDRIVER_URL"); v != "" {
		cfg.WebDriverURL = v
	}
	if v := os.Getenv("BANKMINE_SESSION_ID"); v != "" {
		cfg.SessionID = v
	}
	if ledgerFilePath != "" {
		cfg.Ledger = ledgerFilePath
	}
	return cfg, nil
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

var rootCmd = &cobra.Command{
	Use:   "bankmine",
	Short: "Incrementally mine bank transactions into a CSV ledger",
	Long: `bankmine walks the transaction feed of an authenticated banking web
session and appends every transaction newer than the ledger's last row,
oldest-first, exactly once. Before mining it re-checks a small sample of
already-recorded transactions so a changed site layout aborts the run
instead of corrupting the ledger.`,
}

// Execute runs the root command.
func Execute() {
	cc.Init(&cc.Config{
		RootCmd:  rootCmd,
		Headings: cc.HiCyan + cc.Bold + cc.Underline,
		Commands: cc.HiYellow + cc.Bold,
		Example:  cc.Italic,
		ExecName: cc.Bold,
		Flags:    cc.Bold,
	})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&ledgerFilePath, "file", "f", "", "Ledger CSV file. Overrides the config file value.")
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config", "", "TOML config file (bankmine.toml is picked up when present).")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging.")
}
