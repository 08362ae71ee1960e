package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/plenert/bankmine"
)

var startString, endString string
var columnWidth int
var columnWide bool

type categoryTotal struct {
	name  string
	total decimal.Decimal
	count int
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Per-category inflow/outflow totals over a date range",
	Run: func(_ *cobra.Command, _ []string) {
		log := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("unable to load configuration")
		}
		if cfg.Ledger == "" {
			log.Fatal().Msg("no ledger file configured (use -f or bankmine.toml)")
		}

		ledger, err := bankmine.OpenLedgerFile(cfg.Ledger)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to open ledger")
		}

		parsedStartDate, tstartErr := dateparse.ParseAny(startString)
		parsedEndDate, tendErr := dateparse.ParseAny(endString)
		if tstartErr != nil || tendErr != nil {
			log.Fatal().Msg("unable to parse start or end date string argument")
		}
		// include end dates' transactions too
		parsedEndDate = parsedEndDate.Add(24*time.Hour - time.Second)

		printReport(ledger, parsedStartDate, parsedEndDate)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	startDate := time.Date(1970, 1, 1, 0, 0, 0, 0, time.Local)
	endDate := time.Now()
	reportCmd.Flags().StringVarP(&startString, "begin-date", "b", startDate.Format("2006/01/02"), "Begin date of report period.")
	reportCmd.Flags().StringVarP(&endString, "end-date", "e", endDate.Format("2006/01/02"), "End date of report period.")
	reportCmd.Flags().IntVar(&columnWidth, "columns", 80, "Set a column width for output.")
	reportCmd.Flags().BoolVar(&columnWide, "wide", false, "Wide output (use terminal width).")
}

func printReport(ledger *bankmine.Ledger, start, end time.Time) {
	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd())
	if columnWide {
		if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			columnWidth = tw
		}
	}
	if columnWidth < 24 {
		columnWidth = 24
	}
	accWidth := columnWidth - 13

	totals := make(map[string]*categoryTotal)
	inflow, outflow := decimal.Zero, decimal.Zero
	for _, trans := range ledger.Transactions() {
		if trans.Date.Before(start) || trans.Date.After(end) {
			continue
		}
		name := trans.Category
		if name == "" {
			name = "(uncategorized)"
		}
		ct, ok := totals[name]
		if !ok {
			ct = &categoryTotal{name: name}
			totals[name] = ct
		}
		ct.total = ct.total.Add(trans.Amount)
		ct.count++
		if trans.Amount.Sign() >= 0 {
			inflow = inflow.Add(trans.Amount)
		} else {
			outflow = outflow.Add(trans.Amount)
		}
	}

	rows := make([]*categoryTotal, 0, len(totals))
	for _, ct := range totals {
		rows = append(rows, ct)
	}
	slices.SortFunc(rows, func(a, b *categoryTotal) int {
		return strings.Compare(a.name, b.name)
	})

	categoryColor := color.New(color.FgBlue)
	negativeColor := color.New(color.FgRed)
	for _, ct := range rows {
		amount := ct.total.StringFixedBank(2)
		name := ct.name
		if len(name) > accWidth {
			name = name[:accWidth]
		}
		categoryColor.Printf("%-*s", accWidth, name)
		if ct.total.Sign() < 0 {
			negativeColor.Printf(" %12s\n", amount)
		} else {
			fmt.Printf(" %12s\n", amount)
		}
	}

	fmt.Println(strings.Repeat("-", columnWidth))
	fmt.Printf("%-*s %12s\n", accWidth, "inflow", inflow.StringFixedBank(2))
	net := inflow.Add(outflow)
	if outflow.Sign() < 0 {
		categoryColor.Printf("%-*s", accWidth, "outflow")
		negativeColor.Printf(" %12s\n", outflow.StringFixedBank(2))
	} else {
		fmt.Printf("%-*s %12s\n", accWidth, "outflow", outflow.StringFixedBank(2))
	}
	fmt.Printf("%-*s %12s\n", accWidth, "net", net.StringFixedBank(2))
}
