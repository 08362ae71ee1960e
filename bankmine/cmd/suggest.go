package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/jbrukh/bayesian"
	"github.com/spf13/cobra"

	"github.com/plenert/bankmine"
)

// The source UI sometimes omits the category, so rows land in the
// ledger with an empty Categoria. suggest trains a naive bayes
// classifier on the categorized rows and proposes a category for the
// rest. Suggestions are printed only; the ledger is append-only and is
// never rewritten.
var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest categories for uncategorized ledger rows",
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

		classifier := trainClassifier(ledger)
		if classifier == nil {
			log.Fatal().Msg("need at least two distinct categories to train on")
		}

		var suggested int
		for _, trans := range ledger.Transactions() {
			if trans.Category != "" || trans.Counterparty == "" {
				continue
			}
			guess := predictCategory(classifier, strings.Fields(trans.Counterparty))
			fmt.Printf("%s  %-40s %s\n", trans.Date.Format("2006-01-02"), trans.Counterparty, guess)
			suggested++
		}
		if suggested == 0 {
			fmt.Println("every row is categorized")
		}
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
}

func trainClassifier(ledger *bankmine.Ledger) *bayesian.Classifier {
	uniqueCategories := make(map[string]bool)
	for _, trans := range ledger.Transactions() {
		if trans.Category != "" {
			uniqueCategories[trans.Category] = true
		}
	}
	if len(uniqueCategories) < 2 {
		return nil
	}

	classes := make([]bayesian.Class, 0, len(uniqueCategories))
	for name := range uniqueCategories {
		classes = append(classes, bayesian.Class(name))
	}

	classifier := bayesian.NewClassifier(classes...)
	for _, trans := range ledger.Transactions() {
		if trans.Category == "" || trans.Counterparty == "" {
			continue
		}
		classifier.Learn(strings.Fields(trans.Counterparty), bayesian.Class(trans.Category))
	}
	return classifier
}

func predictCategory(classifier *bayesian.Classifier, words []string) string {
	// Find the highest and second highest scores
	highScore1 := math.Inf(-1)
	highScore2 := math.Inf(-1)
	matchIdx := 0
	scores, _, _ := classifier.LogScores(words)
	for j, score := range scores {
		if score > highScore1 {
			highScore2 = highScore1
			highScore1 = score
			matchIdx = j
		}
	}
	// A wide margin between the top two scores indicates a high
	// confidence match
	if highScore1-highScore2 > 10 {
		return string(classifier.Classes[matchIdx])
	}
	return "(no confident match)"
}
