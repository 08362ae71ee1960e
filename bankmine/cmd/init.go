package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plenert/bankmine"
)

var withNewTags bool

var initCmd = &cobra.Command{
	Use:   "init <csv-file>",
	Args:  cobra.ExactArgs(1),
	Short: "Create a new, empty ledger file",
	Long: `init writes a header-only ledger. The chosen column schema (with or
without the NewTags column) is fixed for the file's lifetime; it refuses
to overwrite an existing file.`,
	Run: func(_ *cobra.Command, args []string) {
		log := newLogger()
		if err := bankmine.CreateLedgerFile(args[0], withNewTags); err != nil {
			log.Fatal().Err(err).Msg("unable to create ledger")
		}
		fmt.Printf("created %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&withNewTags, "with-newtags", false, "Include the NewTags column for resolved labels.")
}
