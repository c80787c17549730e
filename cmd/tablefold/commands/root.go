// Package commands wires the tablefold CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/tablefold/tablefold/cmd/tablefold/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "tablefold",
	Short: "Convert documents to spreadsheets and spreadsheets to documents",
	Long: `Tablefold converts between documents and spreadsheets: it extracts the
tables of a PDF into an editable spreadsheet, and renders a spreadsheet's
sheets into a paginated PDF.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Init(noColor, verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
