package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "thoughtchain",
	Short: "Record browsing sessions as named, summarized chains of pages",
	Long: `thoughtchain groups the pages you visit into chains, splits them daily,
and writes AI summaries for every page and whole-chain reports.

Run "thoughtchain start" to launch the local server; the other commands talk
to it over HTTP.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(captureCmd, chainsCmd, splitCmd, notesCmd, summarizeCmd, reportCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		fmt.Fprintln(os.Stderr, "Run 'thoughtchain --help' for usage.")
		os.Exit(1)
	}
}
