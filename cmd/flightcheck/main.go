// flightcheck runs browser booking cases in parallel and keeps a ledger of
// past runs.
//
// Usage:
//
//	flightcheck run --config config.properties --data passengers.json [--parallel 4]
//	flightcheck history [run-id]
//	flightcheck serve
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flightcheck/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// errCasesFailed makes the process exit 1 without printing an extra line.
var errCasesFailed = errors.New("one or more cases failed")

var rootFlags struct {
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "flightcheck",
	Short: "Parallel end-to-end checks for the flight booking workflow",
	Long: "flightcheck drives isolated browser sessions through search, select,\n" +
		"purchase and confirm, retries flaky failures and writes an HTML report.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		logging.Init(level, rootFlags.logFormat, cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errCasesFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
