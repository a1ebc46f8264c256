package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"flightcheck/internal/config"
	"flightcheck/internal/format"
	"flightcheck/internal/store"
)

var historyFlags struct {
	dbPath string
	limit  int
	output string
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs, or show one run's cases and failures",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func defaultDBPath() string {
	return filepath.Join(config.DefaultReportsDir, store.DefaultDBPath)
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.dbPath, "db", defaultDBPath(), "Run ledger path")
	f.IntVarP(&historyFlags.limit, "limit", "n", 20, "Maximum runs to list")
	f.StringVarP(&historyFlags.output, "output", "o", "table", "Output format: table or markdown")
}

func runHistory(cmd *cobra.Command, args []string) error {
	mode, err := format.ParseMode(historyFlags.output)
	if err != nil {
		return err
	}
	st, err := store.Open(historyFlags.dbPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer st.Close()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		runs, err := st.ListRuns(historyFlags.limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}
		fmt.Fprintln(out, format.Runs(mode, runs))
		return nil
	}

	run, err := st.GetRun(args[0])
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run %q in %s", args[0], historyFlags.dbPath)
	}
	results, err := st.ListCaseResults(run.ID)
	if err != nil {
		return err
	}
	recs, err := st.ListFailures(run.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, format.Runs(mode, []*store.Run{run}))
	fmt.Fprintln(out, format.CaseResults(mode, results))
	if len(recs) > 0 {
		fmt.Fprintln(out, format.Failures(mode, recs))
	}
	return nil
}
