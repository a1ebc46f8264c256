package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"flightcheck/internal/booking"
	"flightcheck/internal/config"
	"flightcheck/internal/failures"
	"flightcheck/internal/fixture"
	"flightcheck/internal/format"
	"flightcheck/internal/harness"
	"flightcheck/internal/logging"
	"flightcheck/internal/metrics"
	"flightcheck/internal/report"
	"flightcheck/internal/screenshot"
	"flightcheck/internal/session"
	"flightcheck/internal/store"
)

var runFlags struct {
	configPath  string
	data        []string
	parallel    int
	browser     string
	headless    bool
	maxRetries  int
	caseTimeout time.Duration
	reportsDir  string
	suite       string
	metricsAddr string
	dbPath      string
	noDB        bool
	output      string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run booking cases from passenger fixtures",
	Long: `Loads configuration (properties or YAML, overridden by FLIGHTCHECK_* env vars
and then by flags), builds one case per passenger record and runs them on a pool
of workers. Writes <suite>-report.html, index.html and, when cases failed,
<suite>-failure-summary.txt into the reports directory. Exits 1 if any case failed.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.configPath, "config", "c", "config.properties", "Config file (.properties or .yaml)")
	f.StringSliceVarP(&runFlags.data, "data", "d", nil, "Passenger fixture files (.json, .csv, .yaml); repeatable (required)")
	f.IntVarP(&runFlags.parallel, "parallel", "p", 0, "Worker count (overrides test.parallel)")
	f.StringVar(&runFlags.browser, "browser", "", "Browser kind: chrome, firefox, edge (overrides browser)")
	f.BoolVar(&runFlags.headless, "headless", false, "Run browsers headless (overrides browser.headless)")
	f.IntVar(&runFlags.maxRetries, "max-retries", 0, "Retries per failing case (overrides test.retry.maxcount)")
	f.DurationVar(&runFlags.caseTimeout, "case-timeout", 0, "Hard deadline per case attempt, 0 disables (overrides test.case.timeout)")
	f.StringVar(&runFlags.reportsDir, "reports-dir", "", "Report output directory (overrides reports.dir)")
	f.StringVar(&runFlags.suite, "suite", "", "Suite name used in report file names (overrides test.suite)")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address during the run")
	f.StringVar(&runFlags.dbPath, "db", "", "Run ledger path (default <reports-dir>/"+store.DefaultDBPath+")")
	f.BoolVar(&runFlags.noDB, "no-db", false, "Do not record the run in the ledger")
	f.StringVarP(&runFlags.output, "output", "o", "table", "Summary format: table or markdown")

	_ = runCmd.MarkFlagRequired("data")
}

// loadSettings resolves file, then env, then flags.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	props := config.Properties{}
	if p, err := config.LoadFromPath(runFlags.configPath); err == nil {
		props = p
	} else if cmd.Flags().Changed("config") || !errors.Is(err, fs.ErrNotExist) {
		return config.Settings{}, err
	}
	s, err := config.FromSource(config.WithEnv(props, os.LookupEnv))
	if err != nil {
		return config.Settings{}, err
	}

	f := cmd.Flags()
	if f.Changed("parallel") && runFlags.parallel > 0 {
		s.Parallel = runFlags.parallel
	}
	if f.Changed("browser") {
		s.Browser = strings.ToLower(runFlags.browser)
	}
	if f.Changed("headless") {
		s.Headless = runFlags.headless
	}
	if f.Changed("max-retries") {
		s.MaxRetryCount = max(runFlags.maxRetries, 0)
	}
	if f.Changed("case-timeout") {
		s.CaseTimeout = runFlags.caseTimeout
	}
	if f.Changed("reports-dir") {
		s.ReportsDir = runFlags.reportsDir
	}
	if f.Changed("suite") {
		s.Suite = runFlags.suite
	}
	return s, nil
}

// loadCases builds booking cases from every fixture file. Case names carry
// the fixture format; repeated formats get a numeric suffix.
func loadCases(paths []string) ([]harness.Case, error) {
	var cases []harness.Case
	seen := map[string]int{}
	for _, path := range paths {
		ps, err := fixture.Load(path)
		if err != nil {
			return nil, err
		}
		source := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		seen[source]++
		if n := seen[source]; n > 1 {
			source = fmt.Sprintf("%s%d", source, n)
		}
		cases = append(cases, booking.Cases(source, ps)...)
	}
	return cases, nil
}

func openLedger(s config.Settings) (store.Store, error) {
	if runFlags.noDB {
		return store.NewMemStore(), nil
	}
	path := runFlags.dbPath
	if path == "" {
		path = filepath.Join(s.ReportsDir, store.DefaultDBPath)
	}
	return store.Open(path)
}

func runRun(cmd *cobra.Command, _ []string) error {
	logger := logging.New("run")
	mode, err := format.ParseMode(runFlags.output)
	if err != nil {
		return err
	}
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if _, err := session.ParseKind(s.Browser); err != nil {
		return err
	}
	cases, err := loadCases(runFlags.data)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no passenger records in %s", strings.Join(runFlags.data, ", "))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	m := metrics.New(nil)
	if runFlags.metricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, runFlags.metricsAddr); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	ledger, err := openLedger(s)
	if err != nil {
		return err
	}
	defer ledger.Close()

	sink, err := report.NewHTMLSink(filepath.Join(s.ReportsDir, report.ReportFileName(s.Suite)), report.SystemInfo{
		Suite:   s.Suite,
		Tester:  s.Tester,
		Browser: s.Browser,
		OS:      runtime.GOOS + "/" + runtime.GOARCH,
		RunID:   runID,
	})
	if err != nil {
		return err
	}
	agg := failures.NewAggregator()
	registry := session.NewRegistry(session.NewChromeLauncher(s), session.WithObserver(m))
	defer registry.Close()

	orch := harness.New(s, registry, report.NewContexts(sink), agg,
		harness.WithCapturer(screenshot.New(s.ReportsDir)),
		harness.WithObserver(m),
		harness.WithObserver(store.NewLedger(ledger, runID)),
		harness.WithRunID(runID),
	)

	started := time.Now()
	if err := ledger.CreateRun(&store.Run{
		ID: runID, Suite: s.Suite, Browser: s.Browser, Tester: s.Tester, Workers: s.Parallel, StartedAt: started,
	}); err != nil {
		logger.Warn("run not recorded in ledger", "error", err)
	}
	logger.Info("starting run", "run", runID, "cases", len(cases), "workers", s.Parallel, "browser", s.Browser, "headless", s.Headless)

	res, runErr := orch.Run(ctx, cases)
	if res == nil {
		return runErr
	}

	art, finErr := harness.NewFinalizer(sink, agg, s.ReportsDir, s.Suite).Finalize()
	if err := ledger.SaveFailures(runID, agg.Snapshot()); err != nil {
		logger.Warn("failures not recorded in ledger", "error", err)
	}
	if err := ledger.FinishRun(runID, res.Finished, res.Count(harness.StatusPassed), res.Count(harness.StatusFailed), res.Count(harness.StatusSkipped)); err != nil {
		logger.Warn("run totals not recorded in ledger", "error", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n", runID)
	fmt.Fprintln(out, format.Outcomes(mode, res))
	for _, p := range []string{art.Report, art.Index, art.Summary} {
		if p != "" {
			fmt.Fprintf(out, "  wrote %s\n", p)
		}
	}

	switch {
	case finErr != nil:
		return finErr
	case runErr != nil:
		return runErr
	case res.Failed():
		return errCasesFailed
	}
	return nil
}
