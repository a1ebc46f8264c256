package config

import (
	"strings"
	"time"

	"flightcheck/internal/logging"
)

// Defaults applied when a key is absent or invalid.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultBrowser    = "chrome"
	DefaultSuite      = "default"
	DefaultReportsDir = "reports"
	DefaultParallel   = 1
)

// Settings is the resolved, read-only run configuration. It is built once at
// process start and shared by all workers without synchronization.
type Settings struct {
	AppURL        string
	Timeout       time.Duration // per explicit wait
	MaxRetryCount int
	Browser       string
	Headless      bool
	GridEnabled   bool
	HubHost       string
	HubURLFormat  string // fmt template with one %s for the hub host
	Parallel      int
	Suite         string
	ReportsDir    string
	Tester        string
	CaseTimeout   time.Duration // hard per-case deadline; 0 disables
}

// FromSource resolves Settings. Only app.url is required; grid keys are
// validated when a session is acquired.
func FromSource(src Source) (Settings, error) {
	logger := logging.New("config")
	s := Settings{
		Timeout:    DefaultTimeout,
		Browser:    DefaultBrowser,
		Suite:      DefaultSuite,
		ReportsDir: DefaultReportsDir,
		Parallel:   DefaultParallel,
	}

	url, ok := src.GetString(KeyAppURL)
	if !ok {
		return Settings{}, &MissingKeyError{Key: KeyAppURL}
	}
	s.AppURL = url

	if secs, ok := src.GetInt(KeyTimeout); ok && secs > 0 {
		s.Timeout = time.Duration(secs) * time.Second
	} else {
		logger.Warn("invalid or missing wait timeout, using default", "key", KeyTimeout, "default", DefaultTimeout)
	}
	if n, ok := src.GetInt(KeyMaxRetry); ok && n > 0 {
		s.MaxRetryCount = n
	}
	if b, ok := src.GetString(KeyBrowser); ok {
		s.Browser = strings.ToLower(b)
	}
	s.Headless, _ = src.GetBool(KeyHeadless)
	s.GridEnabled, _ = src.GetBool(KeyGridEnabled)
	s.HubHost, _ = src.GetString(KeyHubHost)
	s.HubURLFormat, _ = src.GetString(KeyHubURLFormat)
	if n, ok := src.GetInt(KeyParallel); ok && n > 0 {
		s.Parallel = n
	}
	if v, ok := src.GetString(KeySuite); ok {
		s.Suite = v
	}
	if v, ok := src.GetString(KeyReportsDir); ok {
		s.ReportsDir = v
	}
	s.Tester, _ = src.GetString(KeyTester)
	if secs, ok := src.GetInt(KeyCaseTimeout); ok && secs > 0 {
		s.CaseTimeout = time.Duration(secs) * time.Second
	}
	return s, nil
}
