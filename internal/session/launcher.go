package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"flightcheck/internal/config"
	"flightcheck/internal/logging"
)

// Viewport applied to every session.
const (
	ViewportWidth  = 1920
	ViewportHeight = 1080
)

// DefaultExecPaths are the executables used for local sessions.
var DefaultExecPaths = map[Kind]string{
	KindChrome:  "",
	KindEdge:    "microsoft-edge",
	KindFirefox: "firefox",
}

// ChromeLauncher starts sessions over the DevTools protocol, either as a
// local process or on a remote grid.
type ChromeLauncher struct {
	GridEnabled  bool
	HubHost      string
	HubURLFormat string
	ExecPaths    map[Kind]string
	ProbeTimeout time.Duration
	HTTPClient   *http.Client
}

// NewChromeLauncher builds a launcher from run settings.
func NewChromeLauncher(s config.Settings) *ChromeLauncher {
	return &ChromeLauncher{
		GridEnabled:  s.GridEnabled,
		HubHost:      s.HubHost,
		HubURLFormat: s.HubURLFormat,
		ExecPaths:    DefaultExecPaths,
		ProbeTimeout: 10 * time.Second,
		HTTPClient:   http.DefaultClient,
	}
}

// Launch implements Launcher.
func (l *ChromeLauncher) Launch(ctx context.Context, spec Spec) (*Handle, error) {
	if !spec.Kind.Valid() {
		return nil, &UnsupportedKindError{Kind: string(spec.Kind)}
	}
	if l.GridEnabled {
		return l.launchRemote(ctx, spec)
	}
	return l.launchLocal(ctx, spec)
}

// GridURL resolves the hub URL from the host and template.
func (l *ChromeLauncher) GridURL() (string, error) {
	if l.HubHost == "" {
		return "", &ConnectionError{Reason: fmt.Sprintf("missing %s", config.KeyHubHost)}
	}
	if l.HubURLFormat == "" {
		return "", &ConnectionError{Reason: fmt.Sprintf("missing %s", config.KeyHubURLFormat)}
	}
	raw := fmt.Sprintf(l.HubURLFormat, l.HubHost)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if err == nil {
			err = errors.New("no scheme or host")
		}
		return "", &ConnectionError{Endpoint: raw, Reason: "malformed grid URL", Err: err}
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func (l *ChromeLauncher) launchRemote(ctx context.Context, spec Spec) (*Handle, error) {
	gridURL, err := l.GridURL()
	if err != nil {
		return nil, err
	}
	wsURL, err := l.probe(ctx, gridURL)
	if err != nil {
		return nil, err
	}

	logging.New("launcher").Info("connecting to grid", "url", gridURL, "worker", spec.Worker, "kind", spec.Kind)
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, wsURL, chromedp.NoModifyURL)
	return l.open(allocCtx, allocCancel, spec, true)
}

// probe checks the grid's DevTools version endpoint and returns its
// websocket debugger URL.
func (l *ChromeLauncher) probe(ctx context.Context, gridURL string) (string, error) {
	timeout := l.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := gridURL + "/json/version"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &ConnectionError{Endpoint: endpoint, Reason: "build request", Err: err}
	}
	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &ConnectionError{Endpoint: endpoint, Reason: "unreachable", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &ConnectionError{Endpoint: endpoint, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	var v struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", &ConnectionError{Endpoint: endpoint, Reason: "decode version", Err: err}
	}
	if v.WebSocketDebuggerURL == "" {
		return "", &ConnectionError{Endpoint: endpoint, Reason: "no webSocketDebuggerUrl"}
	}
	return v.WebSocketDebuggerURL, nil
}

func (l *ChromeLauncher) launchLocal(ctx context.Context, spec Spec) (*Handle, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], AllocatorOptions(spec)...)
	if path := l.ExecPaths[spec.Kind]; path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	return l.open(allocCtx, allocCancel, spec, false)
}

// AllocatorOptions returns the per-kind browser flags.
func AllocatorOptions(spec Spec) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", spec.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(ViewportWidth, ViewportHeight),
	}
	if !spec.Headless {
		opts = append(opts, chromedp.Flag("start-maximized", true))
	}
	switch spec.Kind {
	case KindChrome:
		opts = append(opts, chromedp.Flag("remote-allow-origins", "*"))
	case KindEdge:
		opts = append(opts, chromedp.Flag("inprivate", true))
	case KindFirefox:
		opts = append(opts, chromedp.Flag("width", ViewportWidth), chromedp.Flag("height", ViewportHeight))
	}
	return opts
}

// open creates a tab on the allocator and forces the browser to start so
// launch failures surface here rather than in the test body.
func (l *ChromeLauncher) open(allocCtx context.Context, allocCancel context.CancelFunc, spec Spec, remote bool) (*Handle, error) {
	logger := logging.ForWorker(logging.New("browser"), spec.Worker)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(ViewportWidth, ViewportHeight)); err != nil {
		tabCancel()
		allocCancel()
		if remote {
			return nil, &ConnectionError{Endpoint: l.HubHost, Reason: "open remote tab", Err: err}
		}
		return nil, &LaunchError{Kind: spec.Kind, Err: err}
	}
	closeFn := func() error {
		err := chromedp.Cancel(tabCtx)
		tabCancel()
		allocCancel()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return NewHandle(tabCtx, spec, remote, closeFn), nil
}
