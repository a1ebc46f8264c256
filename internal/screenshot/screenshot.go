// Package screenshot captures browser screenshots into the report directory.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/chromedp/chromedp"

	"flightcheck/internal/session"
)

// Dir is the screenshots subdirectory, relative to the report directory.
const Dir = "screenshots"

// Capturer takes a screenshot of a session and returns its path relative to
// the report directory.
type Capturer interface {
	Capture(ctx context.Context, h *session.Handle, name string) (string, error)
}

// Chromedp captures the visible viewport as PNG.
type Chromedp struct {
	ReportsDir string
	Timeout    time.Duration
	Now        func() time.Time
}

// New returns a capturer writing under reportsDir/screenshots.
func New(reportsDir string) *Chromedp {
	return &Chromedp{ReportsDir: reportsDir, Timeout: 15 * time.Second, Now: time.Now}
}

// Capture implements Capturer.
func (c *Chromedp) Capture(ctx context.Context, h *session.Handle, name string) (string, error) {
	if h == nil {
		return "", errors.New("no session to capture")
	}
	tctx := h.Context()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(tctx, c.Timeout)
		defer cancel()
	}
	var buf []byte
	if err := chromedp.Run(tctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	return c.Save(buf, name)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName builds "<name>_<yyyyMMdd_HHmmss>.png" with unsafe characters
// replaced.
func FileName(name string, at time.Time) string {
	return unsafeChars.ReplaceAllString(name, "_") + "_" + at.Format("20060102_150405") + ".png"
}

// Save writes PNG bytes and returns the forward-slash relative path.
func (c *Chromedp) Save(data []byte, name string) (string, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	dir := filepath.Join(c.ReportsDir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	file := FileName(name, now())
	if err := os.WriteFile(filepath.Join(dir, file), data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path.Join(Dir, file), nil
}
