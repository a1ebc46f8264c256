// Package page wraps chromedp with explicit, bounded waits. Required waits
// fail with *TimeoutError; probes (IsDisplayed, FindAllVisible, the Wait*
// URL/title checks) degrade to a false or empty result.
package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"flightcheck/internal/logging"
)

// DefaultTimeout applies when a Page is built with a non-positive timeout.
const DefaultTimeout = 10 * time.Second

// PollInterval is how often URL and title conditions are re-checked.
var PollInterval = 200 * time.Millisecond

// Locator selects elements by CSS or XPath.
type Locator struct {
	Expr  string
	XPath bool
}

// CSS returns a CSS selector locator.
func CSS(sel string) Locator { return Locator{Expr: sel} }

// XPath returns an XPath locator.
func XPath(expr string) Locator { return Locator{Expr: expr, XPath: true} }

// Name locates by the name attribute.
func Name(name string) Locator { return CSS(fmt.Sprintf("[name=%q]", name)) }

// ID locates by element id.
func ID(id string) Locator { return CSS("#" + id) }

func (l Locator) String() string {
	if l.XPath {
		return "xpath=" + l.Expr
	}
	return "css=" + l.Expr
}

func (l Locator) by() chromedp.QueryOption {
	if l.XPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// TimeoutError reports a required wait that did not complete in time.
type TimeoutError struct {
	Op      string
	Target  string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: not satisfied within %s", e.Op, e.Target, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Page runs actions against one browser tab.
type Page struct {
	ctx     context.Context
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a Page on the tab context ctx. timeout bounds every wait.
func New(ctx context.Context, timeout time.Duration) *Page {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Page{ctx: ctx, timeout: timeout, logger: logging.New("page")}
}

// Timeout is the per-wait bound.
func (p *Page) Timeout() time.Duration { return p.timeout }

func (p *Page) run(op string, loc Locator, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	err := chromedp.Run(ctx, actions...)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && p.ctx.Err() == nil {
		return &TimeoutError{Op: op, Target: loc.String(), Timeout: p.timeout, Err: err}
	}
	return fmt.Errorf("%s %s: %w", op, loc, err)
}

// Navigate loads url and waits for the body.
func (p *Page) Navigate(url string) error {
	p.logger.Info("navigating", "url", url)
	return p.run("navigate", CSS("body"), chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

// FindVisible waits for the first element matching loc to be visible.
func (p *Page) FindVisible(loc Locator) (*cdp.Node, error) {
	var nodes []*cdp.Node
	err := p.run("find visible", loc,
		chromedp.WaitVisible(loc.Expr, loc.by()),
		chromedp.Nodes(loc.Expr, &nodes, loc.by(), chromedp.AtLeast(1)),
	)
	if err != nil {
		p.logger.Error("element not found or not visible", "locator", loc.String(), "error", err)
		return nil, err
	}
	return nodes[0], nil
}

// FindAllVisible waits for matching elements; it returns nil on timeout.
func (p *Page) FindAllVisible(loc Locator) []*cdp.Node {
	var nodes []*cdp.Node
	err := p.run("find all visible", loc,
		chromedp.WaitVisible(loc.Expr, loc.by()),
		chromedp.Nodes(loc.Expr, &nodes, loc.by()),
	)
	if err != nil {
		p.logger.Warn("no visible elements", "locator", loc.String())
		return nil
	}
	return nodes
}

// Click waits for the element to be visible and enabled, then clicks it.
func (p *Page) Click(loc Locator) error {
	p.logger.Info("clicking", "locator", loc.String())
	return p.run("click", loc,
		chromedp.WaitVisible(loc.Expr, loc.by()),
		chromedp.WaitEnabled(loc.Expr, loc.by()),
		chromedp.Click(loc.Expr, loc.by()),
	)
}

// SendText clears the field and types text.
func (p *Page) SendText(loc Locator, text string) error {
	p.logger.Info("sending text", "locator", loc.String())
	return p.run("send text", loc,
		chromedp.WaitVisible(loc.Expr, loc.by()),
		chromedp.Clear(loc.Expr, loc.by()),
		chromedp.SendKeys(loc.Expr, text, loc.by()),
	)
}

// Text returns the visible text of the element.
func (p *Page) Text(loc Locator) (string, error) {
	var s string
	err := p.run("text", loc,
		chromedp.WaitVisible(loc.Expr, loc.by()),
		chromedp.Text(loc.Expr, &s, loc.by()),
	)
	return strings.TrimSpace(s), err
}

// SelectByVisibleText picks the <option> whose text equals text.
func (p *Page) SelectByVisibleText(loc Locator, text string) error {
	p.logger.Info("selecting option", "locator", loc.String(), "text", text)
	var found bool
	err := p.run("select", loc,
		chromedp.WaitVisible(loc.Expr, loc.by()),
		chromedp.Evaluate(SelectScript(loc, text), &found),
	)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("select %s: no option with text %q", loc, text)
	}
	return nil
}

// SelectScript returns JS that selects the option with visible text and
// fires change; it evaluates to true when an option matched.
func SelectScript(loc Locator, text string) string {
	expr, _ := json.Marshal(loc.Expr)
	want, _ := json.Marshal(text)
	find := fmt.Sprintf("document.querySelector(%s)", expr)
	if loc.XPath {
		find = fmt.Sprintf("document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue", expr)
	}
	return fmt.Sprintf(`(() => {
	const el = %s;
	if (!el) return false;
	for (let i = 0; i < el.options.length; i++) {
		if (el.options[i].text.trim() === %s) {
			el.selectedIndex = i;
			el.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		}
	}
	return false;
})()`, find, want)
}

// Texts returns the trimmed text of every element matching loc, in document
// order. It does not wait.
func (p *Page) Texts(loc Locator) ([]string, error) {
	var out []string
	err := p.run("texts", loc, chromedp.Evaluate(textsScript(loc, "e.innerText"), &out))
	return out, err
}

// OptionTexts returns the option labels of the <select> matching loc.
func (p *Page) OptionTexts(loc Locator) ([]string, error) {
	var out []string
	err := p.run("options", loc,
		chromedp.WaitVisible(loc.Expr, loc.by()),
		chromedp.Evaluate(textsScript(loc, "Array.from(e.options).map(o => o.text)"), &out),
	)
	return out, err
}

func textsScript(loc Locator, pick string) string {
	expr, _ := json.Marshal(loc.Expr)
	all := fmt.Sprintf("Array.from(document.querySelectorAll(%s))", expr)
	if loc.XPath {
		all = fmt.Sprintf(`(() => { const r = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null); const a = []; for (let i = 0; i < r.snapshotLength; i++) a.push(r.snapshotItem(i)); return a; })()`, expr)
	}
	return fmt.Sprintf("%s.flatMap(e => [].concat(%s)).map(s => String(s).trim())", all, pick)
}

// IsDisplayed probes for a visible element and never returns an error.
func (p *Page) IsDisplayed(loc Locator) bool {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	if err := chromedp.Run(ctx, chromedp.WaitVisible(loc.Expr, loc.by())); err != nil {
		p.logger.Info("element not displayed", "locator", loc.String())
		return false
	}
	return true
}

// WaitURLContains polls the current URL until it contains fragment.
func (p *Page) WaitURLContains(fragment string) bool {
	ok, last := p.poll(func(ctx context.Context) (string, error) {
		var u string
		err := chromedp.Run(ctx, chromedp.Location(&u))
		return u, err
	}, fragment)
	if !ok {
		p.logger.Error("URL did not match within timeout", "want", fragment, "current", last)
	}
	return ok
}

// WaitTitleContains polls the page title until it contains fragment.
func (p *Page) WaitTitleContains(fragment string) bool {
	ok, last := p.poll(func(ctx context.Context) (string, error) {
		var t string
		err := chromedp.Run(ctx, chromedp.Title(&t))
		return t, err
	}, fragment)
	if !ok {
		p.logger.Error("title did not match within timeout", "want", fragment, "current", last)
	}
	return ok
}

// CurrentURL returns the tab's location.
func (p *Page) CurrentURL() (string, error) {
	var u string
	err := p.run("location", CSS("html"), chromedp.Location(&u))
	return u, err
}

func (p *Page) poll(read func(context.Context) (string, error), fragment string) (bool, string) {
	return Poll(p.ctx, p.timeout, PollInterval, read, func(v string) bool { return strings.Contains(v, fragment) })
}

// Poll calls read until match accepts its value or timeout elapses. It
// returns the last value read.
func Poll(ctx context.Context, timeout, interval time.Duration, read func(context.Context) (string, error), match func(string) bool) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last string
	for {
		if v, err := read(ctx); err == nil {
			last = v
			if match(v) {
				return true, last
			}
		}
		select {
		case <-ctx.Done():
			return false, last
		case <-ticker.C:
		}
	}
}
