package page

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocator_String(t *testing.T) {
	if got := Name("fromPort").String(); got != `css=[name="fromPort"]` {
		t.Errorf("Name locator = %s", got)
	}
	if got := XPath("//table/tbody/tr").String(); got != "xpath=//table/tbody/tr" {
		t.Errorf("XPath locator = %s", got)
	}
	if got := ID("inputName").Expr; got != "#inputName" {
		t.Errorf("ID locator = %s", got)
	}
}

func TestSelectScript(t *testing.T) {
	js := SelectScript(Name("fromPort"), `Paris "CDG"`)
	if !strings.Contains(js, `document.querySelector("[name=\"fromPort\"]")`) {
		t.Errorf("css script does not query selector:\n%s", js)
	}
	if !strings.Contains(js, `"Paris \"CDG\""`) {
		t.Errorf("option text not JSON-quoted:\n%s", js)
	}
	xjs := SelectScript(XPath("//select[1]"), "Rome")
	if !strings.Contains(xjs, "document.evaluate(") {
		t.Errorf("xpath script does not use document.evaluate:\n%s", xjs)
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Op: "click", Target: "css=input", Timeout: 2 * time.Second, Err: context.DeadlineExceeded}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("TimeoutError should unwrap to DeadlineExceeded")
	}
	if !strings.Contains(err.Error(), "within 2s") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestPoll_MatchesEventually(t *testing.T) {
	var calls atomic.Int32
	read := func(context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "https://blazedemo.com/reserve.php", nil
		}
		return "https://blazedemo.com/purchase.php", nil
	}
	ok, last := Poll(context.Background(), time.Second, time.Millisecond, read,
		func(v string) bool { return strings.Contains(v, "/purchase.php") })
	if !ok || !strings.HasSuffix(last, "/purchase.php") {
		t.Fatalf("Poll = %v, %q", ok, last)
	}
}

func TestPoll_TimesOutToFalse(t *testing.T) {
	read := func(context.Context) (string, error) { return "", errors.New("no target") }
	start := time.Now()
	ok, _ := Poll(context.Background(), 30*time.Millisecond, 5*time.Millisecond, read,
		func(string) bool { return true })
	if ok {
		t.Fatal("Poll should fail when read always errors")
	}
	if time.Since(start) > time.Second {
		t.Fatal("Poll overran its timeout")
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	if got := New(context.Background(), 0).Timeout(); got != DefaultTimeout {
		t.Errorf("Timeout() = %s", got)
	}
}

func TestTextsScript(t *testing.T) {
	css := textsScript(CSS("td.price"), "e.innerText")
	if !strings.Contains(css, `document.querySelectorAll("td.price")`) {
		t.Errorf("css script:\n%s", css)
	}
	x := textsScript(XPath("//tr/td[6]"), "e.innerText")
	if !strings.Contains(x, "ORDERED_NODE_SNAPSHOT_TYPE") {
		t.Errorf("xpath script:\n%s", x)
	}
}
