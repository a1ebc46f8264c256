//go:build e2e

package booking

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"flightcheck/internal/config"
	"flightcheck/internal/failures"
	"flightcheck/internal/fixture"
	"flightcheck/internal/harness"
	"flightcheck/internal/report"
	"flightcheck/internal/session"
)

const (
	homeHTML = `<html><head><title>BlazeDemo</title></head><body>
<form action="/reserve.php" method="get">
<select name="fromPort"><option>Paris</option><option>Boston</option></select>
<select name="toPort"><option>London</option><option>Rome</option></select>
<input type="submit" value="Find Flights"></form></body></html>`
	reserveHTML = `<html><head><title>BlazeDemo - reserve</title></head><body>
<form action="/purchase.php" method="get"><table class="table"><tbody>
<tr><td>1</td><td>43</td><td>VA</td><td>1</td><td>2</td><td>$472.56</td></tr>
<tr><td>2</td><td>234</td><td>UA</td><td>1</td><td>2</td><td>$432.98</td></tr>
</tbody></table><input type="submit" value="Choose This Flight"></form></body></html>`
	purchaseHTML = `<html><head><title>BlazeDemo Purchase</title></head><body>
<form action="/confirmation.php" method="get">
<input id="inputName"><input id="address"><input id="city"><input id="state"><input id="zipCode">
<select id="cardType"><option>Visa</option><option>American Express</option></select>
<input id="creditCardNumber"><input id="creditCardMonth"><input id="creditCardYear"><input id="nameOnCard">
<input type="submit" value="Purchase Flight"></form></body></html>`
	confirmHTML = `<html><head><title>BlazeDemo Confirmation</title></head><body><h1>Thank you for your purchase today!</h1></body></html>`
)

func fakeSite() *httptest.Server {
	mux := http.NewServeMux()
	serve := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, body) }
	}
	mux.HandleFunc("/", serve(homeHTML))
	mux.HandleFunc("/reserve.php", serve(reserveHTML))
	mux.HandleFunc("/purchase.php", serve(purchaseHTML))
	mux.HandleFunc("/confirmation.php", serve(confirmHTML))
	return httptest.NewServer(mux)
}

func TestBookingFlow_Headless(t *testing.T) {
	site := fakeSite()
	defer site.Close()

	ps, err := fixture.Load(filepath.Join("..", "fixture", "testdata", "passengers.json"))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	dir := t.TempDir()
	s := config.Settings{AppURL: site.URL, Browser: "chrome", Headless: true, Parallel: 2, Timeout: 10 * time.Second}
	sink, err := report.NewHTMLSink(filepath.Join(dir, report.ReportFileName("e2e")), report.SystemInfo{Suite: "e2e"})
	if err != nil {
		t.Fatal(err)
	}
	agg := failures.NewAggregator()
	reg := session.NewRegistry(session.NewChromeLauncher(s))
	defer reg.Close()

	orch := harness.New(s, reg, report.NewContexts(sink), agg)
	res, err := orch.Run(context.Background(), Cases("json", ps))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Count(harness.StatusPassed) != len(ps) {
		t.Fatalf("outcomes = %+v; failures = %v", res.Outcomes, agg.Snapshot())
	}
	if _, err := harness.NewFinalizer(sink, agg, dir, "e2e").Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}
