package booking

import (
	"fmt"

	"flightcheck/internal/fixture"
	"flightcheck/internal/harness"
)

// CaseName names the i-th (0-based) booking case from source.
func CaseName(source string, i int, p fixture.Passenger) string {
	return fmt.Sprintf("booking-%s-%02d %s", source, i+1, p.FullName())
}

// Cases builds one end-to-end booking case per passenger. source tags the
// fixture origin ("json", "csv", "yaml") in case names and log lines.
func Cases(source string, passengers []fixture.Passenger) []harness.Case {
	cases := make([]harness.Case, len(passengers))
	for i, p := range passengers {
		cases[i] = harness.Case{Name: CaseName(source, i, p), Body: Flow(source, p)}
	}
	return cases
}

// Flow searches, selects a flight, purchases and checks each page
// transition by URL.
func Flow(source string, p fixture.Passenger) func(*harness.T) error {
	return func(t *harness.T) error {
		pg := t.Page()
		url := t.Settings.AppURL
		t.Check(pg.Navigate(url))
		t.Log("Navigated to: %s", url)
		t.Log("Attempting booking for passenger (%s): %s from %s to %s", source, p.FullName(), p.Origin, p.Destination)

		t.Check(NewHomePage(pg).FindFlights(p.Origin, p.Destination))
		t.Require(pg.WaitURLContains("/reserve.php"), "Did not navigate to reserve page!")

		flights := NewFlightSelectionPage(pg)
		if low, ok := flights.LowestPrice(); ok {
			t.Log("Lowest listed fare: $%.2f", low)
		}
		t.Check(flights.ChooseFirstFlight())
		t.Require(pg.WaitURLContains("/purchase.php"), "Did not navigate to purchase page!")

		purchase := NewPurchasePage(pg)
		t.Check(purchase.Fill(p))
		t.Check(purchase.Purchase())
		t.Require(pg.WaitURLContains("/confirmation.php"), "Did not navigate to confirmation page after purchase.")

		if h, err := NewConfirmationPage(pg).Heading(); err == nil {
			t.Log("Confirmation: %s", h)
		}
		t.Entry.Pass(fmt.Sprintf("Flight booking (%s) successful for: %s", source, p.FullName()))
		return nil
	}
}
