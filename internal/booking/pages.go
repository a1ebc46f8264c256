// Package booking holds page objects for the flight booking site and turns
// passenger fixtures into runnable cases.
package booking

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"flightcheck/internal/fixture"
	"flightcheck/internal/logging"
	"flightcheck/internal/page"
)

var (
	departFrom    = page.Name("fromPort")
	arriveAt      = page.Name("toPort")
	submitButton  = page.CSS("input[type='submit']")
	flightPrices  = page.XPath("//table[@class='table']/tbody/tr/td[6]")
	confirmHeader = page.CSS("h1")
)

// HomePage is the flight search form.
type HomePage struct {
	p      *page.Page
	logger *slog.Logger
}

func NewHomePage(p *page.Page) *HomePage {
	return &HomePage{p: p, logger: logging.New("home-page")}
}

// DepartCities lists the departure dropdown options.
func (h *HomePage) DepartCities() ([]string, error) { return h.p.OptionTexts(departFrom) }

// ArriveCities lists the destination dropdown options.
func (h *HomePage) ArriveCities() ([]string, error) { return h.p.OptionTexts(arriveAt) }

// FindFlights selects both cities and submits the search.
func (h *HomePage) FindFlights(from, to string) error {
	h.logger.Info("searching flights", "from", from, "to", to)
	if err := h.p.SelectByVisibleText(departFrom, from); err != nil {
		return fmt.Errorf("select departure: %w", err)
	}
	if err := h.p.SelectByVisibleText(arriveAt, to); err != nil {
		return fmt.Errorf("select destination: %w", err)
	}
	return h.p.Click(submitButton)
}

// FlightSelectionPage is the reserve page listing flights.
type FlightSelectionPage struct {
	p *page.Page
}

func NewFlightSelectionPage(p *page.Page) *FlightSelectionPage {
	return &FlightSelectionPage{p: p}
}

// ChooseFirstFlight picks the first listed flight.
func (f *FlightSelectionPage) ChooseFirstFlight() error {
	return f.p.Click(submitButton)
}

// LowestPrice returns the cheapest listed fare.
func (f *FlightSelectionPage) LowestPrice() (float64, bool) {
	texts, err := f.p.Texts(flightPrices)
	if err != nil {
		return 0, false
	}
	return LowestPrice(texts)
}

// LowestPrice parses "$472.56"-style cells and returns the minimum.
// Unparsable cells are ignored.
func LowestPrice(cells []string) (float64, bool) {
	var low float64
	found := false
	for _, c := range cells {
		v, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(c), "$"), 64)
		if err != nil {
			continue
		}
		if !found || v < low {
			low, found = v, true
		}
	}
	return low, found
}

// PurchasePage is the passenger and payment form.
type PurchasePage struct {
	p *page.Page
}

func NewPurchasePage(p *page.Page) *PurchasePage {
	return &PurchasePage{p: p}
}

// Fill enters every passenger and card field.
func (pp *PurchasePage) Fill(ps fixture.Passenger) error {
	fields := []struct {
		id, value string
	}{
		{"inputName", ps.FullName()},
		{"address", ps.Address},
		{"city", ps.City},
		{"state", ps.State},
		{"zipCode", ps.ZipCode},
		{"creditCardNumber", ps.CardNumber},
		{"creditCardMonth", ps.Month},
		{"creditCardYear", ps.Year},
		{"nameOnCard", ps.CardName},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := pp.p.SendText(page.ID(f.id), f.value); err != nil {
			return fmt.Errorf("fill %s: %w", f.id, err)
		}
	}
	if ps.CardType != "" {
		if err := pp.p.SelectByVisibleText(page.ID("cardType"), ps.CardType); err != nil {
			return fmt.Errorf("select card type: %w", err)
		}
	}
	return nil
}

// Purchase submits the form.
func (pp *PurchasePage) Purchase() error {
	return pp.p.Click(submitButton)
}

// ConfirmationPage is shown after a successful purchase.
type ConfirmationPage struct {
	p *page.Page
}

func NewConfirmationPage(p *page.Page) *ConfirmationPage {
	return &ConfirmationPage{p: p}
}

// Heading is the page's main heading.
func (c *ConfirmationPage) Heading() (string, error) {
	return c.p.Text(confirmHeader)
}
