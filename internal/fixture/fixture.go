// Package fixture loads passenger records that parameterize booking cases.
package fixture

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Passenger is one booking case input.
type Passenger struct {
	Origin      string `json:"origin" yaml:"origin"`
	Destination string `json:"destination" yaml:"destination"`
	FirstName   string `json:"firstName" yaml:"firstName"`
	LastName    string `json:"lastName" yaml:"lastName"`
	Address     string `json:"address" yaml:"address"`
	City        string `json:"city" yaml:"city"`
	State       string `json:"state" yaml:"state"`
	ZipCode     string `json:"zipCode" yaml:"zipCode"`
	CardType    string `json:"cardType" yaml:"cardType"`
	CardNumber  string `json:"cardNumber" yaml:"cardNumber"`
	Month       string `json:"month" yaml:"month"`
	Year        string `json:"year" yaml:"year"`
	CardName    string `json:"cardName" yaml:"cardName"`
	Age         int    `json:"age" yaml:"age"`
	Gender      string `json:"gender" yaml:"gender"`
}

// FullName is "First Last".
func (p Passenger) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ErrUnknownFormat is returned by Load for unsupported file extensions.
var ErrUnknownFormat = errors.New("unknown fixture format")

// Load reads passengers from path, choosing the decoder by extension.
func Load(path string) ([]Passenger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var ps []Passenger
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		ps, err = LoadJSON(bytes.NewReader(data))
	case ".csv":
		ps, err = LoadCSV(bytes.NewReader(data))
	case ".yaml", ".yml":
		ps, err = LoadYAML(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%s: %w %q", path, ErrUnknownFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ps, nil
}

// LoadJSON decodes a JSON array of passengers.
func LoadJSON(r io.Reader) ([]Passenger, error) {
	var ps []Passenger
	if err := json.NewDecoder(r).Decode(&ps); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return ps, nil
}

// LoadYAML decodes a YAML sequence of passengers.
func LoadYAML(r io.Reader) ([]Passenger, error) {
	var ps []Passenger
	if err := yaml.NewDecoder(r).Decode(&ps); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return ps, nil
}

// LoadCSV reads a headed CSV. Column names match the JSON field names and
// may appear in any order; unknown columns are ignored.
func LoadCSV(r io.Reader) ([]Passenger, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}

	var ps []Passenger
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return ps, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		get := func(name string) string {
			if i, ok := cols[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		p := Passenger{
			Origin:      get("origin"),
			Destination: get("destination"),
			FirstName:   get("firstName"),
			LastName:    get("lastName"),
			Address:     get("address"),
			City:        get("city"),
			State:       get("state"),
			ZipCode:     get("zipCode"),
			CardType:    get("cardType"),
			CardNumber:  get("cardNumber"),
			Month:       get("month"),
			Year:        get("year"),
			CardName:    get("cardName"),
			Gender:      get("gender"),
		}
		if s := get("age"); s != "" {
			if p.Age, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("csv line %d: age %q: %w", line, s, err)
			}
		}
		ps = append(ps, p)
	}
}
