// Package format renders run results as console or Markdown tables.
package format

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode selects the table renderer.
type Mode int

const (
	ASCII Mode = iota
	Markdown
)

// ParseMode accepts "ascii"/"table"/"" and "markdown"/"md".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "ascii", "table":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	}
	return ASCII, fmt.Errorf("unknown output format %q", s)
}

// Align is a column's horizontal alignment.
type Align int

const (
	AlignDefault Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Column configures one 1-based column.
type Column struct {
	Number   int
	Align    Align
	MaxWidth int
}

// Table accumulates rows and renders once.
type Table struct {
	w    table.Writer
	mode Mode
}

func NewTable(m Mode) *Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &Table{w: w, mode: m}
}

func (t *Table) Header(cols ...any) { t.w.AppendHeader(table.Row(cols)) }

func (t *Table) Row(vals ...any) { t.w.AppendRow(table.Row(vals)) }

func (t *Table) Footer(vals ...any) { t.w.AppendFooter(table.Row(vals)) }

func (t *Table) Columns(cols ...Column) {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		cfgs[i] = table.ColumnConfig{Number: c.Number, Align: textAlign(c.Align), WidthMax: c.MaxWidth}
	}
	t.w.SetColumnConfigs(cfgs)
}

func (t *Table) String() string {
	if t.mode == Markdown {
		return t.w.RenderMarkdown()
	}
	return t.w.Render()
}

func textAlign(a Align) text.Align {
	switch a {
	case AlignLeft:
		return text.AlignLeft
	case AlignCenter:
		return text.AlignCenter
	case AlignRight:
		return text.AlignRight
	}
	return text.AlignDefault
}
