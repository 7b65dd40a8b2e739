// Package export renders an analysis for people: a plain-text summary, a
// terminal table and an Excel workbook.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Simplici0/shouldcost/internal/analysis"
	"github.com/Simplici0/shouldcost/internal/rollup"
)

func bandCell(v float64, missing bool) string {
	if missing {
		return rollup.FormatPerLb(rollup.Missing)
	}
	return rollup.FormatPerLb(rollup.Of(v))
}

// Text writes a plain-text summary suitable for pasting into an email.
func Text(w io.Writer, a *analysis.Analysis) error {
	s := a.Summary()
	var b strings.Builder

	product := a.Meta.Product
	if product == "" {
		product = "(unnamed product)"
	}
	fmt.Fprintf(&b, "Should-cost estimate: %s\n", product)
	fmt.Fprintf(&b, "Date: %s\n\n", a.Meta.Date)

	b.WriteString("Assumptions:\n")
	fmt.Fprintf(&b, "- Gross margin: %g%%\n", s.Config.MarginPct)
	fmt.Fprintf(&b, "- Scenario: ±%g%%\n", s.Config.ScenarioPct)
	fmt.Fprintf(&b, "- Band mode: %s\n\n", s.Config.Mode)

	b.WriteString("Line items:\n")
	for _, kind := range rollup.SectionKinds {
		rows, err := a.Rows(kind)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "%s (%d)\n", kind.Title(), len(rows))
		for _, row := range rows {
			fmt.Fprintf(&b, "- %s: %s [%s]\n", itemLabel(row.Item), rollup.FormatPerLb(rollup.Of(row.Resolved.Base)), row.Resolved.Rule)
		}
	}
	b.WriteString("\n")

	b.WriteString("Summary:\n")
	for _, row := range s.Rows() {
		fmt.Fprintf(&b, "%s: Low %s | Base %s | High %s\n",
			row.Name,
			bandCell(row.Band.Low, row.Missing),
			bandCell(row.Band.Base, row.Missing),
			bandCell(row.Band.High, row.Missing),
		)
	}

	ton := s.PerShortTon()
	fmt.Fprintf(&b, "Per short ton (2,000 lb): Low %s, Base %s, High %s.\n",
		rollup.FormatCurrency(rollup.Of(ton.Low)),
		rollup.FormatCurrency(rollup.Of(ton.Base)),
		rollup.FormatCurrency(rollup.Of(ton.High)),
	)

	_, err := io.WriteString(w, b.String())
	return err
}

// Table renders the summary rows as a terminal table.
func Table(w io.Writer, a *analysis.Analysis) error {
	s := a.Summary()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(tableTitle(a))
	t.AppendHeader(table.Row{"", "Low", "Base", "High"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	for _, row := range s.Rows() {
		t.AppendRow(table.Row{
			row.Name,
			bandCell(row.Band.Low, row.Missing),
			bandCell(row.Band.Base, row.Missing),
			bandCell(row.Band.High, row.Missing),
		})
	}

	ton := s.PerShortTon()
	t.AppendFooter(table.Row{
		"Per short ton",
		rollup.FormatCurrency(rollup.Of(ton.Low)),
		rollup.FormatCurrency(rollup.Of(ton.Base)),
		rollup.FormatCurrency(rollup.Of(ton.High)),
	})

	t.Render()
	return nil
}

func tableTitle(a *analysis.Analysis) string {
	title := fmt.Sprintf("margin %g%% · scenario ±%g%% · %s bands", a.Config.MarginPct, a.Config.ScenarioPct, a.Summary().Config.Mode)
	if a.Meta.Product != "" {
		title = a.Meta.Product + " · " + title
	}
	return title
}

func itemLabel(item string) string {
	if strings.TrimSpace(item) == "" {
		return "(blank)"
	}
	return item
}
