package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/shouldcost/internal/analysis"
	"github.com/Simplici0/shouldcost/internal/rollup"
)

// SummarySheet is the name of the workbook's first sheet.
const SummarySheet = "Summary"

var sectionColumns = []string{
	"Category", "Item", "Unit Price", "CF Unit", "Conversion Factor",
	"Suggested $/lb", "Override $/lb", "Direct $/lb",
	"Low $/lb", "Base $/lb", "High $/lb", "Rule",
	"Source Tag", "Source Notes", "Attachment",
}

type styles struct {
	title  int
	header int
	money  int
	bold   int
}

// Workbook builds an .xlsx file with a summary sheet and one sheet per
// section.
func Workbook(a *analysis.Analysis) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	if err := writeSummary(f, st, a); err != nil {
		return nil, err
	}
	for _, kind := range rollup.SectionKinds {
		if err := writeSection(f, st, a, kind); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	st.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	if err != nil {
		return st, fmt.Errorf("create title style: %w", err)
	}

	st.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return st, fmt.Errorf("create header style: %w", err)
	}

	moneyFormat := "$#,##0.0000"
	st.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFormat})
	if err != nil {
		return st, fmt.Errorf("create money style: %w", err)
	}

	st.bold, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true},
		CustomNumFmt: &moneyFormat,
	})
	if err != nil {
		return st, fmt.Errorf("create total style: %w", err)
	}
	return st, nil
}

func writeSummary(f *excelize.File, st styles, a *analysis.Analysis) error {
	s := a.Summary()
	sheet := SummarySheet

	meta := [][]any{
		{"Should-cost estimate", sanitizeExcelCell(a.Meta.Product)},
		{"Date", a.Meta.Date},
		{"Gross margin %", s.Config.MarginPct},
		{"Scenario ±%", s.Config.ScenarioPct},
		{"Band mode", string(s.Config.Mode)},
	}
	for i, values := range meta {
		if err := setRow(f, sheet, 1, i+1, values); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", st.title); err != nil {
		return fmt.Errorf("style summary title: %w", err)
	}

	const headerRow = 7
	if err := setRow(f, sheet, 1, headerRow, []any{"$/lb", "Low", "Base", "High"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A7", "D7", st.header); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}

	row := headerRow + 1
	for _, r := range s.Rows() {
		values := []any{r.Name, r.Band.Low, r.Band.Base, r.Band.High}
		if r.Missing {
			values = []any{r.Name, "—", "—", "—"}
		}
		if err := setRow(f, sheet, 1, row, values); err != nil {
			return err
		}
		style := st.money
		if r.Name == rollup.RowTotal {
			style = st.bold
		}
		if err := f.SetCellStyle(sheet, cellName(2, row), cellName(4, row), style); err != nil {
			return fmt.Errorf("style summary row: %w", err)
		}
		row++
	}

	ton := s.PerShortTon()
	if err := setRow(f, sheet, 1, row, []any{"Per short ton (2,000 lb)", ton.Low, ton.Base, ton.High}); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cellName(2, row), cellName(4, row), st.money); err != nil {
		return fmt.Errorf("style per-ton row: %w", err)
	}

	if err := f.SetColWidth(sheet, "A", "A", 30); err != nil {
		return fmt.Errorf("set col width: %w", err)
	}
	if err := f.SetColWidth(sheet, "B", "D", 16); err != nil {
		return fmt.Errorf("set col width: %w", err)
	}
	return nil
}

func writeSection(f *excelize.File, st styles, a *analysis.Analysis, kind rollup.SectionKind) error {
	sheet := kind.Title()
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	header := make([]any, len(sectionColumns))
	for i, c := range sectionColumns {
		header[i] = c
	}
	if err := setRow(f, sheet, 1, 1, header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", cellName(len(sectionColumns), 1), st.header); err != nil {
		return fmt.Errorf("style section header: %w", err)
	}

	rows, err := a.Rows(kind)
	if err != nil {
		return err
	}
	for i, r := range rows {
		line := i + 2
		values := []any{
			sanitizeExcelCell(r.Category),
			sanitizeExcelCell(r.Item),
			numCell(r.UnitPrice),
			sanitizeExcelCell(r.CFUnit),
			numCell(r.ConversionFactor),
			numCell(r.Resolved.Suggested),
			numCell(r.OverrideValue),
			numCell(r.DirectValue),
			r.Resolved.Low,
			r.Resolved.Base,
			r.Resolved.High,
			string(r.Resolved.Rule),
			sanitizeExcelCell(r.SourceTag),
			sanitizeExcelCell(r.SourceNotes),
			sanitizeExcelCell(r.AttachmentRef),
		}
		if err := setRow(f, sheet, 1, line, values); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cellName(6, line), cellName(11, line), st.money); err != nil {
			return fmt.Errorf("style section row: %w", err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "B", 24); err != nil {
		return fmt.Errorf("set col width: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, col, row int, values []any) error {
	for i, v := range values {
		if v == nil {
			continue
		}
		if err := f.SetCellValue(sheet, cellName(col+i, row), v); err != nil {
			return fmt.Errorf("set cell %s!%s: %w", sheet, cellName(col+i, row), err)
		}
	}
	return nil
}

func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		panic(err)
	}
	return name
}

// numCell writes missing inputs as the em-dash placeholder.
func numCell(n rollup.Num) any {
	v, ok := n.Float64()
	if !ok {
		return n.String()
	}
	return v
}

// sanitizeExcelCell prevents formula injection by prefixing dangerous leading
// characters with a single quote.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}
