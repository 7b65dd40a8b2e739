package rollup

import "fmt"

// BandMode selects where scenario bands are produced.
type BandMode string

const (
	// ModeReport bands each rollup figure after aggregation. Row Low/High
	// fields are neither read nor written.
	ModeReport BandMode = "report"
	// ModeRow stores bands on each row via ApplyRowScenarios and rolls the
	// row Low/High values up alongside Base.
	ModeRow BandMode = "row"
)

// ParseBandMode accepts "report" or "row". Empty input means ModeReport.
func ParseBandMode(s string) (BandMode, error) {
	switch BandMode(s) {
	case "", ModeReport:
		return ModeReport, nil
	case ModeRow:
		return ModeRow, nil
	}
	return ModeReport, fmt.Errorf("unknown band mode %q", s)
}

// Spread derives Low = base×(1−p/100) and High = base×(1+p/100).
func Spread(base, scenarioPct float64) Band {
	s := scenarioPct / 100.0
	return Band{
		Low:  base * (1 - s),
		Base: base,
		High: base * (1 + s),
	}
}

// ApplyRowScenarios overwrites Low and High on every row of s that has an
// effective Base from a real input. Rows that resolve to the default 0 are
// left untouched. It returns the number of rows updated.
func ApplyRowScenarios(s *Section, scenarioPct float64) int {
	updated := 0
	for i := range s.Rows {
		res := Resolve(s.Rows[i], s.Shape)
		if res.Rule == RuleDefault {
			continue
		}
		band := Spread(res.Base, scenarioPct)
		s.Rows[i].Low = Of(band.Low)
		s.Rows[i].High = Of(band.High)
		updated++
	}
	return updated
}
