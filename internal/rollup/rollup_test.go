package rollup

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func priceRow(price, cf any) LineItem {
	return LineItem{UnitPrice: ToNumber(price), ConversionFactor: ToNumber(cf)}
}

func directRow(v any) LineItem {
	return LineItem{DirectValue: ToNumber(v)}
}

func sectionOf(kind SectionKind, rows ...LineItem) Section {
	s := NewSection(kind)
	s.Rows = append(s.Rows, rows...)
	return s
}

func endToEndInput(mode BandMode) Input {
	return Input{
		Raw:       sectionOf(SectionRaw, priceRow(2.00, 0.50)),
		Plant:     sectionOf(SectionPlant, directRow(0.30)),
		Logistics: sectionOf(SectionLogistics, directRow(0.20)),
		Config:    Config{MarginPct: 25, ScenarioPct: 10, Mode: mode},
	}
}

func TestRecompute_EndToEndReportBands(t *testing.T) {
	s := Recompute(endToEndInput(ModeReport))

	assert.InDelta(t, 1.30, s.Manufacturing.Base, tolerance)
	assert.InDelta(t, 1.30/0.75, s.WithMargin.Base, tolerance)
	assert.InDelta(t, 0.20, s.Logistics.Base, tolerance)
	assert.InDelta(t, 1.30/0.75+0.20, s.Total.Base, tolerance)
	assert.InDelta(t, 1.74, s.Total.Low, 1e-6)
	assert.InDelta(t, 2.126667, s.Total.High, 1e-6)
	assert.False(t, s.MarginMissing)
}

func TestRecompute_RowModeWithoutAppliedBandsEqualsBase(t *testing.T) {
	s := Recompute(endToEndInput(ModeRow))

	assert.InDelta(t, 1.30/0.75+0.20, s.Total.Base, tolerance)
	assert.Equal(t, s.Total.Base, s.Total.Low)
	assert.Equal(t, s.Total.Base, s.Total.High)
}

func TestRecompute_RowModeAfterApplyingScenarios(t *testing.T) {
	in := endToEndInput(ModeRow)
	for _, sec := range []*Section{&in.Raw, &in.Plant, &in.Logistics} {
		ApplyRowScenarios(sec, in.Config.ScenarioPct)
	}

	s := Recompute(in)

	assert.InDelta(t, 1.30*0.9, s.Manufacturing.Low, tolerance)
	assert.InDelta(t, 1.30*1.1, s.Manufacturing.High, tolerance)
	assert.InDelta(t, 1.30*0.9/0.75+0.18, s.Total.Low, tolerance)
	assert.InDelta(t, 1.30*1.1/0.75+0.22, s.Total.High, tolerance)
}

func TestRecompute_ReportModeIgnoresRowBands(t *testing.T) {
	in := endToEndInput(ModeReport)
	in.Raw.Rows[0].Low = Of(0.01)
	in.Raw.Rows[0].High = Of(99)

	s := Recompute(in)

	assert.InDelta(t, 1.30*0.9, s.Manufacturing.Low, tolerance)
	assert.InDelta(t, 1.30*1.1, s.Manufacturing.High, tolerance)
}

func TestRecompute_ScenarioZeroIsExact(t *testing.T) {
	for _, mode := range []BandMode{ModeReport, ModeRow} {
		t.Run(string(mode), func(t *testing.T) {
			in := endToEndInput(mode)
			in.Config.ScenarioPct = 0
			if mode == ModeRow {
				for _, sec := range []*Section{&in.Raw, &in.Plant, &in.Logistics} {
					ApplyRowScenarios(sec, 0)
				}
			}

			s := Recompute(in)
			for _, row := range s.Rows() {
				assert.Equal(t, row.Band.Base, row.Band.Low, row.Name)
				assert.Equal(t, row.Band.Base, row.Band.High, row.Name)
			}
		})
	}
}

func TestRecompute_ScenarioSymmetry(t *testing.T) {
	in := endToEndInput(ModeReport)
	in.Config.ScenarioPct = 17

	for _, row := range Recompute(in).Rows() {
		assert.InDelta(t, row.Band.Base-row.Band.Low, row.Band.High-row.Band.Base, tolerance, row.Name)
	}
}

func TestRecompute_MarginSingularityFallsBackToLogistics(t *testing.T) {
	for _, mode := range []BandMode{ModeReport, ModeRow} {
		t.Run(string(mode), func(t *testing.T) {
			in := endToEndInput(mode)
			in.Config.MarginPct = 100
			in.Config.ScenarioPct = 0

			s := Recompute(in)

			assert.True(t, s.MarginMissing)
			assert.Equal(t, Flat(0), s.WithMargin)
			assert.InDelta(t, 0.20, s.Total.Base, tolerance)
			assert.InDelta(t, 0.20, s.Total.Low, tolerance)
			assert.InDelta(t, 0.20, s.Total.High, tolerance)
		})
	}
}

func TestRecompute_EmptySectionsYieldZero(t *testing.T) {
	s := Recompute(Input{
		Raw:       NewSection(SectionRaw),
		Plant:     NewSection(SectionPlant),
		Logistics: NewSection(SectionLogistics),
		Config:    DefaultConfig(),
	})

	for _, row := range s.Rows() {
		assert.Equal(t, Flat(0), row.Band, row.Name)
	}
}

func TestRecompute_BlankRowContributesNothing(t *testing.T) {
	base := Recompute(endToEndInput(ModeRow))

	in := endToEndInput(ModeRow)
	in.Raw.Rows = append(in.Raw.Rows, LineItem{Item: "blank"})
	in.Logistics.Rows = append(in.Logistics.Rows, LineItem{})

	assert.Equal(t, base.Total, Recompute(in).Total)
}

func TestRecompute_DeletingRowRemovesItsContribution(t *testing.T) {
	in := endToEndInput(ModeRow)
	in.Plant.Rows = append(in.Plant.Rows, LineItem{DirectValue: Of(0.5), Low: Of(0.4), High: Of(0.7)})
	with := Recompute(in)

	in.Plant.Rows = in.Plant.Rows[:1]
	without := Recompute(in)

	assert.InDelta(t, 0.4, with.Plant.Low-without.Plant.Low, tolerance)
	assert.InDelta(t, 0.5, with.Plant.Base-without.Plant.Base, tolerance)
	assert.InDelta(t, 0.7, with.Plant.High-without.Plant.High, tolerance)
}

func TestRecompute_IsPureOverInputs(t *testing.T) {
	in := endToEndInput(ModeReport)
	first := Recompute(in)

	in.Raw.Rows[0].UnitPrice = Of(4)
	changed := Recompute(in)
	require.NotEqual(t, first.Total, changed.Total)

	in.Raw.Rows[0].UnitPrice = Of(2)
	assert.Equal(t, first, Recompute(in))
}

func TestRecompute_EmptyModeDefaultsToReport(t *testing.T) {
	in := endToEndInput("")
	assert.Equal(t, ModeReport, Recompute(in).Config.Mode)
}

func TestSummary_PerShortTon(t *testing.T) {
	s := Recompute(endToEndInput(ModeReport))
	assert.InDelta(t, s.Total.Base*2000, s.PerShortTon().Base, tolerance)
}

func TestSummary_RowsOrderAndNames(t *testing.T) {
	rows := Recompute(endToEndInput(ModeReport)).Rows()
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	assert.Equal(t, []string{RowManufacturing, RowWithMargin, RowLogistics, RowTotal}, names)
}

func assertFinite(t *testing.T, s Summary) {
	t.Helper()
	bands := map[string]Band{"raw": s.Raw, "plant": s.Plant, "manufacturing": s.Manufacturing,
		"with_margin": s.WithMargin, "logistics": s.Logistics, "total": s.Total, "per_ton": s.PerShortTon()}
	for name, b := range bands {
		for _, v := range []float64{b.Low, b.Base, b.High} {
			assert.False(t, math.IsInf(v, 0) || math.IsNaN(v), "%s = %v", name, b)
		}
	}
	_, err := json.Marshal(s)
	assert.NoError(t, err)
}

func TestRecompute_OverflowingSumsStayFinite(t *testing.T) {
	for _, mode := range []BandMode{ModeReport, ModeRow} {
		t.Run(string(mode), func(t *testing.T) {
			in := Input{
				Raw:       NewSection(SectionRaw),
				Plant:     sectionOf(SectionPlant, directRow(0.30)),
				Logistics: sectionOf(SectionLogistics, directRow(1e308), directRow(1e308)),
				Config:    Config{MarginPct: 25, ScenarioPct: 10, Mode: mode},
			}

			s := Recompute(in)

			assertFinite(t, s)
			assert.Equal(t, Flat(0), s.Logistics)
			assert.InDelta(t, 0.40, s.Total.Base, tolerance)
		})
	}
}

func TestRecompute_ManufacturingOverflowIsNotAMissingMargin(t *testing.T) {
	for _, mode := range []BandMode{ModeReport, ModeRow} {
		t.Run(string(mode), func(t *testing.T) {
			in := Input{
				Raw:       sectionOf(SectionRaw, priceRow(1e308, 1)),
				Plant:     sectionOf(SectionPlant, directRow(1e308)),
				Logistics: sectionOf(SectionLogistics, directRow(0.20)),
				Config:    Config{MarginPct: 25, ScenarioPct: 10, Mode: mode},
			}

			s := Recompute(in)

			assertFinite(t, s)
			assert.False(t, s.MarginMissing)
			assert.Equal(t, 0.0, s.Manufacturing.Base)
		})
	}
}

func TestRecompute_SpreadOverflowStaysFinite(t *testing.T) {
	in := Input{
		Raw:       NewSection(SectionRaw),
		Plant:     NewSection(SectionPlant),
		Logistics: sectionOf(SectionLogistics, directRow(1.5e308)),
		Config:    Config{MarginPct: 25, ScenarioPct: 100, Mode: ModeReport},
	}

	s := Recompute(in)

	assertFinite(t, s)
	assert.Equal(t, 1.5e308, s.Total.Base)
	assert.Equal(t, 0.0, s.Total.High)
	assert.Equal(t, 0.0, s.Total.Low)
}
