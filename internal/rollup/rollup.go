// Package rollup turns line-item sections into Low/Base/High cost figures:
// per-row resolution, section sums, gross margin and the total estimated
// cost. Everything here is a pure function of its inputs.
package rollup

// Summary row names, in display order.
const (
	RowManufacturing = "Manufacturing Subtotal"
	RowWithMargin    = "Subtotal with Margin"
	RowLogistics     = "Logistics Subtotal"
	RowTotal         = "TOTAL ESTIMATED COST"
)

// Config holds the analysis-wide rollup parameters.
type Config struct {
	MarginPct   float64  `json:"margin_pct" yaml:"margin_pct"`
	ScenarioPct float64  `json:"scenario_pct" yaml:"scenario_pct"`
	Mode        BandMode `json:"mode" yaml:"mode"`
}

// DefaultConfig is 25% gross margin, ±10% scenario, report-level bands.
func DefaultConfig() Config {
	return Config{MarginPct: 25, ScenarioPct: 10, Mode: ModeReport}
}

// Input is the snapshot a rollup is computed from.
type Input struct {
	Raw       Section
	Plant     Section
	Logistics Section
	Config    Config
}

// Summary is the derived rollup. Every figure is finite.
type Summary struct {
	Config Config `json:"config"`

	Raw           Band `json:"raw"`
	Plant         Band `json:"plant"`
	Manufacturing Band `json:"manufacturing"`
	WithMargin    Band `json:"with_margin"`
	Logistics     Band `json:"logistics"`
	Total         Band `json:"total"`

	// MarginMissing is set when the margin has no finite price-up (margin
	// of 100% or more). WithMargin then holds zeros.
	MarginMissing bool `json:"margin_missing"`
}

// SummaryRow is one named row of the summary table.
type SummaryRow struct {
	Name string `json:"name"`
	Band Band   `json:"band"`
	// Missing marks a row whose value is undefined and shown as zero.
	Missing bool `json:"missing,omitempty"`
}

// Rows returns the four summary rows in display order.
func (s Summary) Rows() []SummaryRow {
	return []SummaryRow{
		{Name: RowManufacturing, Band: s.Manufacturing},
		{Name: RowWithMargin, Band: s.WithMargin, Missing: s.MarginMissing},
		{Name: RowLogistics, Band: s.Logistics},
		{Name: RowTotal, Band: s.Total},
	}
}

// PerShortTon is the total estimated cost per 2,000 lb. A figure too large
// to scale is reported as 0.
func (s Summary) PerShortTon() Band {
	return finiteBand(s.Total.Map(PerShortTon))
}

// Recompute derives the summary from the current inputs. It holds no state
// between calls.
func Recompute(in Input) Summary {
	cfg := in.Config
	if cfg.Mode == "" {
		cfg.Mode = ModeReport
	}
	if cfg.Mode == ModeRow {
		return recomputeRowBands(in, cfg)
	}
	return recomputeReportBands(in, cfg)
}

// recomputeReportBands rolls up Base only, then spreads each figure.
func recomputeReportBands(in Input, cfg Config) Summary {
	raw := AggregateBase(in.Raw)
	plant := AggregateBase(in.Plant)
	logistics := AggregateBase(in.Logistics)

	mfg := finiteOrZero(raw + plant)
	wm, missing := marginOrZero(mfg, cfg.MarginPct)
	total := finiteOrZero(wm + logistics)

	spread := func(v float64) Band { return finiteBand(Spread(v, cfg.ScenarioPct)) }
	return Summary{
		Config:        cfg,
		Raw:           spread(raw),
		Plant:         spread(plant),
		Manufacturing: spread(mfg),
		WithMargin:    spread(wm),
		Logistics:     spread(logistics),
		Total:         spread(total),
		MarginMissing: missing,
	}
}

// recomputeRowBands rolls up the stored row bands, one band at a time.
func recomputeRowBands(in Input, cfg Config) Summary {
	raw := Aggregate(in.Raw)
	plant := Aggregate(in.Plant)
	logistics := Aggregate(in.Logistics)
	mfg := finiteBand(raw.Add(plant))

	var missing bool
	wm := mfg.Map(func(v float64) float64 {
		m, miss := marginOrZero(v, cfg.MarginPct)
		missing = missing || miss
		return m
	})

	return Summary{
		Config:        cfg,
		Raw:           raw,
		Plant:         plant,
		Manufacturing: mfg,
		WithMargin:    wm,
		Logistics:     logistics,
		Total:         finiteBand(wm.Add(logistics)),
		MarginMissing: missing,
	}
}

// marginOrZero reports missing only for a margin with no finite price-up.
// A price-up that overflows is surfaced as 0 without the flag.
func marginOrZero(x, marginPct float64) (float64, bool) {
	if v, ok := WithMargin(x, marginPct).Float64(); ok {
		return v, false
	}
	return 0, !(1-marginPct/100.0 > 0)
}
