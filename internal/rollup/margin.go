package rollup

// WithMargin prices x up to a gross margin: x / (1 − marginPct/100).
// A margin of 100% or more has no finite price and yields Missing.
func WithMargin(x, marginPct float64) Num {
	denom := 1 - marginPct/100.0
	if !(denom > 0) {
		return Missing
	}
	return Of(x / denom)
}
