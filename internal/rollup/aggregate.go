package rollup

import "math"

// Band is a Low/Base/High triple in $/lb.
type Band struct {
	Low  float64 `json:"low"`
	Base float64 `json:"base"`
	High float64 `json:"high"`
}

// Flat returns a band whose three values are all v.
func Flat(v float64) Band {
	return Band{Low: v, Base: v, High: v}
}

// Add sums two bands column by column.
func (b Band) Add(o Band) Band {
	return Band{Low: b.Low + o.Low, Base: b.Base + o.Base, High: b.High + o.High}
}

// Map applies f to each column.
func (b Band) Map(f func(float64) float64) Band {
	return Band{Low: f(b.Low), Base: f(b.Base), High: f(b.High)}
}

// Aggregate sums the resolved Low, Base and High of every row in s.
// Bands are summed independently and never clamped against each other.
// A sum that overflows is reported as 0.
func Aggregate(s Section) Band {
	var total Band
	for _, row := range s.Rows {
		res := Resolve(row, s.Shape)
		total.Low += finiteOrZero(res.Low)
		total.Base += finiteOrZero(res.Base)
		total.High += finiteOrZero(res.High)
	}
	return finiteBand(total)
}

// AggregateBase sums only the effective Base of every row, for report-level
// banding where row Low/High are not consulted.
func AggregateBase(s Section) float64 {
	var total float64
	for _, row := range s.Rows {
		total += finiteOrZero(Resolve(row, s.Shape).Base)
	}
	return finiteOrZero(total)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func finiteBand(b Band) Band {
	return b.Map(finiteOrZero)
}
