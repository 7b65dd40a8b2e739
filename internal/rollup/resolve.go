package rollup

// Rule names the input that supplied a row's effective Base value.
type Rule string

const (
	RuleBase      Rule = "base"
	RuleOverride  Rule = "override"
	RuleSuggested Rule = "suggested"
	RuleDirect    Rule = "direct"
	RuleDefault   Rule = "default"
)

// Resolution holds the derived values for one line item. It is recomputed
// from the row's inputs on every read and never stored on the row.
type Resolution struct {
	Suggested Num     `json:"suggested"`
	Base      float64 `json:"base"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	Rule      Rule    `json:"rule"`
}

// Suggested returns price × conversion factor, or Missing when either
// operand is missing.
func Suggested(price, cf Num) Num {
	p, ok := price.Float64()
	if !ok {
		return Missing
	}
	c, ok := cf.Float64()
	if !ok {
		return Missing
	}
	return Of(p * c)
}

// Resolve computes a row's suggested and effective Low/Base/High values.
//
// Price/CF rows take the first of: base, non-zero override, suggested, 0.
// Direct rows take the first of: base, direct value, 0. Low and High fall
// back to the effective Base when the row leaves them empty.
func Resolve(item LineItem, shape Shape) Resolution {
	var res Resolution
	if shape == ShapePriceCF {
		res.Suggested = Suggested(item.UnitPrice, item.ConversionFactor)
		res.Base, res.Rule = resolvePriceCF(item, res.Suggested)
	} else {
		res.Suggested = Missing
		res.Base, res.Rule = resolveDirect(item)
	}
	res.Low = item.Low.Or(res.Base)
	res.High = item.High.Or(res.Base)
	return res
}

func resolvePriceCF(item LineItem, suggested Num) (float64, Rule) {
	if b, ok := item.Base.Float64(); ok {
		return b, RuleBase
	}
	// A zero override means "not set"; freeze a deliberate zero into Base.
	if o, ok := item.OverrideValue.Float64(); ok && o != 0 {
		return o, RuleOverride
	}
	if s, ok := suggested.Float64(); ok {
		return s, RuleSuggested
	}
	return 0, RuleDefault
}

func resolveDirect(item LineItem) (float64, Rule) {
	if b, ok := item.Base.Float64(); ok {
		return b, RuleBase
	}
	if v, ok := item.DirectValue.Float64(); ok {
		return v, RuleDirect
	}
	return 0, RuleDefault
}

// ResolveSection resolves every row of s in order.
func ResolveSection(s Section) []Resolution {
	out := make([]Resolution, len(s.Rows))
	for i, row := range s.Rows {
		out[i] = Resolve(row, s.Shape)
	}
	return out
}
