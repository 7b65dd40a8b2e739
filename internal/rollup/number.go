package rollup

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// missingPlaceholder is what a Missing value renders as.
const missingPlaceholder = "—"

// Num is a finite float64 or Missing. The zero value is Missing.
type Num struct {
	v  float64
	ok bool
}

// Missing is the absent value.
var Missing = Num{}

// Of wraps a float64. NaN and infinities become Missing.
func Of(v float64) Num {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	return Num{v: v, ok: true}
}

// ToNumber converts an arbitrary input value to a Num. It never fails:
// anything that is not a finite number yields Missing.
func ToNumber(v any) Num {
	switch x := v.(type) {
	case nil:
		return Missing
	case Num:
		return x
	case *Num:
		if x == nil {
			return Missing
		}
		return *x
	case float64:
		return Of(x)
	case *float64:
		if x == nil {
			return Missing
		}
		return Of(*x)
	case float32:
		return Of(float64(x))
	case int:
		return Of(float64(x))
	case int8:
		return Of(float64(x))
	case int16:
		return Of(float64(x))
	case int32:
		return Of(float64(x))
	case int64:
		return Of(float64(x))
	case uint:
		return Of(float64(x))
	case uint8:
		return Of(float64(x))
	case uint16:
		return Of(float64(x))
	case uint32:
		return Of(float64(x))
	case uint64:
		return Of(float64(x))
	case json.Number:
		return parseNumber(string(x))
	case string:
		return parseNumber(x)
	default:
		return Missing
	}
}

func parseNumber(s string) Num {
	s = strings.TrimSpace(s)
	if s == "" {
		return Missing
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Missing
	}
	return Of(f)
}

// IsMissing reports whether n holds no value.
func IsMissing(n Num) bool {
	return !n.ok
}

// IsMissing reports whether n holds no value.
func (n Num) IsMissing() bool {
	return !n.ok
}

// Float64 returns the value and whether it is present.
func (n Num) Float64() (float64, bool) {
	return n.v, n.ok
}

// Or returns the value, or def when n is Missing.
func (n Num) Or(def float64) float64 {
	if !n.ok {
		return def
	}
	return n.v
}

func (n Num) String() string {
	if !n.ok {
		return missingPlaceholder
	}
	return strconv.FormatFloat(n.v, 'f', -1, 64)
}

// MarshalJSON renders Missing as null.
func (n Num) MarshalJSON() ([]byte, error) {
	if !n.ok {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.v, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null. Anything else
// decodes to Missing rather than failing the whole document.
func (n *Num) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		*n = Missing
		return nil
	}
	*n = ToNumber(raw)
	return nil
}

// MarshalYAML renders Missing as null.
func (n Num) MarshalYAML() (any, error) {
	if !n.ok {
		return nil, nil
	}
	return n.v, nil
}

// UnmarshalYAML follows the same rules as UnmarshalJSON.
func (n *Num) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode || value.Tag == "!!null" {
		*n = Missing
		return nil
	}
	*n = parseNumber(value.Value)
	return nil
}

// FormatCurrency renders n as a 4-decimal dollar amount with thousands
// separators and a leading "-" for negatives, or an em-dash when n is
// Missing.
func FormatCurrency(n Num) string {
	if !n.ok {
		return missingPlaceholder
	}
	digits := strconv.FormatFloat(math.Abs(n.v), 'f', 4, 64)
	whole, frac, _ := strings.Cut(digits, ".")
	grouped := whole
	if b, ok := new(big.Int).SetString(whole, 10); ok {
		grouped = humanize.BigComma(b)
	}
	sign := ""
	if n.v < 0 && strings.Trim(digits, "0.") != "" {
		sign = "-"
	}
	return sign + "$" + grouped + "." + frac
}

// FormatPerLb is FormatCurrency with a "/ lb" suffix.
func FormatPerLb(n Num) string {
	return FormatCurrency(n) + " / lb"
}

// PerShortTon converts a $/lb figure to $ per short ton (2,000 lb).
func PerShortTon(perLb float64) float64 {
	return perLb * LbPerShortTon
}

// LbPerShortTon is the number of pounds in a short ton.
const LbPerShortTon = 2000
