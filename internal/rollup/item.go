package rollup

import "fmt"

// SectionKind names one of the three rollup sections.
type SectionKind string

const (
	SectionRaw       SectionKind = "raw"
	SectionPlant     SectionKind = "plant"
	SectionLogistics SectionKind = "logistics"
)

// SectionKinds lists the sections in display order.
var SectionKinds = []SectionKind{SectionRaw, SectionPlant, SectionLogistics}

// ParseSectionKind accepts the canonical section names.
func ParseSectionKind(s string) (SectionKind, error) {
	switch k := SectionKind(s); k {
	case SectionRaw, SectionPlant, SectionLogistics:
		return k, nil
	}
	return "", fmt.Errorf("unknown section %q", s)
}

// Title is the human-readable section heading.
func (k SectionKind) Title() string {
	switch k {
	case SectionRaw:
		return "Raw Materials & Utilities"
	case SectionPlant:
		return "Plant Operation"
	case SectionLogistics:
		return "Logistics & Distribution"
	}
	return string(k)
}

// Shape selects how a section's rows resolve their Base $/lb.
type Shape int

const (
	// ShapePriceCF rows derive $/lb from unit price × conversion factor.
	ShapePriceCF Shape = iota
	// ShapeDirect rows carry a $/lb value directly.
	ShapeDirect
)

func (s Shape) String() string {
	if s == ShapePriceCF {
		return "price_cf"
	}
	return "direct"
}

// ParseShape accepts "price_cf" or "direct".
func ParseShape(s string) (Shape, error) {
	switch s {
	case "price_cf":
		return ShapePriceCF, nil
	case "direct":
		return ShapeDirect, nil
	}
	return ShapeDirect, fmt.Errorf("unknown section shape %q", s)
}

func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Shape) UnmarshalText(text []byte) error {
	v, err := ParseShape(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// LineItem is one row of a section table. All $ figures are per lb of
// finished product unless noted.
type LineItem struct {
	ID       string `json:"id" yaml:"id"`
	Category string `json:"category" yaml:"category"`
	Item     string `json:"item" yaml:"item"`

	// UnitPrice is $ per purchased unit.
	UnitPrice Num `json:"unit_price" yaml:"unit_price"`
	// CFUnit labels the purchased unit; display only.
	CFUnit string `json:"cf_unit" yaml:"cf_unit"`
	// ConversionFactor is purchased units per lb of finished product.
	ConversionFactor Num `json:"conversion_factor" yaml:"conversion_factor"`
	OverrideValue    Num `json:"override" yaml:"override"`
	DirectValue      Num `json:"direct_value" yaml:"direct_value"`

	Low  Num `json:"low" yaml:"low"`
	Base Num `json:"base" yaml:"base"`
	High Num `json:"high" yaml:"high"`

	SourceTag     string `json:"source_tag" yaml:"source_tag"`
	SourceNotes   string `json:"source_notes" yaml:"source_notes"`
	AttachmentRef string `json:"attachment_ref" yaml:"attachment_ref"`
}

// Section is an ordered list of line items sharing one resolution shape.
type Section struct {
	Kind  SectionKind `json:"kind"`
	Shape Shape       `json:"shape"`
	Rows  []LineItem  `json:"rows"`
}

// NewSection returns an empty section with the shape the kind uses by
// default: price/CF for raw materials, direct for the others.
func NewSection(kind SectionKind) Section {
	shape := ShapeDirect
	if kind == SectionRaw {
		shape = ShapePriceCF
	}
	return Section{Kind: kind, Shape: shape, Rows: make([]LineItem, 0)}
}
