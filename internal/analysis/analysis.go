// Package analysis holds the mutable state of one should-cost session and
// the operations the UI layer drives it with. Derived figures are always
// recomputed from the current rows via the rollup package.
package analysis

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/shouldcost/internal/rollup"
)

var (
	ErrUnknownSection = errors.New("unknown section")
	ErrRowNotFound    = errors.New("row not found")
	ErrUnknownField   = errors.New("unknown field")
	ErrNotRowMode     = errors.New("scenarios can only be applied in row band mode")
	ErrFixedShape     = errors.New("section shape cannot be changed")
)

const (
	// DateLayout is the analysis date format.
	DateLayout = "2006-01-02"

	DefaultSourceTag = "Manual Quote"
	DefaultCFUnit    = "lb"
	DefaultCategory  = "Primary"
)

// Meta is carried for display and export only.
type Meta struct {
	Product string `json:"product" yaml:"product"`
	Date    string `json:"analysis_date" yaml:"analysis_date"`
}

// Defaults seeds new analyses and new rows.
type Defaults struct {
	Config rollup.Config
	// Rows are the item labels pre-populated per section.
	Rows map[rollup.SectionKind][]string
	// Categories holds the default category for new rows per section.
	Categories map[rollup.SectionKind]string
	SourceTag  string
}

// BuiltinDefaults mirrors the catalog seed and is used when no catalog is
// available.
func BuiltinDefaults() Defaults {
	return Defaults{
		Config: rollup.DefaultConfig(),
		Rows: map[rollup.SectionKind][]string{
			rollup.SectionPlant:     {"Conversion costs", "Maintenance & Ops", "Overhead/Dep/Insurance"},
			rollup.SectionLogistics: {"Transportation", "Fuel Surcharge", "Packaging", "Handling & Storage"},
		},
		Categories: map[rollup.SectionKind]string{
			rollup.SectionRaw: DefaultCategory,
		},
		SourceTag: DefaultSourceTag,
	}
}

// Analysis is one session's working state.
type Analysis struct {
	ID        string         `json:"id"`
	Meta      Meta           `json:"meta"`
	Raw       rollup.Section `json:"raw"`
	Plant     rollup.Section `json:"plant"`
	Logistics rollup.Section `json:"logistics"`
	Config    rollup.Config  `json:"config"`

	defaults Defaults
}

// New creates an analysis with the default rows and configuration.
func New(id string, d Defaults) *Analysis {
	a := &Analysis{
		ID:        id,
		Meta:      Meta{Date: time.Now().Format(DateLayout)},
		Raw:       rollup.NewSection(rollup.SectionRaw),
		Plant:     rollup.NewSection(rollup.SectionPlant),
		Logistics: rollup.NewSection(rollup.SectionLogistics),
		Config:    d.Config,
		defaults:  d,
	}
	if a.Config.Mode == "" {
		a.Config.Mode = rollup.ModeReport
	}
	for _, kind := range rollup.SectionKinds {
		sec, _ := a.Section(kind)
		for _, label := range d.Rows[kind] {
			row := a.newRow(kind)
			row.Item = label
			sec.Rows = append(sec.Rows, row)
		}
	}
	return a
}

// Section returns a pointer to the section of the given kind.
func (a *Analysis) Section(kind rollup.SectionKind) (*rollup.Section, error) {
	switch kind {
	case rollup.SectionRaw:
		return &a.Raw, nil
	case rollup.SectionPlant:
		return &a.Plant, nil
	case rollup.SectionLogistics:
		return &a.Logistics, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSection, kind)
}

func (a *Analysis) newRow(kind rollup.SectionKind) rollup.LineItem {
	tag := a.defaults.SourceTag
	if tag == "" {
		tag = DefaultSourceTag
	}
	row := rollup.LineItem{
		ID:        uuid.NewString(),
		Category:  a.defaults.Categories[kind],
		SourceTag: tag,
	}
	if kind == rollup.SectionRaw {
		row.CFUnit = DefaultCFUnit
	}
	return row
}

// AddRow appends a blank row with defaults to the section and returns it.
func (a *Analysis) AddRow(kind rollup.SectionKind) (rollup.LineItem, error) {
	sec, err := a.Section(kind)
	if err != nil {
		return rollup.LineItem{}, err
	}
	row := a.newRow(kind)
	sec.Rows = append(sec.Rows, row)
	return row, nil
}

// DeleteRows removes the rows with the given ids and reports how many were
// removed. Unknown ids are ignored.
func (a *Analysis) DeleteRows(kind rollup.SectionKind, ids ...string) (int, error) {
	sec, err := a.Section(kind)
	if err != nil {
		return 0, err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := sec.Rows[:0]
	for _, row := range sec.Rows {
		if _, ok := drop[row.ID]; ok {
			continue
		}
		kept = append(kept, row)
	}
	removed := len(sec.Rows) - len(kept)
	clear(sec.Rows[len(kept):])
	sec.Rows = kept
	return removed, nil
}

// Row returns a copy of the row with the given id.
func (a *Analysis) Row(kind rollup.SectionKind, id string) (rollup.LineItem, error) {
	sec, err := a.Section(kind)
	if err != nil {
		return rollup.LineItem{}, err
	}
	i := indexOf(sec, id)
	if i < 0 {
		return rollup.LineItem{}, fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	return sec.Rows[i], nil
}

// EditField sets one field of a row. Numeric fields accept any value and
// coerce it; a value that is not a number clears the field.
func (a *Analysis) EditField(kind rollup.SectionKind, id, field string, value any) error {
	sec, err := a.Section(kind)
	if err != nil {
		return err
	}
	i := indexOf(sec, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	return setField(&sec.Rows[i], field, value)
}

// EditFields applies several field edits to one row. Either every field is
// known and all are applied, or none are.
func (a *Analysis) EditFields(kind rollup.SectionKind, id string, values map[string]any) error {
	sec, err := a.Section(kind)
	if err != nil {
		return err
	}
	i := indexOf(sec, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}

	fields := make([]string, 0, len(values))
	for field := range values {
		if !KnownField(field) {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		if err := setField(&sec.Rows[i], field, values[field]); err != nil {
			return err
		}
	}
	return nil
}

// SetShape switches how a section's rows resolve. Plant operation may run in
// either shape; raw materials and logistics keep theirs.
func (a *Analysis) SetShape(kind rollup.SectionKind, shape rollup.Shape) error {
	sec, err := a.Section(kind)
	if err != nil {
		return err
	}
	if kind != rollup.SectionPlant && shape != sec.Shape {
		return fmt.Errorf("%w: %s is always %s", ErrFixedShape, kind, sec.Shape)
	}
	sec.Shape = shape
	return nil
}

// SetConfig replaces margin, scenario and band mode.
func (a *Analysis) SetConfig(cfg rollup.Config) {
	if cfg.Mode == "" {
		cfg.Mode = rollup.ModeReport
	}
	a.Config = cfg
}

// SetMeta replaces product name and date.
func (a *Analysis) SetMeta(m Meta) {
	a.Meta = m
}

// ApplyScenarios writes scenario bands onto every row. Only valid in row
// band mode; report mode bands at summary level on every read.
func (a *Analysis) ApplyScenarios() (int, error) {
	if a.Config.Mode != rollup.ModeRow {
		return 0, ErrNotRowMode
	}
	updated := 0
	for _, sec := range []*rollup.Section{&a.Raw, &a.Plant, &a.Logistics} {
		updated += rollup.ApplyRowScenarios(sec, a.Config.ScenarioPct)
	}
	return updated, nil
}

// Reset empties all three sections.
func (a *Analysis) Reset() {
	a.Raw.Rows = make([]rollup.LineItem, 0)
	a.Plant.Rows = make([]rollup.LineItem, 0)
	a.Logistics.Rows = make([]rollup.LineItem, 0)
}

// Input is the rollup snapshot of the current state.
func (a *Analysis) Input() rollup.Input {
	return rollup.Input{
		Raw:       a.Raw,
		Plant:     a.Plant,
		Logistics: a.Logistics,
		Config:    a.Config,
	}
}

// Summary recomputes the rollup from the current rows.
func (a *Analysis) Summary() rollup.Summary {
	return rollup.Recompute(a.Input())
}

// ResolvedRow pairs a row with its derived values.
type ResolvedRow struct {
	rollup.LineItem
	Resolved rollup.Resolution `json:"resolved"`
}

// Rows returns the section's rows with freshly resolved values.
func (a *Analysis) Rows(kind rollup.SectionKind) ([]ResolvedRow, error) {
	sec, err := a.Section(kind)
	if err != nil {
		return nil, err
	}
	res := rollup.ResolveSection(*sec)
	out := make([]ResolvedRow, len(sec.Rows))
	for i, row := range sec.Rows {
		out[i] = ResolvedRow{LineItem: row, Resolved: res[i]}
	}
	return out, nil
}

func indexOf(sec *rollup.Section, id string) int {
	for i := range sec.Rows {
		if sec.Rows[i].ID == id {
			return i
		}
	}
	return -1
}
