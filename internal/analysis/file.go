package analysis

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Simplici0/shouldcost/internal/rollup"
)

// File is the YAML document form of an analysis used by the CLI.
type File struct {
	Meta       Meta              `yaml:"meta"`
	Config     rollup.Config     `yaml:"config"`
	PlantShape string            `yaml:"plant_shape,omitempty"`
	Raw        []rollup.LineItem `yaml:"raw"`
	Plant      []rollup.LineItem `yaml:"plant"`
	Logistics  []rollup.LineItem `yaml:"logistics"`
}

// Decode reads a YAML analysis document. Missing config keys take the
// defaults; rows without an id get one.
func Decode(r io.Reader) (*Analysis, error) {
	f := File{Config: rollup.DefaultConfig()}
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode analysis yaml: %w", err)
	}

	mode, err := rollup.ParseBandMode(string(f.Config.Mode))
	if err != nil {
		return nil, err
	}
	f.Config.Mode = mode

	a := New(uuid.NewString(), Defaults{Config: f.Config, SourceTag: DefaultSourceTag})
	if f.Meta.Date != "" {
		a.Meta.Date = f.Meta.Date
	}
	a.Meta.Product = f.Meta.Product

	if f.PlantShape != "" {
		shape, err := rollup.ParseShape(f.PlantShape)
		if err != nil {
			return nil, err
		}
		a.Plant.Shape = shape
	}

	a.Raw.Rows = withIDs(f.Raw)
	a.Plant.Rows = withIDs(f.Plant)
	a.Logistics.Rows = withIDs(f.Logistics)
	return a, nil
}

// Encode writes a as a YAML analysis document.
func Encode(w io.Writer, a *Analysis) error {
	f := File{
		Meta:      a.Meta,
		Config:    a.Config,
		Raw:       a.Raw.Rows,
		Plant:     a.Plant.Rows,
		Logistics: a.Logistics.Rows,
	}
	if a.Plant.Shape != rollup.ShapeDirect {
		f.PlantShape = a.Plant.Shape.String()
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode analysis yaml: %w", err)
	}
	return enc.Close()
}

func withIDs(rows []rollup.LineItem) []rollup.LineItem {
	out := make([]rollup.LineItem, len(rows))
	for i, row := range rows {
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		out[i] = row
	}
	return out
}
