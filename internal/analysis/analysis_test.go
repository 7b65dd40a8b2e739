package analysis

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/shouldcost/internal/rollup"
	"github.com/Simplici0/shouldcost/internal/testutil"
)

func TestNew_SeedsDefaultRows(t *testing.T) {
	a := New("s1", BuiltinDefaults())

	assert.Empty(t, a.Raw.Rows)
	require.Len(t, a.Plant.Rows, 3)
	require.Len(t, a.Logistics.Rows, 4)
	assert.Equal(t, "Conversion costs", a.Plant.Rows[0].Item)
	assert.Equal(t, "Handling & Storage", a.Logistics.Rows[3].Item)
	assert.Equal(t, DefaultSourceTag, a.Logistics.Rows[0].SourceTag)
	assert.Equal(t, rollup.ModeReport, a.Config.Mode)
	assert.Equal(t, 25.0, a.Config.MarginPct)

	for _, row := range a.Summary().Rows() {
		assert.Equal(t, rollup.Flat(0), row.Band, row.Name)
	}
}

func TestAddRow_AppliesDefaults(t *testing.T) {
	a := New("s1", BuiltinDefaults())

	row, err := a.AddRow(rollup.SectionRaw)
	require.NoError(t, err)

	assert.NotEmpty(t, row.ID)
	assert.Equal(t, DefaultCategory, row.Category)
	assert.Equal(t, DefaultCFUnit, row.CFUnit)
	assert.True(t, row.UnitPrice.IsMissing())
	assert.Len(t, a.Raw.Rows, 1)
}

func TestAddRow_UnknownSection(t *testing.T) {
	a := New("s1", BuiltinDefaults())
	_, err := a.AddRow("freight")
	assert.True(t, errors.Is(err, ErrUnknownSection))
}

func TestEditField_RecomputesOnNextRead(t *testing.T) {
	a := New("s1", BuiltinDefaults())
	a.Reset()
	a.SetConfig(rollup.Config{MarginPct: 25, ScenarioPct: 10, Mode: rollup.ModeReport})

	raw, _ := a.AddRow(rollup.SectionRaw)
	plant, _ := a.AddRow(rollup.SectionPlant)
	logi, _ := a.AddRow(rollup.SectionLogistics)

	require.NoError(t, a.EditField(rollup.SectionRaw, raw.ID, FieldUnitPrice, "2.00"))
	require.NoError(t, a.EditField(rollup.SectionRaw, raw.ID, FieldConversionFactor, 0.5))
	require.NoError(t, a.EditField(rollup.SectionPlant, plant.ID, FieldDirectValue, 0.30))
	require.NoError(t, a.EditField(rollup.SectionLogistics, logi.ID, FieldDirectValue, "0.20"))

	s := a.Summary()
	assert.InDelta(t, 1.30, s.Manufacturing.Base, 1e-9)
	assert.InDelta(t, 1.30/0.75+0.20, s.Total.Base, 1e-9)
	assert.InDelta(t, 1.74, s.Total.Low, 1e-6)

	require.NoError(t, a.EditField(rollup.SectionRaw, raw.ID, FieldOverride, 5))
	assert.InDelta(t, 5.30, a.Summary().Manufacturing.Base, 1e-9)

	rows, err := a.Rows(rollup.SectionRaw)
	require.NoError(t, err)
	assert.Equal(t, rollup.RuleOverride, rows[0].Resolved.Rule)
	assert.Equal(t, rollup.Of(1), rows[0].Resolved.Suggested)
}

func TestEditField_JunkNumericClearsValue(t *testing.T) {
	a := New("s1", BuiltinDefaults())
	id := a.Plant.Rows[0].ID

	require.NoError(t, a.EditField(rollup.SectionPlant, id, FieldDirectValue, 1.5))
	require.NoError(t, a.EditField(rollup.SectionPlant, id, FieldDirectValue, "n/a"))

	row, err := a.Row(rollup.SectionPlant, id)
	require.NoError(t, err)
	assert.True(t, row.DirectValue.IsMissing())
}

func TestEditField_TextAndErrors(t *testing.T) {
	a := New("s1", BuiltinDefaults())
	id := a.Plant.Rows[0].ID

	require.NoError(t, a.EditField(rollup.SectionPlant, id, "Source_Notes", "quote from vendor"))
	require.NoError(t, a.EditField(rollup.SectionPlant, id, FieldAttachmentRef, "quote.pdf"))
	row, _ := a.Row(rollup.SectionPlant, id)
	assert.Equal(t, "quote from vendor", row.SourceNotes)
	assert.Equal(t, "quote.pdf", row.AttachmentRef)

	assert.True(t, errors.Is(a.EditField(rollup.SectionPlant, id, "colour", "red"), ErrUnknownField))
	assert.True(t, errors.Is(a.EditField(rollup.SectionPlant, "missing", FieldItem, "x"), ErrRowNotFound))
}

func TestDeleteRows_RemovesExactlyThoseRows(t *testing.T) {
	a := New("s1", BuiltinDefaults())
	first, second := a.Logistics.Rows[0].ID, a.Logistics.Rows[2].ID
	require.NoError(t, a.EditField(rollup.SectionLogistics, first, FieldDirectValue, 0.1))
	require.NoError(t, a.EditField(rollup.SectionLogistics, a.Logistics.Rows[1].ID, FieldDirectValue, 0.2))
	before := a.Summary().Logistics.Base

	n, err := a.DeleteRows(rollup.SectionLogistics, first, second, "nope")
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Len(t, a.Logistics.Rows, 2)
	assert.InDelta(t, before-0.1, a.Summary().Logistics.Base, 1e-9)
	_, err = a.Row(rollup.SectionLogistics, first)
	assert.True(t, errors.Is(err, ErrRowNotFound))
}

func TestApplyScenarios_RequiresRowMode(t *testing.T) {
	a := New("s1", BuiltinDefaults())
	_, err := a.ApplyScenarios()
	assert.True(t, errors.Is(err, ErrNotRowMode))

	a.SetConfig(rollup.Config{MarginPct: 0, ScenarioPct: 10, Mode: rollup.ModeRow})
	require.NoError(t, a.EditField(rollup.SectionPlant, a.Plant.Rows[0].ID, FieldDirectValue, 1))

	n, err := a.ApplyScenarios()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s := a.Summary()
	assert.InDelta(t, 0.9, s.Total.Low, 1e-9)
	assert.InDelta(t, 1.1, s.Total.High, 1e-9)

	// Manual edits persist until the action runs again.
	require.NoError(t, a.EditField(rollup.SectionPlant, a.Plant.Rows[0].ID, FieldHigh, 2))
	assert.InDelta(t, 2, a.Summary().Total.High, 1e-9)
}

func TestSetShape_PlantInPriceCFMode(t *testing.T) {
	a := New("s1", BuiltinDefaults())
	id := a.Plant.Rows[0].ID
	require.NoError(t, a.SetShape(rollup.SectionPlant, rollup.ShapePriceCF))
	require.NoError(t, a.EditField(rollup.SectionPlant, id, FieldUnitPrice, 4))
	require.NoError(t, a.EditField(rollup.SectionPlant, id, FieldConversionFactor, 0.25))

	assert.InDelta(t, 1, a.Summary().Plant.Base, 1e-9)
}

func TestSetShape_OnlyPlantSwitches(t *testing.T) {
	a := New("s1", BuiltinDefaults())

	assert.ErrorIs(t, a.SetShape(rollup.SectionRaw, rollup.ShapeDirect), ErrFixedShape)
	assert.ErrorIs(t, a.SetShape(rollup.SectionLogistics, rollup.ShapePriceCF), ErrFixedShape)
	assert.Equal(t, rollup.ShapePriceCF, a.Raw.Shape)
	assert.Equal(t, rollup.ShapeDirect, a.Logistics.Shape)

	require.NoError(t, a.SetShape(rollup.SectionRaw, rollup.ShapePriceCF))
	require.NoError(t, a.SetShape(rollup.SectionPlant, rollup.ShapePriceCF))
	require.NoError(t, a.SetShape(rollup.SectionPlant, rollup.ShapeDirect))
}

func TestReset_EmptiesAllSections(t *testing.T) {
	a := New("s1", BuiltinDefaults())
	a.Reset()
	assert.Empty(t, a.Raw.Rows)
	assert.Empty(t, a.Plant.Rows)
	assert.Empty(t, a.Logistics.Rows)
}

func TestDecodeEncode(t *testing.T) {
	doc := `
meta:
  product: Sodium Bicarbonate
  analysis_date: "2026-01-15"
config:
  margin_pct: 25
  scenario_pct: 10
raw:
  - item: Soda ash
    unit_price: 2.00
    conversion_factor: 0.5
plant:
  - item: Conversion
    direct_value: 0.30
logistics:
  - item: Freight
    direct_value: "0.20"
    base: oops
`
	a, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "Sodium Bicarbonate", a.Meta.Product)
	assert.Equal(t, rollup.ModeReport, a.Config.Mode)
	require.Len(t, a.Raw.Rows, 1)
	assert.NotEmpty(t, a.Raw.Rows[0].ID)
	assert.InDelta(t, 1.30/0.75+0.20, a.Summary().Total.Base, 1e-9)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, a))
	again, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, a.Summary(), again.Summary())
	assert.Equal(t, a.Raw.Rows[0].ID, again.Raw.Rows[0].ID)
}

func TestDecode_RejectsUnknownMode(t *testing.T) {
	_, err := Decode(strings.NewReader("config:\n  mode: diagonal\n"))
	assert.Error(t, err)
}

type failingSource struct{}

func (failingSource) Defaults() (Defaults, error) { return Defaults{}, errors.New("catalog down") }

func TestStore_DoCreatesAndReusesSessions(t *testing.T) {
	st := NewStore(failingSource{}, 0, testutil.NewTestLogger(t))

	var firstID string
	require.NoError(t, st.Do("a", func(a *Analysis) error {
		row, err := a.AddRow(rollup.SectionRaw)
		firstID = row.ID
		return err
	}))
	require.NoError(t, st.Do("a", func(a *Analysis) error {
		_, err := a.Row(rollup.SectionRaw, firstID)
		assert.Len(t, a.Plant.Rows, 3)
		return err
	}))
	require.NoError(t, st.Do("b", func(a *Analysis) error {
		assert.Empty(t, a.Raw.Rows)
		return nil
	}))
	assert.Equal(t, 2, st.Len())

	st.Delete("a")
	assert.Equal(t, 1, st.Len())
}

func TestStore_SerialisesSameSession(t *testing.T) {
	st := NewStore(nil, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.Do("shared", func(a *Analysis) error {
				_, err := a.AddRow(rollup.SectionRaw)
				return err
			})
		}()
	}
	wg.Wait()

	require.NoError(t, st.Do("shared", func(a *Analysis) error {
		assert.Len(t, a.Raw.Rows, 50)
		return nil
	}))
}

func TestStore_PrunesIdleSessions(t *testing.T) {
	st := NewStore(nil, time.Minute, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	require.NoError(t, st.Do("old", func(*Analysis) error { return nil }))
	now = now.Add(2 * time.Minute)
	require.NoError(t, st.Do("new", func(*Analysis) error { return nil }))

	assert.Equal(t, 1, st.Len())
}

func TestEditFields_AllOrNothing(t *testing.T) {
	a := New("s1", BuiltinDefaults())
	id := a.Plant.Rows[0].ID

	err := a.EditFields(rollup.SectionPlant, id, map[string]any{
		FieldDirectValue: "0.4",
		"colour":         "red",
	})
	require.ErrorIs(t, err, ErrUnknownField)
	row, _ := a.Row(rollup.SectionPlant, id)
	assert.True(t, row.DirectValue.IsMissing())

	require.NoError(t, a.EditFields(rollup.SectionPlant, id, map[string]any{
		FieldDirectValue: "0.4",
		FieldSourceNotes: "budget quote",
	}))
	row, _ = a.Row(rollup.SectionPlant, id)
	assert.Equal(t, rollup.Of(0.4), row.DirectValue)
	assert.Equal(t, "budget quote", row.SourceNotes)
}
