package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/shouldcost/internal/db"
	"github.com/Simplici0/shouldcost/internal/migrations"
	"github.com/Simplici0/shouldcost/internal/rollup"
	"github.com/Simplici0/shouldcost/internal/seed"
)

func newTestStore(t *testing.T, seeded bool) *Store {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "catalog-test.db"))
	require.NoError(t, err, "open sqlite database")
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, migrations.Up(database), "run migrations")
	if seeded {
		_, err := seed.Run(database)
		require.NoError(t, err, "seed catalog")
	}
	return New(database)
}

func TestDefaults_FromSeed(t *testing.T) {
	st := newTestStore(t, true)

	d, err := st.Defaults()
	require.NoError(t, err)

	assert.Equal(t, rollup.DefaultConfig(), d.Config)
	assert.Equal(t, []string{"Conversion costs", "Maintenance & Ops", "Overhead/Dep/Insurance"}, d.Rows[rollup.SectionPlant])
	assert.Equal(t, []string{"Transportation", "Fuel Surcharge", "Packaging", "Handling & Storage"}, d.Rows[rollup.SectionLogistics])
	assert.Empty(t, d.Rows[rollup.SectionRaw])
	assert.Equal(t, "Primary", d.Categories[rollup.SectionRaw])
	assert.Equal(t, "Conversion", d.Categories[rollup.SectionPlant])
	assert.Equal(t, "Manual Quote", d.SourceTag)
}

func TestScenarioDefaults_EmptyCatalogFallsBack(t *testing.T) {
	st := newTestStore(t, false)

	cfg, err := st.ScenarioDefaults()
	require.NoError(t, err)
	assert.Equal(t, rollup.DefaultConfig(), cfg)
}

func TestUpdateScenarioDefaults(t *testing.T) {
	st := newTestStore(t, true)

	want := rollup.Config{MarginPct: 30, ScenarioPct: 15, Mode: rollup.ModeRow}
	require.NoError(t, st.UpdateScenarioDefaults(want))

	got, err := st.ScenarioDefaults()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCategories_DefaultFlagIsExclusive(t *testing.T) {
	st := newTestStore(t, true)

	id, err := st.CreateCategory(Category{Section: rollup.SectionRaw, Name: "Catalyst", IsDefault: true, Active: true})
	require.NoError(t, err)
	assert.Positive(t, id)

	categories, err := st.ListCategories()
	require.NoError(t, err)
	defaults := 0
	for _, c := range categories {
		if c.Section == rollup.SectionRaw && c.IsDefault {
			defaults++
			assert.Equal(t, "Catalyst", c.Name)
		}
	}
	assert.Equal(t, 1, defaults)

	d, err := st.Defaults()
	require.NoError(t, err)
	assert.Equal(t, "Catalyst", d.Categories[rollup.SectionRaw])
}

func TestUpdateCategory(t *testing.T) {
	st := newTestStore(t, true)

	id, err := st.CreateCategory(Category{Section: rollup.SectionPlant, Name: "Energy", Active: true})
	require.NoError(t, err)

	require.NoError(t, st.UpdateCategory(Category{ID: id, Section: rollup.SectionPlant, Name: "Utilities", Active: false}))

	categories, err := st.ListCategories()
	require.NoError(t, err)
	var found *Category
	for i := range categories {
		if categories[i].ID == id {
			found = &categories[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "Utilities", found.Name)
	assert.False(t, found.Active)

	_, err = st.CreateCategory(Category{Section: rollup.SectionPlant, Name: "Utilities", Active: true})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = st.UpdateCategory(Category{ID: 9999, Section: rollup.SectionPlant, Name: "Ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDefaultRows_InactiveRowsAreSkipped(t *testing.T) {
	st := newTestStore(t, true)

	id, err := st.CreateDefaultRow(DefaultRow{Section: rollup.SectionRaw, Item: "Soda ash", Position: 0, Active: true})
	require.NoError(t, err)

	d, err := st.Defaults()
	require.NoError(t, err)
	assert.Equal(t, []string{"Soda ash"}, d.Rows[rollup.SectionRaw])

	require.NoError(t, st.UpdateDefaultRow(DefaultRow{ID: id, Section: rollup.SectionRaw, Item: "Soda ash", Active: false}))
	d, err = st.Defaults()
	require.NoError(t, err)
	assert.Empty(t, d.Rows[rollup.SectionRaw])

	assert.ErrorIs(t, st.UpdateDefaultRow(DefaultRow{ID: 9999, Section: rollup.SectionRaw, Item: "x"}), ErrNotFound)
}

func TestListSourceTags_Ordered(t *testing.T) {
	st := newTestStore(t, true)

	tags, err := st.ListSourceTags()
	require.NoError(t, err)

	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	assert.Equal(t, []string{"Manual Quote", "External Index", "Filing", "Other"}, names)
}

func TestScenarioDefaults_SchemaRejectsUnknownMode(t *testing.T) {
	st := newTestStore(t, true)

	_, err := st.db.Exec(`UPDATE scenario_defaults SET band_mode = 'diagonal' WHERE id = 1`)
	assert.Error(t, err)

	cfg, err := st.ScenarioDefaults()
	require.NoError(t, err)
	assert.Equal(t, rollup.ModeReport, cfg.Mode)
}
