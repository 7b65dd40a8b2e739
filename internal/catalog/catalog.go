// Package catalog stores the reference data new analyses start from:
// scenario defaults, per-section categories, source tags and the rows
// pre-populated in each section. Analyses themselves are never stored.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Simplici0/shouldcost/internal/analysis"
	"github.com/Simplici0/shouldcost/internal/rollup"
)

var (
	// ErrNotFound is returned when an update targets a missing record.
	ErrNotFound = errors.New("catalog record not found")
	// ErrDuplicate is returned when a category name is already used in its section.
	ErrDuplicate = errors.New("catalog record already exists")
)

// Category is a selectable category tag for one section.
type Category struct {
	ID        int64              `json:"id"`
	Section   rollup.SectionKind `json:"section" validate:"required,oneof=raw plant logistics"`
	Name      string             `json:"name" validate:"required,max=80"`
	IsDefault bool               `json:"is_default"`
	Active    bool               `json:"active"`
}

// SourceTag is a provenance label for line items.
type SourceTag struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Active   bool   `json:"active"`
}

// DefaultRow is an item label pre-populated in new analyses.
type DefaultRow struct {
	ID       int64              `json:"id"`
	Section  rollup.SectionKind `json:"section" validate:"required,oneof=raw plant logistics"`
	Item     string             `json:"item" validate:"required,max=120"`
	Position int                `json:"position" validate:"gte=0"`
	Active   bool               `json:"active"`
}

// Store reads and writes the catalog tables.
type Store struct {
	db *sql.DB
}

// New returns a Store backed by db. The schema must already be migrated.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ analysis.DefaultsSource = (*Store)(nil)

// ScenarioDefaults returns the margin, scenario and band mode new analyses
// start with.
func (s *Store) ScenarioDefaults() (rollup.Config, error) {
	var cfg rollup.Config
	var mode string
	err := s.db.QueryRow(`
		SELECT margin_pct, scenario_pct, band_mode
		FROM scenario_defaults
		WHERE id = 1
	`).Scan(&cfg.MarginPct, &cfg.ScenarioPct, &mode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rollup.DefaultConfig(), nil
		}
		return rollup.Config{}, fmt.Errorf("query scenario_defaults: %w", err)
	}
	cfg.Mode, err = rollup.ParseBandMode(mode)
	if err != nil {
		return rollup.Config{}, err
	}
	return cfg, nil
}

// UpdateScenarioDefaults upserts the singleton defaults row.
func (s *Store) UpdateScenarioDefaults(cfg rollup.Config) error {
	_, err := s.db.Exec(`
		INSERT INTO scenario_defaults (id, margin_pct, scenario_pct, band_mode)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			margin_pct = excluded.margin_pct,
			scenario_pct = excluded.scenario_pct,
			band_mode = excluded.band_mode,
			updated_at = CURRENT_TIMESTAMP
	`, cfg.MarginPct, cfg.ScenarioPct, string(cfg.Mode))
	if err != nil {
		return fmt.Errorf("update scenario_defaults: %w", err)
	}
	return nil
}

// ListCategories returns all categories ordered by section then name.
func (s *Store) ListCategories() ([]Category, error) {
	rows, err := s.db.Query(`
		SELECT id, section, name, is_default, active
		FROM categories
		ORDER BY section, name
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Section, &c.Name, &c.IsDefault, &c.Active); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

// CreateCategory inserts c. Marking it default clears the flag on the
// section's other categories.
func (s *Store) CreateCategory(c Category) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin create category: %w", err)
	}
	defer tx.Rollback()

	if c.IsDefault {
		if err := clearDefaultCategory(tx, c.Section); err != nil {
			return 0, err
		}
	}

	result, err := tx.Exec(`
		INSERT INTO categories (section, name, is_default, active)
		VALUES (?, ?, ?, ?)
	`, c.Section, c.Name, c.IsDefault, c.Active)
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", uniqueViolation(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read category id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create category: %w", err)
	}
	return id, nil
}

// UpdateCategory rewrites the category with c.ID.
func (s *Store) UpdateCategory(c Category) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin update category: %w", err)
	}
	defer tx.Rollback()

	if c.IsDefault {
		if err := clearDefaultCategory(tx, c.Section); err != nil {
			return err
		}
	}

	result, err := tx.Exec(`
		UPDATE categories
		SET
			section = ?,
			name = ?,
			is_default = ?,
			active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, c.Section, c.Name, c.IsDefault, c.Active, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", uniqueViolation(err))
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update category: %w", err)
	}
	return nil
}

func clearDefaultCategory(tx *sql.Tx, section rollup.SectionKind) error {
	if _, err := tx.Exec(`UPDATE categories SET is_default = FALSE WHERE section = ?`, section); err != nil {
		return fmt.Errorf("clear default category: %w", err)
	}
	return nil
}

// ListSourceTags returns active source tags in display order.
func (s *Store) ListSourceTags() ([]SourceTag, error) {
	rows, err := s.db.Query(`
		SELECT id, name, position, active
		FROM source_tags
		WHERE active
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query source tags: %w", err)
	}
	defer rows.Close()

	tags := make([]SourceTag, 0)
	for rows.Next() {
		var tag SourceTag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Position, &tag.Active); err != nil {
			return nil, fmt.Errorf("scan source tag: %w", err)
		}
		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source tags: %w", err)
	}

	return tags, nil
}

// ListDefaultRows returns default rows ordered by section and position.
func (s *Store) ListDefaultRows() ([]DefaultRow, error) {
	rows, err := s.db.Query(`
		SELECT id, section, item, position, active
		FROM default_rows
		ORDER BY section, position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query default rows: %w", err)
	}
	defer rows.Close()

	out := make([]DefaultRow, 0)
	for rows.Next() {
		var r DefaultRow
		if err := rows.Scan(&r.ID, &r.Section, &r.Item, &r.Position, &r.Active); err != nil {
			return nil, fmt.Errorf("scan default row: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate default rows: %w", err)
	}

	return out, nil
}

// CreateDefaultRow inserts r and returns its id.
func (s *Store) CreateDefaultRow(r DefaultRow) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO default_rows (section, item, position, active)
		VALUES (?, ?, ?, ?)
	`, r.Section, r.Item, r.Position, r.Active)
	if err != nil {
		return 0, fmt.Errorf("insert default row: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read default row id: %w", err)
	}
	return id, nil
}

// UpdateDefaultRow rewrites the default row with r.ID.
func (s *Store) UpdateDefaultRow(r DefaultRow) error {
	result, err := s.db.Exec(`
		UPDATE default_rows
		SET
			section = ?,
			item = ?,
			position = ?,
			active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, r.Section, r.Item, r.Position, r.Active, r.ID)
	if err != nil {
		return fmt.Errorf("update default row: %w", err)
	}
	return requireAffected(result)
}

// uniqueViolation maps SQLite's unique constraint failure to ErrDuplicate.
func uniqueViolation(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Defaults assembles analysis defaults from the active catalog entries.
func (s *Store) Defaults() (analysis.Defaults, error) {
	cfg, err := s.ScenarioDefaults()
	if err != nil {
		return analysis.Defaults{}, err
	}

	d := analysis.Defaults{
		Config:     cfg,
		Rows:       make(map[rollup.SectionKind][]string),
		Categories: make(map[rollup.SectionKind]string),
		SourceTag:  analysis.DefaultSourceTag,
	}

	rows, err := s.ListDefaultRows()
	if err != nil {
		return analysis.Defaults{}, err
	}
	for _, r := range rows {
		if r.Active {
			d.Rows[r.Section] = append(d.Rows[r.Section], r.Item)
		}
	}

	categories, err := s.ListCategories()
	if err != nil {
		return analysis.Defaults{}, err
	}
	for _, c := range categories {
		if c.Active && c.IsDefault {
			d.Categories[c.Section] = c.Name
		}
	}

	tags, err := s.ListSourceTags()
	if err != nil {
		return analysis.Defaults{}, err
	}
	if len(tags) > 0 {
		d.SourceTag = tags[0].Name
	}

	return d, nil
}
