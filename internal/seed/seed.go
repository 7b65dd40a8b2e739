package seed

import (
	"database/sql"
	"fmt"
)

type category struct {
	section   string
	name      string
	isDefault bool
}

type defaultRow struct {
	section string
	item    string
}

var (
	defaultCategories = []category{
		{section: "raw", name: "Primary", isDefault: true},
		{section: "raw", name: "Secondary"},
		{section: "raw", name: "Utility"},
		{section: "plant", name: "Conversion", isDefault: true},
		{section: "plant", name: "Maintenance"},
		{section: "plant", name: "Overhead"},
		{section: "logistics", name: "Outbound", isDefault: true},
		{section: "logistics", name: "Inbound"},
		{section: "logistics", name: "Packaging"},
	}

	defaultSourceTags = []string{"Manual Quote", "External Index", "Filing", "Other"}

	defaultRows = []defaultRow{
		{section: "plant", item: "Conversion costs"},
		{section: "plant", item: "Maintenance & Ops"},
		{section: "plant", item: "Overhead/Dep/Insurance"},
		{section: "logistics", item: "Transportation"},
		{section: "logistics", item: "Fuel Surcharge"},
		{section: "logistics", item: "Packaging"},
		{section: "logistics", item: "Handling & Storage"},
	}
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run seeds the catalog in an idempotent way.
func Run(db *sql.DB) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	for _, step := range []func(*sql.Tx, *Stats) error{
		ensureScenarioDefaults,
		ensureCategories,
		ensureSourceTags,
		ensureDefaultRows,
	} {
		if err := step(tx, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureScenarioDefaults(tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM scenario_defaults WHERE id = 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check scenario defaults existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`
		INSERT INTO scenario_defaults (id, margin_pct, scenario_pct, band_mode)
		VALUES (1, ?, ?, ?)
	`, 25, 10, "report"); err != nil {
		return fmt.Errorf("insert scenario defaults singleton: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureCategories(tx *sql.Tx, stats *Stats) error {
	for _, c := range defaultCategories {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM categories WHERE section = ? AND name = ? LIMIT 1)`, c.section, c.name).Scan(&exists); err != nil {
			return fmt.Errorf("check category existence: %w", err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO categories (section, name, is_default, active)
			VALUES (?, ?, ?, TRUE)
		`, c.section, c.name, c.isDefault); err != nil {
			return fmt.Errorf("insert category %s/%s: %w", c.section, c.name, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureSourceTags(tx *sql.Tx, stats *Stats) error {
	for i, name := range defaultSourceTags {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM source_tags WHERE name = ? LIMIT 1)`, name).Scan(&exists); err != nil {
			return fmt.Errorf("check source tag existence: %w", err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`INSERT INTO source_tags (name, position) VALUES (?, ?)`, name, i); err != nil {
			return fmt.Errorf("insert source tag %s: %w", name, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureDefaultRows(tx *sql.Tx, stats *Stats) error {
	for i, r := range defaultRows {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM default_rows WHERE section = ? AND item = ? LIMIT 1)`, r.section, r.item).Scan(&exists); err != nil {
			return fmt.Errorf("check default row existence: %w", err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO default_rows (section, item, position, active)
			VALUES (?, ?, ?, TRUE)
		`, r.section, r.item, i); err != nil {
			return fmt.Errorf("insert default row %s/%s: %w", r.section, r.item, err)
		}
		stats.Inserts++
	}
	return nil
}
