package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Simplici0/shouldcost/internal/analysis"
	"github.com/Simplici0/shouldcost/internal/db"
	"github.com/Simplici0/shouldcost/internal/export"
	"github.com/Simplici0/shouldcost/internal/migrations"
	"github.com/Simplici0/shouldcost/internal/rollup"
	"github.com/Simplici0/shouldcost/internal/seed"
)

// Output formats for calc.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputText  = "text"
)

type calcOptions struct {
	output         string
	margin         float64
	scenario       float64
	mode           string
	applyScenarios bool
}

func newCalcCommand() *cobra.Command {
	opts := calcOptions{}
	cmd := &cobra.Command{
		Use:   "calc <analysis.yaml>",
		Short: "Compute the cost rollup for an analysis file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAnalysis(args[0])
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, a); err != nil {
				return err
			}
			getLogger(cmd.Context()).Debug("analysis loaded",
				slog.String("path", args[0]),
				slog.Int("rows", len(a.Raw.Rows)+len(a.Plant.Rows)+len(a.Logistics.Rows)),
			)
			return renderAnalysis(cmd.OutOrStdout(), a, opts.output)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", OutputTable, "output format: table, json or text")
	f.Float64Var(&opts.margin, "margin", 0, "override gross margin %")
	f.Float64Var(&opts.scenario, "scenario", 0, "override scenario ±%")
	f.StringVar(&opts.mode, "mode", "", "override band mode: report or row")
	f.BoolVar(&opts.applyScenarios, "apply-scenarios", false, "write scenario bands onto rows first (row mode)")
	return cmd
}

// apply layers explicitly set flags over the file's configuration.
func (o calcOptions) apply(cmd *cobra.Command, a *analysis.Analysis) error {
	cfg := a.Config
	flags := cmd.Flags()
	if flags.Changed("margin") {
		cfg.MarginPct = o.margin
	}
	if flags.Changed("scenario") {
		cfg.ScenarioPct = o.scenario
	}
	if flags.Changed("mode") {
		mode, err := rollup.ParseBandMode(o.mode)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}
	if cfg.MarginPct < 0 || cfg.MarginPct >= 100 {
		return fmt.Errorf("margin must be in [0, 100), got %g", cfg.MarginPct)
	}
	if cfg.ScenarioPct < 0 || cfg.ScenarioPct > 100 {
		return fmt.Errorf("scenario must be in [0, 100], got %g", cfg.ScenarioPct)
	}
	a.SetConfig(cfg)

	if o.applyScenarios {
		if _, err := a.ApplyScenarios(); err != nil {
			return err
		}
	}
	return nil
}

func loadAnalysis(path string) (*analysis.Analysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open analysis: %w", err)
	}
	defer f.Close()

	a, err := analysis.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

type calcResult struct {
	Meta        analysis.Meta       `json:"meta"`
	Config      rollup.Config       `json:"config"`
	Summary     []rollup.SummaryRow `json:"summary"`
	PerShortTon rollup.Band         `json:"per_short_ton"`
}

func renderAnalysis(w io.Writer, a *analysis.Analysis, format string) error {
	switch strings.ToLower(format) {
	case OutputJSON:
		s := a.Summary()
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(calcResult{
			Meta:        a.Meta,
			Config:      s.Config,
			Summary:     s.Rows(),
			PerShortTon: s.PerShortTon(),
		})
	case OutputText:
		return export.Text(w, a)
	case OutputTable, "":
		return export.Table(w, a)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func newExportCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <analysis.yaml>",
		Short: "Write an analysis to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAnalysis(args[0])
			if err != nil {
				return err
			}
			data, err := export.Workbook(a)
			if err != nil {
				return err
			}

			if out == "" {
				base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				out = filepath.Join(filepath.Dir(args[0]), base+".xlsx")
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output .xlsx path (default next to the input)")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the catalog database and seed defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig(cmd.Context())
			logger := getLogger(cmd.Context())

			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := migrations.Up(database); err != nil {
				return err
			}
			stats, err := seed.Run(database)
			if err != nil {
				return err
			}
			version, err := migrations.Version(database)
			if err != nil {
				return err
			}

			logger.Info("catalog migrated", slog.String("db_path", cfg.DBPath), slog.Int64("version", version))
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Catalog at schema version %d (%d seed rows inserted)\n", version, stats.Inserts)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "shouldcost v%s (%s)\n", Version, GitCommit)
		},
	}
}
