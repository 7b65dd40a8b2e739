package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/shouldcost/internal/analysis"
	"github.com/Simplici0/shouldcost/internal/export"
	"github.com/Simplici0/shouldcost/internal/rollup"
)

type sectionView struct {
	Kind     rollup.SectionKind     `json:"kind"`
	Title    string                 `json:"title"`
	Shape    rollup.Shape           `json:"shape"`
	Rows     []analysis.ResolvedRow `json:"rows"`
	Subtotal rollup.Band            `json:"subtotal"`
}

type analysisView struct {
	ID          string              `json:"id"`
	Meta        analysis.Meta       `json:"meta"`
	Config      rollup.Config       `json:"config"`
	Sections    []sectionView       `json:"sections"`
	Summary     []rollup.SummaryRow `json:"summary"`
	PerShortTon rollup.Band         `json:"per_short_ton"`
	Totals      rollup.Summary      `json:"totals"`
}

type metaRequest struct {
	Product string `json:"product" validate:"max=200"`
	Date    string `json:"analysis_date" validate:"omitempty,datetime=2006-01-02"`
}

type configRequest struct {
	MarginPct   *float64 `json:"margin_pct" validate:"required,gte=0,lt=100"`
	ScenarioPct *float64 `json:"scenario_pct" validate:"required,gte=0,lte=100"`
	Mode        string   `json:"mode" validate:"omitempty,oneof=report row"`
}

func (c configRequest) config() rollup.Config {
	mode := rollup.ModeReport
	if c.Mode != "" {
		mode = rollup.BandMode(c.Mode)
	}
	return rollup.Config{MarginPct: *c.MarginPct, ScenarioPct: *c.ScenarioPct, Mode: mode}
}

type shapeRequest struct {
	Shape string `json:"shape" validate:"required,oneof=price_cf direct"`
}

type deleteRowsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// buildView recomputes every derived figure from the current rows.
func buildView(a *analysis.Analysis) (analysisView, error) {
	start := time.Now()
	summary := a.Summary()
	recomputeDuration.Observe(time.Since(start).Seconds())
	recomputeTotal.WithLabelValues(string(summary.Config.Mode)).Inc()

	subtotals := map[rollup.SectionKind]rollup.Band{
		rollup.SectionRaw:       summary.Raw,
		rollup.SectionPlant:     summary.Plant,
		rollup.SectionLogistics: summary.Logistics,
	}

	view := analysisView{
		ID:          a.ID,
		Meta:        a.Meta,
		Config:      a.Config,
		Summary:     summary.Rows(),
		PerShortTon: summary.PerShortTon(),
		Totals:      summary,
	}
	for _, kind := range rollup.SectionKinds {
		sec, err := a.Section(kind)
		if err != nil {
			return analysisView{}, err
		}
		rows, err := a.Rows(kind)
		if err != nil {
			return analysisView{}, err
		}
		view.Sections = append(view.Sections, sectionView{
			Kind:     kind,
			Title:    kind.Title(),
			Shape:    sec.Shape,
			Rows:     rows,
			Subtotal: subtotals[kind],
		})
	}
	return view, nil
}

// withAnalysis runs fn against the caller's analysis and records the
// mutation under operation. An empty operation marks a read.
func (s *server) withAnalysis(r *http.Request, operation string, fn func(a *analysis.Analysis) error) error {
	err := s.analyses.Do(sessionID(r), fn)
	sessionsActive.Set(float64(s.analyses.Len()))
	if operation != "" {
		observeMutation(operation, err)
	}
	return err
}

// respondWithView mutates through fn, then answers with the fresh view.
func (s *server) respondWithView(w http.ResponseWriter, r *http.Request, operation string, status int, fn func(a *analysis.Analysis) error) {
	var view analysisView
	err := s.withAnalysis(r, operation, func(a *analysis.Analysis) error {
		if fn != nil {
			if err := fn(a); err != nil {
				return err
			}
		}
		var err error
		view, err = buildView(a)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, view)
}

func sectionParam(r *http.Request) (rollup.SectionKind, error) {
	kind, err := rollup.ParseSectionKind(chi.URLParam(r, "section"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", analysis.ErrUnknownSection, err)
	}
	return kind, nil
}

func (s *server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	s.respondWithView(w, r, "", http.StatusOK, nil)
}

func (s *server) handlePutMeta(w http.ResponseWriter, r *http.Request) {
	var req metaRequest
	if err := s.decodeValid(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithView(w, r, "set_meta", http.StatusOK, func(a *analysis.Analysis) error {
		a.SetMeta(analysis.Meta{Product: strings.TrimSpace(req.Product), Date: req.Date})
		return nil
	})
}

func (s *server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := s.decodeValid(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithView(w, r, "set_config", http.StatusOK, func(a *analysis.Analysis) error {
		a.SetConfig(req.config())
		return nil
	})
}

func (s *server) handlePutShape(w http.ResponseWriter, r *http.Request) {
	kind, err := sectionParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req shapeRequest
	if err := s.decodeValid(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	shape, err := rollup.ParseShape(req.Shape)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithView(w, r, "set_shape", http.StatusOK, func(a *analysis.Analysis) error {
		return a.SetShape(kind, shape)
	})
}

func (s *server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	kind, err := sectionParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithView(w, r, "add_row", http.StatusCreated, func(a *analysis.Analysis) error {
		_, err := a.AddRow(kind)
		return err
	})
}

func (s *server) handlePatchRow(w http.ResponseWriter, r *http.Request) {
	kind, err := sectionParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")

	values := make(map[string]any)
	if err := decodeJSON(w, r, &values); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithView(w, r, "edit_row", http.StatusOK, func(a *analysis.Analysis) error {
		return a.EditFields(kind, id, values)
	})
}

func (s *server) handleDeleteRows(w http.ResponseWriter, r *http.Request) {
	kind, err := sectionParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req deleteRowsRequest
	if err := s.decodeValid(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithView(w, r, "delete_rows", http.StatusOK, func(a *analysis.Analysis) error {
		_, err := a.DeleteRows(kind, req.IDs...)
		return err
	})
}

func (s *server) handleApplyScenarios(w http.ResponseWriter, r *http.Request) {
	s.respondWithView(w, r, "apply_scenarios", http.StatusOK, func(a *analysis.Analysis) error {
		_, err := a.ApplyScenarios()
		return err
	})
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.respondWithView(w, r, "reset", http.StatusOK, func(a *analysis.Analysis) error {
		a.Reset()
		return nil
	})
}

func (s *server) handleSummaryText(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	err := s.withAnalysis(r, "", func(a *analysis.Analysis) error {
		return export.Text(&b, a)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}

func (s *server) handleExportWorkbook(w http.ResponseWriter, r *http.Request) {
	var data []byte
	var filename string
	err := s.withAnalysis(r, "", func(a *analysis.Analysis) error {
		var err error
		data, err = export.Workbook(a)
		filename = workbookName(a.Meta)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}

func (s *server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.analyses.Delete(sessionID(r))
	sessionsActive.Set(float64(s.analyses.Len()))
	s.sessions.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) decodeValid(w http.ResponseWriter, r *http.Request, v any) error {
	if err := decodeJSON(w, r, v); err != nil {
		return err
	}
	return s.validate.Struct(v)
}

func workbookName(meta analysis.Meta) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, meta.Product)
	if name == "" {
		name = "should-cost"
	}
	if meta.Date != "" {
		name += "-" + meta.Date
	}
	return name + ".xlsx"
}
