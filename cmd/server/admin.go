package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/shouldcost/internal/catalog"
	"github.com/Simplici0/shouldcost/internal/rollup"
)

type catalogView struct {
	Defaults   rollup.Config       `json:"defaults"`
	Categories []catalog.Category  `json:"categories"`
	SourceTags []catalog.SourceTag `json:"source_tags"`
}

type createdResponse struct {
	ID int64 `json:"id"`
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errInvalidBody, chi.URLParam(r, "id"))
	}
	return id, nil
}

func (s *server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	defaults, err := s.catalog.ScenarioDefaults()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	categories, err := s.catalog.ListCategories()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tags, err := s.catalog.ListSourceTags()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	active := categories[:0]
	for _, c := range categories {
		if c.Active {
			active = append(active, c)
		}
	}

	writeJSON(w, http.StatusOK, catalogView{Defaults: defaults, Categories: active, SourceTags: tags})
}

func (s *server) handleAdminDefaultsGet(w http.ResponseWriter, r *http.Request) {
	defaults, err := s.catalog.ScenarioDefaults()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, defaults)
}

func (s *server) handleAdminDefaultsSubmit(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := s.decodeValid(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg := req.config()
	if err := s.catalog.UpdateScenarioDefaults(cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("scenario defaults updated",
		"margin_pct", cfg.MarginPct,
		"scenario_pct", cfg.ScenarioPct,
		"mode", cfg.Mode,
	)
	writeJSON(w, http.StatusOK, cfg)
}

func (s *server) handleAdminCategoriesList(w http.ResponseWriter, r *http.Request) {
	categories, err := s.catalog.ListCategories()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *server) decodeCategory(w http.ResponseWriter, r *http.Request) (catalog.Category, error) {
	var c catalog.Category
	if err := decodeJSON(w, r, &c); err != nil {
		return c, err
	}
	c.Name = strings.TrimSpace(c.Name)
	return c, s.validate.Struct(c)
}

func (s *server) handleAdminCategoriesCreate(w http.ResponseWriter, r *http.Request) {
	c, err := s.decodeCategory(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.catalog.CreateCategory(c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *server) handleAdminCategoriesUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.decodeCategory(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c.ID = id
	if err := s.catalog.UpdateCategory(c); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *server) handleAdminDefaultRowsList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.catalog.ListDefaultRows()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *server) decodeDefaultRow(w http.ResponseWriter, r *http.Request) (catalog.DefaultRow, error) {
	var row catalog.DefaultRow
	if err := decodeJSON(w, r, &row); err != nil {
		return row, err
	}
	row.Item = strings.TrimSpace(row.Item)
	return row, s.validate.Struct(row)
}

func (s *server) handleAdminDefaultRowsCreate(w http.ResponseWriter, r *http.Request) {
	row, err := s.decodeDefaultRow(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.catalog.CreateDefaultRow(row)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *server) handleAdminDefaultRowsUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	row, err := s.decodeDefaultRow(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	row.ID = id
	if err := s.catalog.UpdateDefaultRow(row); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}
