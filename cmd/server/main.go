package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/Simplici0/shouldcost/internal/analysis"
	"github.com/Simplici0/shouldcost/internal/catalog"
	"github.com/Simplici0/shouldcost/internal/config"
	"github.com/Simplici0/shouldcost/internal/db"
	"github.com/Simplici0/shouldcost/internal/logging"
	"github.com/Simplici0/shouldcost/internal/migrations"
	"github.com/Simplici0/shouldcost/internal/seed"
)

type server struct {
	logger   *slog.Logger
	sessions *sessionService
	admin    *adminAuth
	analyses *analysis.Store
	catalog  *catalog.Store
	validate *validator.Validate
}

func newServer(logger *slog.Logger, database *sql.DB, sessionSecret string, sessionIdle time.Duration) *server {
	cat := catalog.New(database)
	sessions := newSessionService(sessionSecret)
	return &server{
		logger:   logger,
		sessions: sessions,
		admin:    newAdminAuth(database, sessions),
		analyses: analysis.NewStore(cat, sessionIdle, logger),
		catalog:  cat,
		validate: newValidator(),
	}
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.sessions.middleware)
		r.Get("/catalog", s.handleCatalog)
		r.Post("/session/end", s.handleEndSession)

		r.Route("/analysis", func(r chi.Router) {
			r.Get("/", s.handleGetAnalysis)
			r.Put("/meta", s.handlePutMeta)
			r.Put("/config", s.handlePutConfig)
			r.Post("/scenarios/apply", s.handleApplyScenarios)
			r.Post("/reset", s.handleReset)
			r.Get("/summary.txt", s.handleSummaryText)
			r.Get("/export.xlsx", s.handleExportWorkbook)

			r.Route("/sections/{section}", func(r chi.Router) {
				r.Put("/shape", s.handlePutShape)
				r.Post("/rows", s.handleAddRow)
				r.Delete("/rows", s.handleDeleteRows)
				r.Patch("/rows/{id}", s.handlePatchRow)
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", s.handleAdminLogin)
		r.Post("/logout", s.handleAdminLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/defaults", s.handleAdminDefaultsGet)
			r.Post("/defaults", s.handleAdminDefaultsSubmit)
			r.Get("/categories", s.handleAdminCategoriesList)
			r.Post("/categories", s.handleAdminCategoriesCreate)
			r.Post("/categories/{id}", s.handleAdminCategoriesUpdate)
			r.Get("/default-rows", s.handleAdminDefaultRowsList)
			r.Post("/default-rows", s.handleAdminDefaultRowsCreate)
			r.Post("/default-rows/{id}", s.handleAdminDefaultRowsUpdate)
		})
	})

	return r
}

func main() {
	flags := pflag.NewFlagSet("shouldcost-server", pflag.ExitOnError)
	configFile := flags.String("config", "", "path to shouldcost.yaml")
	flags.String("port", "", "HTTP listen port")
	flags.String("db-path", "", "catalog SQLite database path")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text or json")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, Flags: flags})
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		slog.Error("failed to build logger", slog.Any("error", err))
		os.Exit(1)
	}
	for _, warning := range cfg.Warnings() {
		logger.Warn(warning)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer database.Close()

	if cfg.MigrateOnStart {
		if err := migrations.Up(database); err != nil {
			logger.Error("failed to run database migrations", slog.Any("error", err))
			os.Exit(1)
		}
		stats, err := seed.Run(database)
		if err != nil {
			logger.Error("failed to seed catalog", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("catalog ready", slog.Int("inserts", stats.Inserts))
	}

	srv := newServer(logger, database, cfg.SessionSecret, cfg.SessionIdle)
	if err := srv.admin.ensureAdminUser(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
		os.Exit(1)
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", slog.Any("error", err))
		}
	}()

	logger.Info("listening", slog.String("addr", httpServer.Addr), slog.String("db_path", cfg.DBPath))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
