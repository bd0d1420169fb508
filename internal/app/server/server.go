package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"comply/internal/domain/audit"
	"comply/internal/domain/auth"
	"comply/internal/domain/dashboard"
	"comply/internal/domain/directory"
	"comply/internal/domain/evidence"
	"comply/internal/domain/importer"
	"comply/internal/domain/masterdata"
	"comply/internal/domain/report"
	"comply/internal/domain/settings"
	"comply/internal/domain/task"
	"comply/internal/platform/config"
	"comply/internal/platform/crypto"
	"comply/internal/platform/db"
	"comply/internal/platform/docstore"
	"comply/internal/platform/identity"
	"comply/internal/platform/jobs"
	"comply/internal/platform/metrics"
	"comply/internal/platform/webhook"
	audithandler "comply/internal/transport/http/handlers/audit"
	authhandler "comply/internal/transport/http/handlers/auth"
	dashboardhandler "comply/internal/transport/http/handlers/dashboard"
	evidencehandler "comply/internal/transport/http/handlers/evidence"
	importhandler "comply/internal/transport/http/handlers/imports"
	masterdatahandler "comply/internal/transport/http/handlers/masterdata"
	reporthandler "comply/internal/transport/http/handlers/reports"
	settingshandler "comply/internal/transport/http/handlers/settings"
	taskhandler "comply/internal/transport/http/handlers/tasks"
	userhandler "comply/internal/transport/http/handlers/users"
	"comply/internal/transport/http/middleware"
)

type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
	Jobs   *jobs.Service
}

// New wires the whole application against an existing database. Tests use it
// directly; Run adds process-level concerns on top.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, migrationsDir()); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	cryptoSvc, err := crypto.New(cfg.ConfigEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}

	collector := metrics.New()
	hook := webhook.New()
	idp := identity.New(cfg)

	var docClient *docstore.Client
	if idp.Configured() {
		docClient = docstore.New(cfg.DocStoreBaseURL, identity.NewAppTokenSource(idp, ""))
	} else {
		docClient = docstore.New(cfg.DocStoreBaseURL, nil)
	}

	auditSvc := audit.NewService(pool)
	authSvc := auth.NewService(auth.NewStore(pool))
	masterStore := masterdata.NewStore(pool)
	masterSvc := masterdata.NewService(masterStore)
	userStore := directory.NewStore(pool)
	userSvc := directory.NewService(userStore)
	settingsSvc := settings.NewService(settings.NewStore(pool), cryptoSvc, hook)
	taskStore := task.NewStore(pool)
	taskSvc := task.NewService(taskStore, masterStore, collector)
	evidenceSvc := evidence.NewService(evidence.NewStore(pool), docClient, settingsSvc, cfg.DocStoreBaseFolder)
	importSvc := importer.NewService(importer.NewStore(pool), taskStore, masterStore, userStore, collector, cfg.ImportPreviewLimit)
	reportStore := report.NewStore(pool)
	reportSvc := report.NewService(reportStore, settingsSvc, hook, collector)
	dashboardSvc := dashboard.NewService(pool, reportStore)
	jobsSvc := jobs.New(pool, cfg, reportSvc)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(authSvc, idp, auditSvc, cfg).RegisterRoutes(r)
		taskhandler.NewHandler(taskSvc, auditSvc).RegisterRoutes(r)
		masterdatahandler.NewHandler(masterSvc, auditSvc).RegisterRoutes(r)
		userhandler.NewHandler(userSvc, auditSvc).RegisterRoutes(r)
		evidencehandler.NewHandler(evidenceSvc, auditSvc).RegisterRoutes(r)
		importhandler.NewHandler(importSvc, auditSvc).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc).RegisterRoutes(r)
		reporthandler.NewHandler(reportSvc, jobsSvc, auditSvc).RegisterRoutes(r)
		dashboardhandler.NewHandler(dashboardSvc).RegisterRoutes(r)
		settingshandler.NewHandler(settingsSvc, auditSvc).RegisterRoutes(r)
	})

	return &App{Config: cfg, DB: pool, Router: router, Jobs: jobsSvc}, nil
}

func (a *App) Close() {
	a.DB.Close()
}

// migrationsDir walks up from the working directory until it finds the
// migrations folder, so the binary and package tests resolve the same path.
func migrationsDir() string {
	dir := "migrations"
	for i := 0; i < 6; i++ {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		dir = filepath.Join("..", dir)
	}
	return "migrations"
}

func Run() {
	cfg := config.Load()

	ctx := context.Background()
	app, err := New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.DB.Close()

	app.Jobs.Start(ctx)

	log.Printf("compliance tracker listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
