package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fixmycity/platform/internal/assignment"
	"github.com/fixmycity/platform/internal/attendance"
	complaintapi "github.com/fixmycity/platform/internal/complaint/api"
	complaintinfra "github.com/fixmycity/platform/internal/complaint/infrastructure"
	"github.com/fixmycity/platform/internal/dashboard"
	"github.com/fixmycity/platform/internal/directory"
	"github.com/fixmycity/platform/internal/notification"
	"github.com/fixmycity/platform/internal/shared/auth"
	"github.com/fixmycity/platform/internal/shared/config"
	"github.com/fixmycity/platform/internal/shared/database"
	"github.com/fixmycity/platform/internal/shared/events"
	"github.com/fixmycity/platform/internal/shared/logger"
	"github.com/fixmycity/platform/internal/shared/metrics"
	secmiddleware "github.com/fixmycity/platform/internal/shared/middleware"
	"github.com/fixmycity/platform/internal/worker"
)

// App holds all application dependencies
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	DB        *database.DB
	Bus       events.EventBus
	Directory *directory.Client
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	app := &App{Config: cfg, Log: log}

	// Initialize database (optional - skip if not available)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Warn("database not available, running in limited mode", zap.Error(err))
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			log.Warn("migration failed", zap.Error(err))
		}
	}

	// Initialize event bus (optional - skip if not available)
	bus, err := events.NewEventBus(ctx, cfg.EventStore)
	if err != nil {
		log.Warn("event store not available, running without event streaming", zap.Error(err))
	} else {
		app.Bus = bus
		defer bus.Close()
		log.Info("event bus initialized",
			zap.String("host", cfg.EventStore.Host),
			zap.Int("port", cfg.EventStore.Port))
	}

	// Citizen registry (optional - legacy SQL Server system)
	if cfg.Directory.Enabled {
		dir, err := directory.NewClient(ctx, cfg.Directory)
		if err != nil {
			log.Warn("citizen registry not available, regions will come from requests", zap.Error(err))
		} else {
			app.Directory = dir
			defer dir.Close()
			log.Info("citizen registry connected", zap.String("host", cfg.Directory.Host))
		}
	}

	// Notifications ride on the event stream when the bus is available
	if app.Bus != nil {
		providers := map[notification.Channel]notification.Provider{
			notification.ChannelEmail: notification.NewLogProvider(log, notification.ChannelEmail),
			notification.ChannelSMS:   notification.NewLogProvider(log, notification.ChannelSMS),
		}
		notifier := notification.NewService(providers, log, notification.DefaultServiceConfig())
		if err := notifier.Start(ctx); err != nil {
			log.Warn("notification service failed to start", zap.Error(err))
		} else {
			defer notifier.Stop()
			subscriber := notification.NewSubscriber(notifier, app.Bus, log)
			if err := subscriber.Start(ctx); err != nil {
				log.Warn("notification subscriber failed to start", zap.Error(err))
			} else {
				log.Info("notification subscriber started")
			}
		}
	}

	window, err := attendance.ParseWindow(cfg.Workflow.OfficeHoursStart, cfg.Workflow.OfficeHoursEnd)
	if err != nil {
		log.Fatal("invalid office hours configuration", zap.Error(err))
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.BodyLimit)
	r.Use(secmiddleware.RateLimiter(100, 200))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	var scheduler *cron.Cron

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}

		if app.DB == nil {
			return
		}

		// Worker module
		workerRepo := worker.NewRepository(app.DB.Pool)
		workerHandler := worker.NewHandler(workerRepo, app.Bus)
		r.Mount("/workers", workerHandler.Routes())

		// Attendance ledger. Office hours are enforced at the
		// persistence boundary; the ledger adds derived-state reads.
		attendanceRepo := attendance.NewPostgresRepository(app.DB.Pool, window)
		ledger := attendance.NewLedger(attendanceRepo, window)
		attendanceHandler := attendance.NewHandler(ledger, app.Bus)
		r.Mount("/attendance", attendanceHandler.Routes())

		// Reporter counters and reconciliation
		counterStore := dashboard.NewPostgresStore(app.DB.Pool)
		synchronizer := dashboard.NewSynchronizer(counterStore, log)
		reconciler := dashboard.NewReconciler(counterStore, log)
		dashboardHandler := dashboard.NewHandler(counterStore, reconciler)
		r.Mount("/dashboard", dashboardHandler.Routes())

		// Complaint module
		complaintRepo := complaintinfra.NewPostgresRepository(app.DB.Pool)
		var dirService directory.Service
		if app.Directory != nil {
			dirService = app.Directory
		}
		complaintHandler := complaintapi.NewHandler(complaintRepo, synchronizer, dirService, app.Bus)
		r.Mount("/complaints", complaintHandler.Routes())

		// Assignment engine
		engine := assignment.NewEngine(complaintRepo, workerRepo, ledger, synchronizer, app.Bus, cfg.Workflow.MaxActiveTasks)
		assignmentHandler := assignment.NewHandler(engine)
		r.Mount("/assignments", assignmentHandler.Routes())

		// Scheduled counter reconciliation
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Workflow.ReconcileSchedule, func() {
			if err := reconciler.Run(context.Background()); err != nil {
				log.Warn("scheduled reconciliation incomplete", zap.Error(err))
			}
		})
		if err != nil {
			log.Warn("invalid reconcile schedule, reconciliation disabled",
				zap.String("schedule", cfg.Workflow.ReconcileSchedule), zap.Error(err))
		} else {
			scheduler.Start()
			log.Info("counter reconciliation scheduled",
				zap.String("schedule", cfg.Workflow.ReconcileSchedule))
		}
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")

		if scheduler != nil {
			scheduler.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
		close(done)
	}()

	log.Info("FixMyCity complaint platform starting",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port),
		zap.Int("max_active_tasks", cfg.Workflow.MaxActiveTasks),
		zap.String("office_hours", cfg.Workflow.OfficeHoursStart+"-"+cfg.Workflow.OfficeHoursEnd))

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}

	<-done
	log.Info("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "FixMyCity Complaint Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		if app.Directory != nil {
			if err := app.Directory.Health(r.Context()); err != nil {
				checks["directory"] = "not ready: " + err.Error()
			} else {
				checks["directory"] = "ready"
			}
		} else {
			checks["directory"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
