package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Changyu123Chen/notion-ledger/internal/api/handlers"
	"github.com/Changyu123Chen/notion-ledger/internal/api/middleware"
	"github.com/Changyu123Chen/notion-ledger/internal/config"
	"github.com/Changyu123Chen/notion-ledger/internal/ledger"
	"github.com/Changyu123Chen/notion-ledger/internal/logger"
	"github.com/Changyu123Chen/notion-ledger/internal/notion"
	"github.com/Changyu123Chen/notion-ledger/internal/objstore"
	"github.com/Changyu123Chen/notion-ledger/internal/weights"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithLevel(cfg.LogLevel)

	ctx := context.Background()

	store := notion.NewClient(cfg.NotionToken)
	engine := ledger.New(store, ledger.Databases{
		Transactions:  cfg.TransactionsDB,
		Accounts:      cfg.AccountsDB,
		DailyBalances: cfg.DailyBalancesDB,
		Budgets:       cfg.BudgetsDB,
	})

	recalcHandler := handlers.NewRecalcHandler(engine, cfg.WebhookSecret, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/run-daily", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			recalcHandler.Run(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// The weight snapshot endpoints need an object store. Without a
	// bucket the reconciliation webhook still works on its own.
	var gcs *objstore.GCS
	if cfg.GCSBucket == "" || cfg.WeightsDB == "" {
		log.Warn().Msg("No GCS bucket or weights database configured - weight snapshot endpoints disabled")
	} else {
		gcs, err = objstore.NewGCS(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create object store client")
		}
		defer gcs.Close()

		cache := weights.NewCache(store, cfg.WeightsDB, gcs, cfg.WeightsObjectKey)
		weightsHandler := handlers.NewWeightsHandler(cache, cfg.WebhookSecret, log)

		mux.HandleFunc("/api/refresh-weights", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				weightsHandler.Refresh(w, r)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})

		mux.HandleFunc("/api/weights", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				weightsHandler.Latest(w, r)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})
	}

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Optional in-process schedule, for deployments without an
	// external cron hitting the webhook.
	var scheduler *cron.Cron
	if cfg.RecalcSchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.RecalcSchedule, func() {
			runCtx := logger.WithContext(context.Background(), log)
			if err := engine.RunDailyRecalc(runCtx); err != nil {
				log.Error().Err(err).Msg("Scheduled recalculation failed")
			}
		})
		if err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.RecalcSchedule).Msg("Invalid recalc schedule")
		}
		scheduler.Start()
		log.Info().Str("schedule", cfg.RecalcSchedule).Msg("Started recalc scheduler")
	}

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting ledger server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	if scheduler != nil {
		// Wait for any in-flight scheduled run to complete.
		<-scheduler.Stop().Done()
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
