package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/rpattn/shiptrack/internal/api"
	"github.com/rpattn/shiptrack/internal/artifact"
	"github.com/rpattn/shiptrack/internal/config"
	"github.com/rpattn/shiptrack/internal/db"
	"github.com/rpattn/shiptrack/internal/ingest"
	"github.com/rpattn/shiptrack/internal/middleware"
	"github.com/rpattn/shiptrack/internal/orchestrator"
	"github.com/rpattn/shiptrack/internal/repository"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load .env if present, then config.yaml + env overrides
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Optional reject log persistence
	var recorder ingest.Recorder
	var rejects repository.RejectLogRepository
	if cfg.DatabaseEnabled {
		conn, err := db.NewConnection(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer conn.Close()

		if err := db.RunMigrations(ctx, conn.Pool, "./migrations"); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		rejects = repository.NewRejectLogRepository(conn.Pool)
		recorder = rejects
	}

	// Wire the processing pipeline
	loader := orchestrator.NewFileLoader(orchestrator.SourceConfig{
		ScansDir:      cfg.ScansDir,
		DeliveriesDir: cfg.DeliveriesDir,
		Warehouse:     cfg.Warehouse,
		Retention:     cfg.SourceRetention,
		Recorder:      recorder,
	})
	store := artifact.NewStore(cfg.OutputDir)
	orch := orchestrator.New(loader, store, orchestrator.Config{
		Interval:       cfg.Interval(),
		Retention:      cfg.Retention,
		WriteAggregate: cfg.WriteAggregate(),
		WriteDelta:     cfg.WriteDelta(),
		Mapping:        cfg.Mapping(),
	})

	go func() {
		log.Printf("Starting processing cycles every %s for warehouse %s", cfg.Interval(), cfg.Warehouse)
		if err := orch.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Processing loop stopped: %v", err)
		}
	}()

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	handler := api.NewHandler(store, orch, rejects)
	mux := corsHandler.Handler(middleware.LoggingMiddleware(handler.Routes()))

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting artifact API on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	// Stop the processing loop, then drain the HTTP server
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Tracker exited")
}
