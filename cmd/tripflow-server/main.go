// Package main provides the HTTP server for tripflow.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zhenwang/tripflow/internal/agents"
	"github.com/zhenwang/tripflow/internal/config"
	"github.com/zhenwang/tripflow/internal/db"
	"github.com/zhenwang/tripflow/internal/llm"
	"github.com/zhenwang/tripflow/internal/metrics"
	"github.com/zhenwang/tripflow/internal/poster"
	"github.com/zhenwang/tripflow/internal/prompts"
	"github.com/zhenwang/tripflow/internal/server"
	"github.com/zhenwang/tripflow/internal/service"
	"github.com/zhenwang/tripflow/internal/session"
	"github.com/zhenwang/tripflow/internal/tools"
)

const version = "0.1.0"

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("tripflow starting",
		"version", version,
		"provider", cfg.LLMProvider,
		"model", cfg.LLMModel,
		"port", cfg.Port,
	)

	roles, err := prompts.Load()
	if err != nil {
		logger.Error("failed to load role prompts", "error", err)
		os.Exit(1)
	}

	model, err := llm.NewModel(cfg)
	if err != nil {
		logger.Error("failed to create model", "error", err)
		os.Exit(1)
	}

	// Persistence is optional; the task registry is authoritative in memory.
	var dbClient *db.Client
	if cfg.SurrealDBURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		dbClient, err = db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			cancel()
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := dbClient.InitSchema(ctx); err != nil {
			cancel()
			logger.Error("failed to initialize database schema", "error", err)
			os.Exit(1)
		}
		if *wipeDB || os.Getenv("TRIPFLOW_WIPE_DB") == "true" {
			if err := dbClient.WipeData(ctx); err != nil {
				cancel()
				logger.Error("failed to wipe database", "error", err)
				os.Exit(1)
			}
		}
		cancel()
		defer func() {
			logger.Info("closing database connection")
			_ = dbClient.Close(context.Background())
		}()
	}

	// External collaborators; unset clients leave their tools unconfigured.
	var searchClient *tools.SearchClient
	if cfg.SearchURL != "" {
		searchClient = tools.NewSearchClient(cfg.SearchURL, cfg.SearchAPIKey)
	}
	var amapClient *tools.AmapClient
	if cfg.AmapAPIKey != "" {
		amapClient = tools.NewAmapClient(cfg.AmapAPIKey)
	}
	var trainClient *tools.TrainClient
	if cfg.TrainAPIURL != "" {
		trainClient = tools.NewTrainClient(cfg.TrainAPIURL, cfg.TrainAPIKey)
	}
	collector := metrics.NewCollector()
	registry := tools.NewRegistry(searchClient, amapClient, trainClient)
	registry.SetCollector(collector)

	var renderer service.Renderer
	if cfg.PosterURL != "" {
		renderer = poster.NewRenderer(cfg.PosterURL)
	}

	manager := service.NewManager(dbClient, cfg.DataDir)
	pipeline := service.NewPipeline(
		agents.NewGate(model, roles),
		agents.NewDecomposer(model, roles),
		agents.NewTeam(model, roles, registry, cfg.MaxToolIterations),
		agents.NewPlanner(model, roles),
		renderer,
		manager,
		collector,
		cfg.SpecialistPoolSize,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := session.NewStore(cfg.SessionTTL)
	if dbClient != nil {
		sessions.SetPersistence(dbClient)
	}
	go sessions.RunSweeper(ctx, time.Hour)

	srv := server.New(pipeline, sessions, collector, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("API available", "url", fmt.Sprintf("http://localhost:%s/api/generate-plan", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
