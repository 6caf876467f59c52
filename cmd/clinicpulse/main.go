package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/savegress/clinicpulse/internal/anonymization"
	"github.com/savegress/clinicpulse/internal/api"
	"github.com/savegress/clinicpulse/internal/audit"
	"github.com/savegress/clinicpulse/internal/collector"
	"github.com/savegress/clinicpulse/internal/config"
	"github.com/savegress/clinicpulse/internal/insights"
	"github.com/savegress/clinicpulse/internal/kpi"
	"github.com/savegress/clinicpulse/internal/rules"
	"github.com/savegress/clinicpulse/internal/sink"
	"github.com/savegress/clinicpulse/pkg/models"
)

func main() {
	log.Println("Starting ClinicPulse...")

	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Snapshot store backing the KPI query API.
	snapshot := sink.NewMemory(cfg.Sink.MemoryCapacity)

	flushSink, cleanup, err := buildSink(ctx, cfg, snapshot)
	if err != nil {
		log.Fatalf("Failed to initialize sink: %v", err)
	}
	defer cleanup()

	// Audit trail
	auditLogger := audit.NewLogger(cfg.Audit.Enabled, cfg.Audit.MaxEntries)
	if err := auditLogger.Start(ctx); err != nil {
		log.Fatalf("Failed to start audit logger: %v", err)
	}
	defer auditLogger.Stop()

	// Rule engine
	anonEngine := anonymization.NewEngine(cfg.Rules.AnonymizeSalt)
	ruleEngine := rules.NewEngine(cfg.Rules.Validation, cfg.Rules.Transformation, anonEngine)

	// Collector
	c, err := collector.New(cfg.Collector, ruleEngine, flushSink, auditLogger, func(err error, event *models.IngestionEvent) {
		log.Printf("Collector error: %v", err)
	})
	if err != nil {
		log.Fatalf("Failed to create collector: %v", err)
	}

	// KPI engine
	kpiEngine := kpi.NewEngine(cfg.KPI.MinEventCount, cfg.KPI.Strict, auditLogger)

	// Prediction provider
	insightsClient := insights.NewClient(cfg.Insights)
	if insightsClient.Enabled() {
		log.Printf("Prediction provider configured at %s", cfg.Insights.ProviderURL)
	}

	// API server
	server := api.NewServer(cfg, c, kpiEngine, snapshot, auditLogger, insightsClient)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}

	go func() {
		log.Printf("ClinicPulse listening on :%d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := c.Close(); err != nil {
		log.Printf("Collector shutdown flush failed: %v", err)
	}

	log.Println("ClinicPulse stopped")
}

func loadConfig() *config.Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		cfg, err := config.Load(path)
		if err != nil {
			log.Fatalf("Failed to load config from %s: %v", path, err)
		}
		log.Printf("Loaded configuration from %s", path)
		return cfg
	}

	log.Println("No config file found, using environment variables")
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// buildSink assembles the flush sink chain: the configured durable
// backend plus the in-memory snapshot the KPI API reads from.
func buildSink(ctx context.Context, cfg *config.Config, snapshot *sink.Memory) (sink.Sink, func(), error) {
	switch cfg.Sink.Backend {
	case "postgres":
		pg, err := sink.NewPostgres(ctx, cfg.Sink.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Println("Using Postgres sink")
		return sink.NewFanout(pg, snapshot), pg.Close, nil
	case "embedded":
		emb, err := sink.NewEmbedded(cfg.Sink.DataPath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Using embedded sink at %s", cfg.Sink.DataPath)
		return sink.NewFanout(emb, snapshot), func() { emb.Close() }, nil
	default:
		log.Println("Using in-memory sink")
		return snapshot, func() {}, nil
	}
}
