package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/derivinsight/sentinel/internal/config"
	"github.com/derivinsight/sentinel/internal/correlation"
	"github.com/derivinsight/sentinel/internal/deepdive"
	"github.com/derivinsight/sentinel/internal/eventbus"
	"github.com/derivinsight/sentinel/internal/events"
	"github.com/derivinsight/sentinel/internal/executor"
	"github.com/derivinsight/sentinel/internal/health"
	"github.com/derivinsight/sentinel/internal/httpapi"
	"github.com/derivinsight/sentinel/internal/insight"
	"github.com/derivinsight/sentinel/internal/llm"
	"github.com/derivinsight/sentinel/internal/memory"
	"github.com/derivinsight/sentinel/internal/narrative"
	"github.com/derivinsight/sentinel/internal/notifier"
	"github.com/derivinsight/sentinel/internal/orchestrator"
	"github.com/derivinsight/sentinel/internal/planner"
	"github.com/derivinsight/sentinel/internal/store"
)

func main() {
	log.Printf("Starting Sentinel service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Durable tier is required; the Redis cache tier is optional and
	// the store degrades to durable-only when it is unreachable.
	fileStore, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open durable store: %v", err)
	}

	var cache *store.RedisStore
	redisStore, err := store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("Warning: Redis unavailable, running durable-only: %v", err)
	} else {
		cache = redisStore
		defer cache.Close()
	}

	var cacheTier store.KV
	var pinger health.CachePinger
	if cache != nil {
		cacheTier = cache
		pinger = cache
	}
	tiered := store.NewTiered(cacheTier, fileStore)

	progress := store.NewProgressStore(tiered)
	scanMemory := memory.New(tiered, cfg.ScanHistoryMax)

	generator, err := llm.NewGeminiGenerator(cfg.GeminiAPIKey, cfg.DiscoveryModel, cfg.LLMTimeout)
	if err != nil {
		log.Fatalf("Failed to create generation client: %v", err)
	}

	answerEngine := insight.NewClient(cfg.InsightEngineURL, cfg.InsightTimeout)

	// Event sinks: NATS is optional, failure logs a warning and the
	// orchestrator runs without out-of-process events.
	var sinks events.Multi
	if cfg.NatsURL != "" {
		publisher, err := eventbus.NewPublisher(cfg.NatsURL)
		if err != nil {
			log.Printf("Warning: failed to connect NATS publisher: %v", err)
			log.Printf("Scan events will not be published")
		} else {
			sinks = append(sinks, publisher)
			defer publisher.Close()
		}
	} else {
		log.Printf("NATS URL not configured, skipping connection")
	}

	slack := notifier.NewSlackNotifier(cfg.SlackWebhookURL, cfg.SlackAlertMinSeverity, cfg.SlackTimeout)
	if cfg.SlackWebhookURL == "" {
		log.Printf("Slack webhook not configured, alerts disabled")
	}

	orch := orchestrator.New(
		cfg,
		planner.New(generator, scanMemory, cfg.AdaptiveEnabled),
		executor.New(answerEngine),
		deepdive.New(generator, cfg.DeepDiveMaxDepth),
		correlation.New(generator),
		narrative.New(generator),
		scanMemory,
		progress,
		slack,
		sinks,
	)

	health.StartServer(cfg.HealthPort, pinger)

	server := httpapi.NewServer(orch, progress, scanMemory)

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		if err := server.Stop(); err != nil {
			log.Printf("Error stopping HTTP server: %v", err)
		}
	}()

	if err := server.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server failed: %v", err)
	}

	log.Printf("Sentinel stopped")
}
