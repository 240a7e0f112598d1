// Command scheduler runs the AI task scheduler: the HTTP API, the
// background reconciliation loop, and the retention trimmer, wired
// together the way cmd/tarsy/main.go wires its database client, services,
// and gin router, with graceful shutdown grounded in
// intelligencedev-manifold's cmd/orchestrator signal.NotifyContext idiom.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tom-doerr/dspy-scheduling/pkg/api"
	"github.com/tom-doerr/dspy-scheduling/pkg/chat"
	"github.com/tom-doerr/dspy-scheduling/pkg/config"
	"github.com/tom-doerr/dspy-scheduling/pkg/llm"
	"github.com/tom-doerr/dspy-scheduling/pkg/reconciler"
	"github.com/tom-doerr/dspy-scheduling/pkg/retention"
	"github.com/tom-doerr/dspy-scheduling/pkg/retry"
	"github.com/tom-doerr/dspy-scheduling/pkg/store"
	"github.com/tom-doerr/dspy-scheduling/pkg/taskengine"
)

func main() {
	envPath := flag.String("env-file", os.Getenv("ENV_FILE"), "Path to a .env file to load before reading configuration")
	flag.Parse()

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			log.Printf("warning: could not load %s: %v", filepath.Clean(*envPath), err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	storeCfg, err := cfg.StoreConfig()
	if err != nil {
		log.Fatalf("failed to derive store configuration: %v", err)
	}

	pgStore, err := store.Open(storeCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := pgStore.Close(); err != nil {
			slog.Error("error closing store", "error", err)
		}
	}()
	slog.Info("connected to postgres", "host", storeCfg.Host, "database", storeCfg.Database)

	model := llm.NewAnthropicModel(cfg.OpenRouterAPIKey, "", nil)
	llmClient := llm.NewClient(model, pgStore.LLMCalls(), llm.Config{ModelID: cfg.DSPyModel, MaxTokens: cfg.MaxTokens}, retry.DefaultConfig)

	engine := taskengine.New(pgStore, taskengine.FallbackConfig{
		StartHour:     cfg.FallbackStartHour,
		DurationHours: cfg.FallbackDurationHours,
	}, nil)

	recon := reconciler.New(pgStore, llmClient, time.Duration(cfg.SchedulerIntervalSeconds)*time.Second, nil)
	if cfg.SchedulerEnabled {
		recon.Start(ctx)
		defer recon.Stop()
	}

	orch := chat.New(pgStore, llmClient, nil)

	retentionInterval := 24 * time.Hour
	ret := retention.New(pgStore, retention.Config{
		ChatRetentionDays:    cfg.ChatRetentionDays,
		LLMCallRetentionDays: cfg.LLMCallRetentionDays,
		Interval:             retentionInterval,
	})
	ret.Start(ctx)
	defer ret.Stop()

	server := api.NewServer(pgStore, engine, orch, ret)
	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	slog.Info("starting http server", "addr", addr)

	if err := server.Run(ctx, addr); err != nil {
		slog.Error("http server exited with error", "error", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.LogLevel {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
