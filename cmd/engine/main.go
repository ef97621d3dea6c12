// Package main is the entry point for the order-flow analytics and
// decision engine: it loads configuration, wires the router to its
// collaborators (advisor adapter, plan tracker, feed bus, diagnostics
// API), optionally replays a recorded event stream, and serves the
// diagnostics surface until signaled to stop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/advisor"
	"github.com/atlas-desktop/trading-backend/internal/api"
	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/internal/diagnostics"
	"github.com/atlas-desktop/trading-backend/internal/feed"
	"github.com/atlas-desktop/trading-backend/internal/plans"
	"github.com/atlas-desktop/trading-backend/internal/replay"
	"github.com/atlas-desktop/trading-backend/internal/router"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "path to the engine YAML config (defaults baked in if empty)")
	addr := flag.String("addr", ":8090", "diagnostics API listen address")
	advisorURL := flag.String("advisor-url", "", "advisor collaborator endpoint (advisor adapter disabled if empty)")
	replayPath := flag.String("replay", "", "optional JSONL event stream to replay through the router at startup")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg := flowtypes.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal("failed to load configuration", zap.Error(err))
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("configuration invariant violation", zap.Error(err))
	}

	counters := diagnostics.New()
	metrics := diagnostics.NewMetrics()
	bus := feed.New(logger)

	tracker, err := plans.New(logger, cfg.PlanLogPath)
	if err != nil {
		logger.Fatal("failed to open plan log", zap.Error(err))
	}
	defer tracker.Close()

	r := router.New(cfg, logger, counters, metrics, bus, bus)
	if *advisorURL != "" {
		a := advisor.New(*advisorURL, cfg.Instrument, cfg, logger, counters, metrics)
		r = r.WithAdvisor(a, tracker)
	} else {
		logger.Info("advisor adapter disabled: no -advisor-url given, signals are admitted but never advised")
	}

	apiCfg := api.DefaultConfig()
	apiCfg.Addr = *addr
	server := api.NewServer(logger, apiCfg, counters, metrics, bus, tracker, r.CurrentPhase)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *replayPath != "" {
		f, err := os.Open(*replayPath)
		if err != nil {
			logger.Fatal("failed to open replay stream", zap.Error(err))
		}
		n, err := replay.New(r).Run(f)
		f.Close()
		if err != nil {
			logger.Fatal("replay failed", zap.Error(err))
		}
		logger.Info("replay complete", zap.Int("events", n))
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("diagnostics API server error", zap.Error(err))
		}
	}()

	logger.Info("engine started", zap.String("addr", *addr), zap.String("instrument", cfg.Instrument.Symbol))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during diagnostics API shutdown", zap.Error(err))
	}
	logger.Info("engine stopped")
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
