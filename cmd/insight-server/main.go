// cmd/insight-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"insight-agents/internal/api"
	"insight-agents/internal/app"
	"insight-agents/internal/common/camunda"
	"insight-agents/internal/common/config"
	"insight-agents/internal/common/logger"
	orchestratequery "insight-agents/internal/workers/ai-conversation/orchestrate-query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)

	// run owns every deferred Close, so they all finish before Fatal exits.
	if err := run(cfg, zapLog); err != nil {
		zapLog.Fatal("insight server failed", zap.Error(err))
	}
	zapLog.Info("Insight server stopped gracefully")
	_ = zapLog.Sync()
}

func run(cfg *config.Config, zapLog *zap.Logger) error {
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting insight server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log, app.Options{
		ServiceName:    cfg.App.Name,
		ConnectRetries: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer a.Close()

	// --- Optional zeebe worker ---
	if cfg.Camunda.Enabled && config.IsWorkerEnabled(cfg, orchestratequery.TaskType) {
		zc, err := camunda.NewClient(camunda.ClientConfigFrom(cfg.Camunda))
		if err != nil {
			return fmt.Errorf("zeebe client failed: %w", err)
		}
		defer zc.Close()

		a.Orchestrator.SetCommandRetrier(zc)
		w := camunda.NewWorker(zc.GetClient(), orchestratequery.TaskType,
			config.GetWorkerConfig(cfg, orchestratequery.TaskType), a.Orchestrator, log)
		defer w.Close()
		zapLog.Info("Zeebe worker registered", zap.String("taskType", orchestratequery.TaskType))
	}

	server := api.NewWebAPI(log, api.Config{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout:    config.GetDuration(cfg.Server.WriteTimeout),
		ShutdownTimeout: config.GetDuration(cfg.Server.ShutdownTimeout),
		AllowedOrigins:  cfg.Server.CORSAllowedOrigins,
		Dependencies: api.Dependencies{
			Orchestrator: a.Orchestrator,
			Readiness:    a.Readiness(),
		},
	})

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
