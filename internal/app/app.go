// Package app wires configuration into a ready orchestrator: the LLM gateway,
// the Google clients, the agents and the optional Redis cache and Postgres
// history.
package app

import (
	"context"
	"fmt"
	"time"

	"insight-agents/internal/api"
	"insight-agents/internal/common/config"
	"insight-agents/internal/common/database"
	"insight-agents/internal/common/google"
	"insight-agents/internal/common/llm"
	"insight-agents/internal/common/logger"
	"insight-agents/internal/common/observability"
	"insight-agents/internal/history"
	classifyintent "insight-agents/internal/workers/ai-conversation/classify-intent"
	llmsynthesis "insight-agents/internal/workers/ai-conversation/llm-synthesis"
	orchestratequery "insight-agents/internal/workers/ai-conversation/orchestrate-query"
	queryanalytics "insight-agents/internal/workers/ai-conversation/query-analytics"
	querysheets "insight-agents/internal/workers/ai-conversation/query-sheets"
)

type Options struct {
	// ServiceName labels otel metrics and spans.
	ServiceName string
	// ConnectRetries bounds the attempts made for Redis and Postgres.
	ConnectRetries int
	RetryDelay     time.Duration
}

type App struct {
	Config        *config.Config
	Orchestrator  *orchestratequery.Handler
	SheetCache    *querysheets.CachedLoader
	History       *history.Store
	Redis         *database.RedisClient
	Postgres      *database.PostgresClient
	Observability *observability.Observability

	logger logger.Logger
}

// Build creates every collaborator the orchestrator needs. Redis and Postgres
// are only dialled when enabled in config.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	if opts.ConnectRetries <= 0 {
		opts.ConnectRetries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	a := &App{Config: cfg, logger: log}
	a.Observability = observability.New(opts.ServiceName)

	gateway := llm.NewClient(llm.ConfigFrom(cfg.LLM), log)

	analyticsClient, err := google.NewAnalyticsClient(ctx,
		google.ClientOptions(cfg.Google, cfg.Google.AnalyticsEndpoint, google.AnalyticsScope)...)
	if err != nil {
		a.Close()
		return nil, err
	}
	sheetsClient, err := google.NewSheetsClient(ctx,
		google.ClientOptions(cfg.Google, cfg.Google.SheetsEndpoint, google.SheetsScope)...)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Database.Redis.Enabled || cfg.Cache.Enabled {
		err = retryWithBackoff(func() error {
			rc, err := database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			if err := rc.Ping(ctx); err != nil {
				_ = rc.Close()
				return err
			}
			a.Redis = rc
			return nil
		}, opts.ConnectRetries, opts.RetryDelay, log, "Redis connection")
		if err != nil {
			a.Close()
			return nil, err
		}
		log.Info("Redis connected", map[string]interface{}{"address": cfg.Database.Redis.Address})
	}

	if cfg.Database.Postgres.Enabled {
		err = retryWithBackoff(func() error {
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				_ = pg.Close()
				return err
			}
			a.Postgres = pg
			return nil
		}, opts.ConnectRetries, opts.RetryDelay, log, "PostgreSQL connection")
		if err != nil {
			a.Close()
			return nil, err
		}

		a.History = history.NewStore(a.Postgres.DB)
		if err := a.History.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("prepare query history: %w", err)
		}
		log.Info("PostgreSQL connected, query history enabled", nil)
	}

	synth := llmsynthesis.NewHandler(llmsynthesis.LoadConfig(cfg), gateway, log)

	sheetsCfg := querysheets.LoadConfig(cfg)
	var loader querysheets.TableLoader = sheetsClient
	if cfg.Cache.Enabled && a.Redis != nil {
		a.SheetCache = querysheets.NewCachedLoader(sheetsClient, a.Redis, sheetsCfg.CacheTTL, log)
		loader = a.SheetCache
	}

	deps := orchestratequery.Dependencies{
		Classifier: classifyintent.NewHandler(classifyintent.LoadConfig(cfg), gateway, log),
		Analytics: queryanalytics.NewHandler(queryanalytics.LoadConfig(cfg), gateway, analyticsClient,
			queryanalytics.DefaultAllowlist(), synth, log),
		Sheets:        querysheets.NewHandler(sheetsCfg, gateway, loader, synth, log),
		Aggregator:    synth,
		Observability: a.Observability,
	}
	if a.History != nil {
		deps.History = a.History
	}
	a.Orchestrator = orchestratequery.NewHandler(orchestratequery.LoadConfig(cfg), deps, log)

	return a, nil
}

// Readiness lists the dependencies /ready should ping.
func (a *App) Readiness() map[string]api.Pinger {
	checks := map[string]api.Pinger{}
	if a.Redis != nil {
		checks["redis"] = a.Redis
	}
	if a.Postgres != nil {
		checks["postgres"] = a.Postgres
	}
	return checks
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("closing redis", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.Postgres != nil {
		if err := a.Postgres.Close(); err != nil {
			a.logger.Warn("closing postgres", map[string]interface{}{"error": err.Error()})
		}
	}
	a.Observability.Shutdown()
}

func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
