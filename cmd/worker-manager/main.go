// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	commonaws "investlink-workers/internal/common/aws"
	"investlink-workers/internal/common/camunda"
	"investlink-workers/internal/common/config"
	"investlink-workers/internal/common/database"
	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/observability"
	"investlink-workers/internal/common/profiles"
	"investlink-workers/internal/common/scoring"
	"investlink-workers/internal/matching"
)

const serviceName = "investlink-worker-manager"

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func(context.Context) error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation(ctx)
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(operationName+" failed, retrying", map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// dependencies are the shared clients every worker is built from.
type dependencies struct {
	postgres      *database.PostgresClient
	redis         *database.RedisClient
	elasticsearch *database.ElasticsearchClient
	profiles      *profiles.Store
	matcher       *matching.Matcher
	ranker        *matching.Ranker
	aws           *commonaws.Clients
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": serviceName,
		"version": cfg.App.Version,
	})
	log.Info("starting worker manager", map[string]interface{}{"environment": cfg.App.Environment})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spanExporter, err := observability.NewSpanExporter(ctx, cfg.Tracing, os.Stdout)
	if err != nil {
		zapLog.Fatal("span exporter setup failed", zap.Error(err))
	}
	obs, err := observability.New(serviceName,
		observability.WithSpanExporter(spanExporter),
		observability.WithSampleRatio(cfg.Tracing.SampleRatio),
	)
	if err != nil {
		zapLog.Fatal("observability setup failed", zap.Error(err))
	}

	zeebe, err := camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe connection failed", zap.Error(err))
	}
	log.Info("zeebe client connected", map[string]interface{}{"gateway": cfg.Camunda.BrokerAddress})

	deps, err := connect(ctx, cfg, obs, log)
	if err != nil {
		zapLog.Fatal("dependency setup failed", zap.Error(err))
	}

	workers := camunda.NewWorkers(zeebe.GetClient(), serviceName, log)
	registerWorkers(workers, cfg, deps, obs, log)
	log.Info("workers registered", map[string]interface{}{"running": workers.Running()})
	checkRegistry(cfg.Registry.Path, workers.Running(), log)

	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           newServeMux(zeebe, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("health/metrics server listening", map[string]interface{}{"address": cfg.Metrics.Address})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health/metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, stopping workers", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workers.StopAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("error stopping health/metrics server", map[string]interface{}{"error": err.Error()})
	}
	if err := zeebe.Close(); err != nil {
		log.Error("error closing zeebe client", map[string]interface{}{"error": err.Error()})
	}
	deps.close(log)
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("error flushing telemetry", map[string]interface{}{"error": err.Error()})
	}

	log.Info("worker manager stopped gracefully", nil)
}

func connect(ctx context.Context, cfg *config.Config, obs *observability.Observability, log logger.Logger) (*dependencies, error) {
	deps := &dependencies{}

	err := retryWithBackoff(ctx, func(ctx context.Context) error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		deps.postgres = pg
		return nil
	}, 15, 2*time.Second, log, "postgres connection")
	if err != nil {
		return nil, err
	}
	if err := deps.postgres.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("postgres migration: %w", err)
	}
	log.Info("postgres connected", nil)

	deps.redis = database.NewRedis(cfg.Database.Redis)
	if err := retryWithBackoff(ctx, deps.redis.Ping, 10, 2*time.Second, log, "redis connection"); err != nil {
		return nil, err
	}
	log.Info("redis connected", nil)

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return nil, err
	}
	if err := retryWithBackoff(ctx, es.Ping, 15, 2*time.Second, log, "elasticsearch connection"); err != nil {
		return nil, err
	}
	deps.elasticsearch = es
	log.Info("elasticsearch connected", nil)

	scorer, err := scoring.NewClient(scoring.Config{
		BaseURL: cfg.Scoring.BaseURL,
		Timeout: config.GetDuration(cfg.Scoring.Timeout),
	}, log, scoring.WithTracerProvider(obs.TracerProvider()))
	if err != nil {
		return nil, err
	}

	deps.matcher = matching.NewMatcher(scorer, log)
	deps.ranker = matching.NewRanker(deps.matcher, cfg.Scoring.MaxConcurrency, scoringLimiter(cfg.Scoring))
	deps.profiles = profiles.NewStore(deps.postgres.DB, deps.redis, config.GetDuration(cfg.Database.Redis.CacheTTL), log)

	n := cfg.Notifications
	if n.Email.Enabled || n.Events.Enabled {
		clients, err := commonaws.NewClients(ctx, n.AWS.Region)
		if err != nil {
			return nil, err
		}
		deps.aws = clients
	}

	return deps, nil
}

// scoringLimiter throttles batch ranking. A zero rate means unthrottled.
func scoringLimiter(cfg config.ScoringConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

func (d *dependencies) close(log logger.Logger) {
	if err := d.redis.Close(); err != nil {
		log.Error("error closing redis", map[string]interface{}{"error": err.Error()})
	}
	if err := d.postgres.Close(); err != nil {
		log.Error("error closing postgres", map[string]interface{}{"error": err.Error()})
	}
}
