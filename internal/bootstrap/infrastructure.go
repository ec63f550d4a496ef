// Package bootstrap assembles the engine from configuration. The apiserver
// and worker binaries share it so both processes see the same wiring.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/EduLoan-Engine/internal/config"
	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/database/redis"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/prometheus"
)

// ReadModelCacheTTL bounds how stale a cached borrower, course or provider
// record may be.
const ReadModelCacheTTL = 5 * time.Minute

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	out := cfg.Output
	if out == "" {
		out = "stdout"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            cfg.Level,
		Format:           cfg.Format,
		OutputPaths:      []string{out},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// WatchLogLevel re-applies log.level from the file at path whenever it
// changes. Other settings, the lending policy included, keep the values the
// process started with.
func WatchLogLevel(path string, log logging.Logger) {
	config.Watch(path, func(cfg *config.Config) {
		if logging.SetLevel(log, cfg.Log.Level) {
			log.Info("log level reloaded", logging.String("level", cfg.Log.Level))
		}
	}, func(err error) {
		log.Warn("ignoring invalid configuration change", logging.Err(err))
	})
}

// Infrastructure owns every external connection of a process.
type Infrastructure struct {
	Config *config.Config
	Policy *policy.Policy
	Logger logging.Logger

	DB       *postgres.Connection
	Redis    *redis.Client
	Producer *kafka.Producer // nil when kafka.enabled is false

	Collector prometheus.MetricsCollector // nil when metrics.enabled is false
	Metrics   *prometheus.LendingMetrics  // nil-safe

	Loans      *repositories.LoanRepo
	ReadModels *repositories.ReadModelRepo
	Cached     *redis.CachedReadModels
	Locks      *redis.LockFactory
	Deduper    *redis.Deduper
}

// Open connects PostgreSQL, Redis and, when enabled, Kafka and the metrics
// registry. Anything opened before a failure is closed again.
func Open(ctx context.Context, cfg *config.Config, log logging.Logger) (_ *Infrastructure, err error) {
	p, err := cfg.Lending.Policy()
	if err != nil {
		return nil, fmt.Errorf("lending policy: %w", err)
	}
	infra := &Infrastructure{Config: cfg, Policy: p, Logger: log}
	defer func() {
		if err != nil {
			infra.Close()
		}
	}()

	if cfg.Metrics.Enabled {
		infra.Collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		infra.Metrics = prometheus.NewLendingMetrics(infra.Collector)
	}

	infra.DB, err = postgres.NewConnection(postgres.FromConfig(cfg.Database), log)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	infra.Loans = repositories.NewLoanRepo(infra.DB, log)
	infra.ReadModels = repositories.NewReadModelRepo(infra.DB, log)

	infra.Redis, err = redis.NewClient(redis.FromConfig(cfg.Redis), log)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	infra.Locks = redis.NewLockFactory(infra.Redis, log, redis.WithLockTTL(cfg.Redis.LockTTL))
	infra.Deduper = redis.NewDeduper(infra.Redis, cfg.Redis.DedupeTTL)
	infra.Cached = redis.NewCachedReadModels(infra.ReadModels, redis.NewRedisCache(infra.Redis, log, redis.WithDefaultTTL(ReadModelCacheTTL)), ReadModelCacheTTL, log)

	if cfg.Kafka.Enabled {
		infra.Producer, err = kafka.NewProducer(kafka.ProducerFromConfig(cfg.Kafka), log)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
	}

	log.Info("Infrastructure ready",
		logging.Bool("kafka", infra.Producer != nil),
		logging.Bool("metrics", infra.Collector != nil))
	return infra, nil
}

// EnsureTopics provisions the engine's topics. It is a no-op when Kafka is
// disabled.
func (i *Infrastructure) EnsureTopics(ctx context.Context) error {
	if i.Producer == nil {
		return nil
	}
	tm, err := kafka.NewTopicManager(i.Config.Kafka.Brokers, i.Logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(i.Config.Kafka.Replication))
}

// Publisher returns the lifecycle event publisher, or nil when Kafka is
// disabled.
func (i *Infrastructure) Publisher() Publisher {
	if i.Producer == nil {
		return nil
	}
	return kafka.NewEventPublisher(i.Producer, kafka.WithEventMetrics(i.Metrics))
}

// Close releases connections in reverse order of opening.
func (i *Infrastructure) Close() {
	if i.Producer != nil {
		if err := i.Producer.Close(); err != nil {
			i.Logger.Warn("Kafka producer close failed", logging.Err(err))
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			i.Logger.Warn("Redis close failed", logging.Err(err))
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			i.Logger.Warn("Postgres close failed", logging.Err(err))
		}
	}
}

//Personal.AI order the ending
