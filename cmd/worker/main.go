// Command worker runs the delinquency sweep and consumes bank settlement
// callbacks.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/EduLoan-Engine/internal/bootstrap"
	"github.com/turtacn/EduLoan-Engine/internal/config"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/EduLoan-Engine/internal/interfaces/http"
	"github.com/turtacn/EduLoan-Engine/internal/interfaces/http/handlers"
)

var version = "dev"

const (
	defaultHealthPort = 8081
	startupTimeout    = 30 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz and /metrics")
	once := flag.Bool("once", false, "run a single collections sweep and exit")
	flag.Parse()

	if err := run(*configPath, *healthPort, *once); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

func run(configPath string, healthPort int, once bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logging.SetDefault(logger)
	httpserver.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	infra, err := bootstrap.Open(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	c := bootstrap.Build(bootstrap.Deps{
		Policy:      infra.Policy,
		Repo:        infra.Loans,
		ReadModels:  infra.Cached,
		Locker:      infra.Locks,
		Deduper:     infra.Deduper,
		Publisher:   infra.Publisher(),
		Metrics:     infra.Metrics,
		Settlement:  cfg.Settlement,
		Collections: cfg.Collections,
		Logger:      logger,
	})
	defer func() {
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelDrain()
		if err := c.Settler.Shutdown(drainCtx); err != nil {
			logger.Warn("Scheduled tasks did not drain", logging.Err(err))
		}
	}()

	if once {
		rep, err := c.Sweeper.Sweep(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		logger.Info("Collections sweep complete",
			logging.Int("entered_moratorium", rep.EnteredMoratorium),
			logging.Int("promoted", rep.Promoted),
			logging.Int("assessed", rep.Assessed),
			logging.Int("delinquent", rep.Delinquent),
			logging.Int("npa", rep.NPA),
			logging.Int("failed", rep.Failed))
		return nil
	}

	logger.Info("Starting EduLoan worker",
		logging.String("version", version),
		logging.Duration("sweep_interval", cfg.Collections.Interval),
		logging.Bool("callbacks", infra.Producer != nil))

	var consumer *kafka.Consumer
	if infra.Producer != nil {
		consumer, err = kafka.NewConsumer(kafka.ConsumerFromConfig(cfg.Kafka, kafka.TopicSettlementCallbacks), infra.Producer, logger)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		consumer.Subscribe(kafka.TopicSettlementCallbacks, kafka.SettlementCallbackHandler(c.Disbursement, logger))
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Warn("Kafka consumer close failed", logging.Err(err))
			}
			logger.Info("Kafka consumer stopped",
				logging.Int64("processed", consumer.Processed()),
				logging.Int64("dead_lettered", consumer.DeadLettered()))
		}()
	}

	health := healthServer(infra, healthPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := c.Sweeper.Run(gctx)
		if stderrors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(health.Start)
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancelStop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelStop()
		return health.Stop(stopCtx)
	})

	err = g.Wait()
	logger.Info("Worker stopped")
	return err
}

// healthServer exposes probes and metrics on their own port.
func healthServer(infra *bootstrap.Infrastructure, port int) *httpserver.Server {
	checks := []handlers.HealthChecker{
		handlers.CheckFunc{Component: "postgres", Fn: infra.DB.HealthCheck},
		handlers.CheckFunc{Component: "redis", Fn: infra.Redis.HealthCheck},
	}
	routerCfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, checks...),
		Logger:        infra.Logger,
	}
	if infra.Collector != nil {
		routerCfg.MetricsHandler = infra.Collector.Handler()
		routerCfg.MetricsPath = infra.Config.Metrics.Path
	}

	serverCfg := infra.Config.Server
	serverCfg.Port = port
	return httpserver.NewServer(serverCfg, httpserver.NewRouter(routerCfg), infra.Logger)
}

//Personal.AI order the ending
