// Command apiserver serves the loan API and drives background settlement.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/EduLoan-Engine/internal/bootstrap"
	"github.com/turtacn/EduLoan-Engine/internal/config"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/EduLoan-Engine/internal/interfaces/http"
	"github.com/turtacn/EduLoan-Engine/internal/interfaces/http/handlers"
	"github.com/turtacn/EduLoan-Engine/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var version = "dev"

const (
	startupTimeout = 30 * time.Second
	idleClientTTL  = 10 * time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	migrate := flag.Bool("migrate", false, "apply pending database migrations before serving")
	flag.Parse()

	if err := run(*configPath, *migrate); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

func run(configPath string, migrate bool) error {
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
	if configPath != "" {
		bootstrap.WatchLogLevel(configPath, logger)
	}

	logger.Info("Starting EduLoan API server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	infra, err := bootstrap.Open(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	if migrate {
		if err := infra.DB.RunMigrations(cfg.Database.MigrationPath); err != nil {
			return err
		}
	}
	if err := infra.EnsureTopics(startCtx); err != nil {
		// Brokers with auto-create still accept events; provisioning is best effort.
		logger.Warn("Kafka topic provisioning failed", logging.Err(err))
	}

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

	n, err := c.Settler.Recover(startCtx, infra.Loans)
	if err != nil {
		logger.Error("Settlement recovery failed", logging.Err(err))
	} else {
		logger.Info("Settlement recovery complete", logging.Int("rescheduled", n))
	}

	routerCfg := httpserver.RouterConfig{
		LoanHandler:         handlers.NewLoanHandler(c.Origination, logger),
		DisbursementHandler: handlers.NewDisbursementHandler(c.Disbursement, logger),
		RepaymentHandler:    handlers.NewRepaymentHandler(c.Repayment, logger),
		ReferenceHandler:    handlers.NewReferenceHandler(infra.ReadModels, infra.Cached, infra.Cached, c.Scores, logger),
		HealthHandler:       handlers.NewHealthHandler(version, healthCheckers(infra)...),
		LoggingConfig:       middleware.DefaultLoggingConfig(),
		Logger:              logger,
	}
	if infra.Metrics != nil {
		routerCfg.HTTPMetrics = infra.Metrics
		routerCfg.MetricsHandler = infra.Collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	if cfg.Server.RateLimitRPS > 0 {
		limiter := middleware.NewClientLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, idleClientTTL)
		defer limiter.Stop()
		routerCfg.RateLimiter = limiter
		routerCfg.RateLimitConfig = middleware.DefaultRateLimitConfig()
	}

	srv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err = <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", logging.Err(err))
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if stopErr := srv.Stop(shutdownCtx); stopErr != nil {
		logger.Error("HTTP server shutdown failed", logging.Err(stopErr))
	}
	if stopErr := c.Settler.Shutdown(shutdownCtx); stopErr != nil {
		logger.Warn("Settlement tasks did not drain", logging.Err(stopErr))
	}

	logger.Info("API server stopped")
	return err
}

//Personal.AI order the ending
