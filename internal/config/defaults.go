// Package config provides configuration loading, defaults, and validation for
// the EduLoan engine.
package config

import (
	"time"

	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBDriver   = "pgx"
	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "eduloan"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "eduloan"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "eduloan-group"

	DefaultMetricsNamespace = "eduloan"
	DefaultMetricsPath      = "/metrics"

	DefaultSettlementDelay   = 5 * time.Second
	DefaultSettlementTimeout = 30 * time.Second

	DefaultCollectionsInterval    = time.Hour
	DefaultCollectionsConcurrency = 8

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the default.
// Fields that have already been set (non-zero values) are left unchanged so
// that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = int(cfg.Server.RateLimitRPS*2) + 1
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DefaultDBDriver
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 30 * time.Second
	}
	if cfg.Redis.DedupeTTL == 0 {
		cfg.Redis.DedupeTTL = 24 * time.Hour
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Settlement ────────────────────────────────────────────────────────────
	if cfg.Settlement.Delay == 0 {
		cfg.Settlement.Delay = DefaultSettlementDelay
	}
	if cfg.Settlement.Timeout == 0 {
		cfg.Settlement.Timeout = DefaultSettlementTimeout
	}

	// ── Collections ───────────────────────────────────────────────────────────
	if cfg.Collections.Interval == 0 {
		cfg.Collections.Interval = DefaultCollectionsInterval
	}
	if cfg.Collections.Concurrency == 0 {
		cfg.Collections.Concurrency = DefaultCollectionsConcurrency
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	applyLendingDefaults(&cfg.Lending)
}

// applyLendingDefaults fills the lending section from policy.Default(). A zero
// numeric value cannot be told apart from "unset", so a lending knob can only
// be turned off by choosing a small non-zero value.
func applyLendingDefaults(l *LendingConfig) {
	d := policy.Default()

	if l.MCLRRate == 0 {
		l.MCLRRate = d.MCLRRate
	}
	if len(l.RiskBands) == 0 {
		for _, b := range d.RiskBands {
			l.RiskBands = append(l.RiskBands, RiskBandConfig{Category: string(b.Category), MinScore: b.MinScore, Spread: b.Spread})
		}
	}
	if len(l.GuaranteeTiers) == 0 {
		for _, g := range d.Guarantees {
			l.GuaranteeTiers = append(l.GuaranteeTiers, GuaranteeTierConfig{
				Category: string(g.Category), MinScore: g.MinScore, DepositPercentage: g.DepositPercentage,
			})
		}
	}
	if l.CGFSSDCoveragePercentage == 0 {
		l.CGFSSDCoveragePercentage = d.CGFSSDCoveragePercentage
	}
	if l.RiskBuffer == 0 {
		l.RiskBuffer = d.RiskBuffer
	}
	if l.MinPD == 0 {
		l.MinPD = d.MinPD
	}
	if l.PDScale == 0 {
		l.PDScale = d.PDScale
	}
	if l.StepUpMonths == 0 {
		l.StepUpMonths = d.StepUpMonths
	}
	if l.StepUpPercentage == 0 {
		l.StepUpPercentage = d.StepUpPercentage
	}
	if len(l.Milestones) == 0 {
		for _, m := range d.Milestones {
			l.Milestones = append(l.Milestones, MilestoneConfig{
				Name: m.Name, TargetPercentage: m.TargetPercentage, DisbursementPercentage: m.DisbursementPercentage,
			})
		}
	}
	if l.MinLoanAmount == 0 {
		l.MinLoanAmount = d.MinLoanAmount.InexactFloat64()
	}
	if l.MaxLoanAmount == 0 {
		l.MaxLoanAmount = d.MaxLoanAmount.InexactFloat64()
	}
	if l.DefaultTenureMonths == 0 {
		l.DefaultTenureMonths = d.DefaultTenureMonths
	}
	if l.MoratoriumExtraMonths == 0 {
		l.MoratoriumExtraMonths = d.MoratoriumExtraMonths
	}
	if l.GracePeriodDays == 0 {
		l.GracePeriodDays = d.GracePeriodDays
	}
	if l.EligibilityThreshold == 0 {
		l.EligibilityThreshold = d.EligibilityThreshold
	}
	if l.TPEligibilityThreshold == 0 {
		l.TPEligibilityThreshold = d.TPEligibilityThreshold
	}
	if l.LateFee == 0 {
		l.LateFee = d.LateFee.InexactFloat64()
	}
	if l.NPAThresholdDays == 0 {
		l.NPAThresholdDays = d.NPAThresholdDays
	}
	if l.MaxSettlementRetries == 0 {
		l.MaxSettlementRetries = d.MaxSettlementRetries
	}
}

//Personal.AI order the ending
