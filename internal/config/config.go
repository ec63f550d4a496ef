// Package config defines all configuration structures for the EduLoan engine.
// No I/O or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"` // 0 disables per-client limiting
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // "pgx" | "postgres"
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	DedupeTTL    time.Duration `mapstructure:"dedupe_ttl"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	AutoOffsetReset string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	TimeoutMS       int      `mapstructure:"timeout_ms"`
	ProducerRetries int      `mapstructure:"producer_retries"`
	BatchSize       int      `mapstructure:"batch_size"`
	Enabled         bool     `mapstructure:"enabled"`
	SASLMechanism   string   `mapstructure:"sasl_mechanism"` // "", "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"
	SASLUsername    string   `mapstructure:"sasl_username"`
	SASLPassword    string   `mapstructure:"sasl_password"`
	Replication     int      `mapstructure:"replication"` // topic provisioning
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// SettlementConfig controls the background disbursement settlement driver.
type SettlementConfig struct {
	Delay           time.Duration `mapstructure:"delay"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MoratoriumDelay time.Duration `mapstructure:"moratorium_delay"`
	FailureRate     float64       `mapstructure:"failure_rate"` // simulated bank gateway only
}

// CollectionsConfig controls the delinquency sweep run by the worker.
type CollectionsConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// RiskBandConfig is the config form of policy.RiskBand.
type RiskBandConfig struct {
	Category string  `mapstructure:"category"`
	MinScore float64 `mapstructure:"min_score"`
	Spread   float64 `mapstructure:"spread"`
}

// GuaranteeTierConfig is the config form of policy.GuaranteeTier.
type GuaranteeTierConfig struct {
	Category          string  `mapstructure:"category"`
	MinScore          float64 `mapstructure:"min_score"`
	DepositPercentage float64 `mapstructure:"deposit_percentage"`
}

// MilestoneConfig is the config form of policy.MilestoneDefinition.
type MilestoneConfig struct {
	Name                   string  `mapstructure:"name"`
	TargetPercentage       float64 `mapstructure:"target_percentage"`
	DisbursementPercentage float64 `mapstructure:"disbursement_percentage"`
}

// LendingConfig carries every lending threshold and table. It is converted
// once into an immutable policy.Policy by Policy().
type LendingConfig struct {
	MCLRRate                 float64               `mapstructure:"mclr_rate"`
	RiskBands                []RiskBandConfig      `mapstructure:"risk_bands"`
	GuaranteeTiers           []GuaranteeTierConfig `mapstructure:"guarantee_tiers"`
	CGFSSDCoveragePercentage float64               `mapstructure:"cgfssd_coverage_percentage"`
	RiskBuffer               float64               `mapstructure:"risk_buffer"`
	MinPD                    float64               `mapstructure:"min_pd"`
	PDScale                  float64               `mapstructure:"pd_scale"`
	StepUpMonths             int                   `mapstructure:"step_up_months"`
	StepUpPercentage         float64               `mapstructure:"step_up_percentage"`
	Milestones               []MilestoneConfig     `mapstructure:"milestones"`
	MinLoanAmount            float64               `mapstructure:"min_loan_amount"`
	MaxLoanAmount            float64               `mapstructure:"max_loan_amount"`
	DefaultTenureMonths      int                   `mapstructure:"default_tenure_months"`
	MoratoriumExtraMonths    int                   `mapstructure:"moratorium_extra_months"`
	GracePeriodDays          int                   `mapstructure:"grace_period_days"`
	EligibilityThreshold     float64               `mapstructure:"eligibility_threshold"`
	TPEligibilityThreshold   float64               `mapstructure:"tp_eligibility_threshold"`
	LateFee                  float64               `mapstructure:"late_fee"`
	NPAThresholdDays         int                   `mapstructure:"npa_threshold_days"`
	MaxSettlementRetries     int                   `mapstructure:"max_settlement_retries"`
}

// Policy converts the lending section into a validated policy.Policy.
func (l LendingConfig) Policy() (*policy.Policy, error) {
	p := policy.Policy{
		MCLRRate:                 l.MCLRRate,
		CGFSSDCoveragePercentage: l.CGFSSDCoveragePercentage,
		RiskBuffer:               l.RiskBuffer,
		MinPD:                    l.MinPD,
		PDScale:                  l.PDScale,
		StepUpMonths:             l.StepUpMonths,
		StepUpPercentage:         l.StepUpPercentage,
		MinLoanAmount:            decimal.NewFromFloat(l.MinLoanAmount),
		MaxLoanAmount:            decimal.NewFromFloat(l.MaxLoanAmount),
		DefaultTenureMonths:      l.DefaultTenureMonths,
		MoratoriumExtraMonths:    l.MoratoriumExtraMonths,
		GracePeriodDays:          l.GracePeriodDays,
		EligibilityThreshold:     l.EligibilityThreshold,
		TPEligibilityThreshold:   l.TPEligibilityThreshold,
		LateFee:                  decimal.NewFromFloat(l.LateFee),
		NPAThresholdDays:         l.NPAThresholdDays,
		MaxSettlementRetries:     l.MaxSettlementRetries,
	}
	for _, b := range l.RiskBands {
		p.RiskBands = append(p.RiskBands, policy.RiskBand{
			Category: policy.RiskCategory(b.Category), MinScore: b.MinScore, Spread: b.Spread,
		})
	}
	for _, g := range l.GuaranteeTiers {
		p.Guarantees = append(p.Guarantees, policy.GuaranteeTier{
			Category: policy.PerformanceCategory(g.Category), MinScore: g.MinScore, DepositPercentage: g.DepositPercentage,
		})
	}
	for _, m := range l.Milestones {
		p.Milestones = append(p.Milestones, policy.MilestoneDefinition{
			Name: m.Name, TargetPercentage: m.TargetPercentage, DisbursementPercentage: m.DisbursementPercentage,
		})
	}
	return policy.New(p)
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure. Every infrastructure component
// and application service reads its settings from the relevant sub-struct.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Settlement  SettlementConfig  `mapstructure:"settlement"`
	Collections CollectionsConfig `mapstructure:"collections"`
	Log         LogConfig         `mapstructure:"log"`
	Lending     LendingConfig     `mapstructure:"lending"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("config: server.rate_limit_rps must not be negative")
	}

	// Database
	switch c.Database.Driver {
	case "pgx", "postgres":
	default:
		return fmt.Errorf("config: database.driver %q is invalid; expected pgx|postgres", c.Database.Driver)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	// Kafka
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}

	// Settlement
	if c.Settlement.Timeout <= 0 {
		return fmt.Errorf("config: settlement.timeout must be positive")
	}
	if c.Settlement.FailureRate < 0 || c.Settlement.FailureRate > 1 {
		return fmt.Errorf("config: settlement.failure_rate must be within [0, 1]")
	}

	// Collections
	if c.Collections.Concurrency < 1 {
		return fmt.Errorf("config: collections.concurrency must be >= 1, got %d", c.Collections.Concurrency)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Lending
	if _, err := c.Lending.Policy(); err != nil {
		return fmt.Errorf("config: lending: %w", err)
	}

	return nil
}

//Personal.AI order the ending
