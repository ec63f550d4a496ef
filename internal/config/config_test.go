package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"negative redis db", func(c *Config) { c.Redis.DB = -1 }, "redis.db"},
		{"kafka enabled without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"failure rate above one", func(c *Config) { c.Settlement.FailureRate = 1.5 }, "failure_rate"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "text" }, "log.format"},
		{"inverted amount bounds", func(c *Config) { c.Lending.MaxLoanAmount = 5000 }, "lending"},
		{"coverage above 100", func(c *Config) { c.Lending.CGFSSDCoveragePercentage = 120 }, "lending"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLendingConfig_PolicyMatchesDefaults(t *testing.T) {
	cfg := validConfig()
	p, err := cfg.Lending.Policy()
	require.NoError(t, err)

	assert.Equal(t, 8.5, p.MCLRRate)
	assert.Equal(t, "10000", p.MinLoanAmount.String())
	assert.Equal(t, "500", p.LateFee.String())
	assert.Equal(t, 90, p.NPAThresholdDays)
	assert.Equal(t, 1.5, p.RiskBandFor(65).Spread)
}

//Personal.AI order the ending
