package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultServerMode, cfg.Server.Mode)
	assert.Equal(t, DefaultDBName, cfg.Database.DBName)
	assert.Equal(t, DefaultSettlementTimeout, cfg.Settlement.Timeout)
	assert.Equal(t, DefaultCollectionsConcurrency, cfg.Collections.Concurrency)
	assert.Equal(t, 36, cfg.Lending.DefaultTenureMonths)
	assert.Equal(t, 10000.0, cfg.Lending.MinLoanAmount)
	assert.Equal(t, 750000.0, cfg.Lending.MaxLoanAmount)
	assert.Equal(t, 1.2, cfg.Lending.RiskBuffer)
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 1234
	cfg.Lending.MCLRRate = 7.25
	cfg.Lending.GracePeriodDays = 10
	ApplyDefaults(cfg)

	assert.Equal(t, 1234, cfg.Server.Port)
	assert.Equal(t, 7.25, cfg.Lending.MCLRRate)
	assert.Equal(t, 10, cfg.Lending.GracePeriodDays)
}

func TestApplyDefaults_NilIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

//Personal.AI order the ending
