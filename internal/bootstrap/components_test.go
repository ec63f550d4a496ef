package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EduLoan-Engine/internal/application/origination"
	"github.com/turtacn/EduLoan-Engine/internal/application/settlement"
	"github.com/turtacn/EduLoan-Engine/internal/config"
	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
	"github.com/turtacn/EduLoan-Engine/internal/testutil"
	"github.com/turtacn/EduLoan-Engine/pkg/keymutex"
)

func buildInMemory(t *testing.T, publisher Publisher) (*Components, *testutil.MemoryLoanRepo) {
	t.Helper()
	repo := testutil.NewMemoryLoanRepo()
	models := testutil.NewMemoryReadModels()
	testutil.SeedLending(models, time.Now().UTC())

	c := Build(Deps{
		Policy:     policy.Default(),
		Repo:       repo,
		ReadModels: models,
		Locker:     keymutex.New(),
		Publisher:  publisher,
		Gateway:    settlement.NewSimulatedGateway(0, 0, 1),
		Settlement: config.SettlementConfig{Timeout: time.Second, MoratoriumDelay: time.Hour},
		Logger:     testutil.NewMockLogger(),
	})
	t.Cleanup(func() { _ = c.Settler.Shutdown(context.Background()) })
	return c, repo
}

func TestBuild_OriginationThroughFirstSettlement(t *testing.T) {
	events := testutil.NewEventRecorder()
	c, _ := buildInMemory(t, events)
	ctx := context.Background()

	res, err := c.Origination.Apply(ctx, origination.ApplyRequest{
		LearnerID:       testutil.StrongLearnerID,
		CourseID:        testutil.CourseID,
		RequestedAmount: decimal.NewFromInt(120000),
		TenureMonths:    12,
	})
	require.NoError(t, err)
	require.True(t, res.Eligible)
	id := res.Loan.ID

	_, err = c.Origination.Submit(ctx, id)
	require.NoError(t, err)
	_, err = c.Origination.MarkUnderReview(ctx, id)
	require.NoError(t, err)
	_, err = c.Origination.SendToBank(ctx, id)
	require.NoError(t, err)
	l, err := c.Origination.RecordBankDecision(ctx, id, origination.BankDecision{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, loan.StatusBankApproved, l.Status)

	auth, err := c.Disbursement.Activate(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, auth.Disbursement)

	c.Settler.Wait()

	d, err := c.Disbursement.GetDisbursement(ctx, auth.Disbursement.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.DisbursementCompleted, d.Status)
	assert.NotEmpty(t, d.BankReference)

	assert.NotEmpty(t, events.Events())
}

func TestBuild_NilPublisherIsTolerated(t *testing.T) {
	c, repo := buildInMemory(t, nil)
	ctx := context.Background()

	l := testutil.ApprovedLoan("100000", time.Now().UTC())
	repo.Put(l)

	_, err := c.Disbursement.Activate(ctx, l.ID)
	require.NoError(t, err)
	c.Settler.Wait()

	rep, err := c.Sweeper.Sweep(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, rep.Failed)
}

func TestNewLogger_DefaultsToStdout(t *testing.T) {
	log, err := NewLogger(config.LogConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestWatchLogLevel_AppliesFileChanges(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "engine.log")
	cfgPath := filepath.Join(dir, "eduloan.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: error\n"), 0o600))

	log, err := NewLogger(config.LogConfig{Level: "error", Format: "json", Output: out})
	require.NoError(t, err)
	WatchLogLevel(cfgPath, log)

	tmp := cfgPath + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("log:\n  level: info\n"), 0o600))
	require.NoError(t, os.Rename(tmp, cfgPath))

	require.Eventually(t, func() bool {
		b, err := os.ReadFile(out)
		return err == nil && strings.Contains(string(b), "log level reloaded")
	}, 5*time.Second, 20*time.Millisecond)
}

//Personal.AI order the ending
