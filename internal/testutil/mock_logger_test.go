package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	assert.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)

	logger.Clear()
	assert.Len(t, logger.GetMessages(), 0)

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_DerivedLoggersShareBuffer(t *testing.T) {
	root := testutil.NewMockLogger()
	child := root.Named("loan").Named("machine").With(logging.LoanID("l-1"))

	child.Warn("stale version", logging.Int("version", 3))

	msgs := root.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "loan.machine", msgs[0].Logger)
	v, ok := msgs[0].Field("loan_id")
	assert.True(t, ok)
	assert.Equal(t, "l-1", v)
	_, ok = msgs[0].Field("missing")
	assert.False(t, ok)
}

//Personal.AI order the ending
