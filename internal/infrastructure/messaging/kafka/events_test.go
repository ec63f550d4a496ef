package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/internal/testutil"
)

func TestEventPublisher_RoutesAndKeysByLoan(t *testing.T) {
	w := &mockKafkaWriter{}
	pub := NewEventPublisher(NewProducerWithWriter(w, ProducerConfig{Brokers: []string{"b:9092"}}, logging.NewNopLogger()))
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	l := testutil.ApprovedLoan("100000", now)
	require.NoError(t, pub.Publish(ctx, loan.NewEvent(loan.EventLoanActivated, l, now, nil)))

	d := &loan.Disbursement{ID: l.ID, LoanID: l.ID, MilestoneNumber: 0, Status: loan.DisbursementCompleted, BankReference: "UTR1"}
	require.NoError(t, pub.Publish(ctx, loan.NewDisbursementEvent(loan.EventDisbursementCompleted, d, now)))

	msgs := w.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, TopicLoanEvents, msgs[0].Topic)
	assert.Equal(t, TopicDisbursementEvents, msgs[1].Topic)
	for _, m := range msgs {
		assert.Equal(t, l.ID.String(), string(m.Key))
	}

	env, err := MessageToEventEnvelope(&Message{Value: msgs[1].Value})
	require.NoError(t, err)
	assert.Equal(t, string(loan.EventDisbursementCompleted), env.EventType)
	assert.Equal(t, l.ID.String(), env.Metadata["loan_id"])

	var evt loan.Event
	require.NoError(t, env.DecodePayload(&evt))
	assert.Equal(t, "UTR1", evt.Payload["bank_reference"])
}

type eventCounter struct {
	ok, failed []string
}

func (c *eventCounter) ObserveEvent(eventType string, err error) {
	if err != nil {
		c.failed = append(c.failed, eventType)
		return
	}
	c.ok = append(c.ok, eventType)
}

func TestEventPublisher_PropagatesFailure(t *testing.T) {
	counter := &eventCounter{}
	pub := NewEventPublisher(&recordingPublisher{err: ErrPublishFailed}, WithEventMetrics(counter))
	err := pub.Publish(context.Background(), loan.Event{Type: loan.EventLoanClosed, LoanID: "x"})
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.Equal(t, []string{string(loan.EventLoanClosed)}, counter.failed)
	assert.Empty(t, counter.ok)
}

func TestEventPublisher_CountsSuccess(t *testing.T) {
	counter := &eventCounter{}
	pub := NewEventPublisher(&recordingPublisher{}, WithEventMetrics(counter))
	require.NoError(t, pub.Publish(context.Background(), loan.Event{Type: loan.EventLoanClosed, LoanID: "x"}))
	assert.Equal(t, []string{string(loan.EventLoanClosed)}, counter.ok)
}

//Personal.AI order the ending
