package kafka

import (
	"context"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
)

// MessagePublisher is the write side of a Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// EventMetrics counts published events by type and outcome.
type EventMetrics interface {
	ObserveEvent(eventType string, err error)
}

// EventPublisherOption configures an EventPublisher.
type EventPublisherOption func(*EventPublisher)

func WithEventMetrics(m EventMetrics) EventPublisherOption {
	return func(p *EventPublisher) { p.metrics = m }
}

// EventPublisher delivers lifecycle events as envelopes keyed by loan id,
// so every event of one loan lands on one partition in order.
type EventPublisher struct {
	producer MessagePublisher
	metrics  EventMetrics
}

func NewEventPublisher(p MessagePublisher, opts ...EventPublisherOption) *EventPublisher {
	ep := &EventPublisher{producer: p}
	for _, opt := range opts {
		opt(ep)
	}
	return ep
}

func (p *EventPublisher) Publish(ctx context.Context, evt loan.Event) error {
	err := p.publish(ctx, evt)
	if p.metrics != nil {
		p.metrics.ObserveEvent(string(evt.Type), err)
	}
	return err
}

func (p *EventPublisher) publish(ctx context.Context, evt loan.Event) error {
	env, err := EnvelopeFromEvent(evt)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(TopicForEvent(evt.Type), evt.LoanID)
	if err != nil {
		return err
	}
	msg.Headers["loan_id"] = evt.LoanID
	return p.producer.Publish(ctx, msg)
}

//Personal.AI order the ending
