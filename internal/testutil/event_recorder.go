package testutil

import (
	"context"
	"sync"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
)

// EventRecorder captures published events in order.
type EventRecorder struct {
	mu     sync.Mutex
	events []loan.Event
	err    error
}

// NewEventRecorder returns an empty recorder.
func NewEventRecorder() *EventRecorder { return &EventRecorder{} }

// FailWith makes Publish return err after recording the event.
func (r *EventRecorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *EventRecorder) Publish(_ context.Context, evt loan.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

// Events returns a copy of everything published so far.
func (r *EventRecorder) Events() []loan.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]loan.Event(nil), r.events...)
}

// Types returns the published event types in order.
func (r *EventRecorder) Types() []loan.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]loan.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Has reports whether an event of type t was published.
func (r *EventRecorder) Has(t loan.EventType) bool {
	for _, got := range r.Types() {
		if got == t {
			return true
		}
	}
	return false
}

//Personal.AI order the ending
