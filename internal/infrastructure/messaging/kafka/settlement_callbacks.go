package kafka

import (
	"context"

	"github.com/turtacn/EduLoan-Engine/internal/application/disbursement"
	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// CallbackService applies bank settlement verdicts.
type CallbackService interface {
	HandleSettlementCallback(ctx context.Context, cb disbursement.SettlementCallback) (*loan.Disbursement, error)
}

// NewSettlementCallbackMessage wraps a bank verdict for the callback topic,
// keyed by disbursement id.
func NewSettlementCallbackMessage(cb disbursement.SettlementCallback) (*ProducerMessage, error) {
	env, err := NewEventEnvelope(EventTypeSettlementCallback, "bank-gateway", cb)
	if err != nil {
		return nil, err
	}
	return env.ToMessage(TopicSettlementCallbacks, cb.DisbursementID.String())
}

// SettlementCallbackHandler decodes callback envelopes and hands them to
// svc. Malformed messages fail permanently and go to the dead letter topic.
func SettlementCallbackHandler(svc CallbackService, log logging.Logger) MessageHandler {
	return func(ctx context.Context, msg *Message) error {
		env, err := MessageToEventEnvelope(msg)
		if err != nil {
			return err
		}
		if env.EventType != EventTypeSettlementCallback {
			return errors.New(errors.ErrCodeValidation, "unexpected event type on callback topic").WithDetail(env.EventType)
		}
		var cb disbursement.SettlementCallback
		if err := env.DecodePayload(&cb); err != nil {
			return err
		}

		d, err := svc.HandleSettlementCallback(ctx, cb)
		if err != nil {
			return err
		}
		log.Info("Settlement callback applied",
			logging.DisbursementID(d.ID.String()),
			logging.LoanID(d.LoanID.String()),
			logging.String("status", string(d.Status)),
			logging.String("event_id", env.EventID))
		return nil
	}
}

//Personal.AI order the ending
