package scoring

import (
	"context"
	"time"

	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// ProfileStore persists freshly computed scores onto the subject's profile.
type ProfileStore interface {
	SaveBorrowerScore(ctx context.Context, userID string, score float64, c BorrowerComponents, at time.Time) error
	SaveTPScore(ctx context.Context, providerID string, score float64, c TPComponents, at time.Time) error
}

// Locker serializes read-modify-write work on one key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Metrics receives computed scores.
type Metrics interface {
	ObserveScore(subject string, score float64)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine scores borrowers and training providers.
type Engine struct {
	policy  *policy.Policy
	store   ProfileStore
	locker  Locker
	metrics Metrics
	log     logging.Logger
	now     func() time.Time
}

// NewEngine builds an Engine. store and locker may be nil, in which case
// scores are not persisted and calls are not serialized.
func NewEngine(p *policy.Policy, store ProfileStore, locker Locker, log logging.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logging.NewNopLogger()
	}
	e := &Engine{
		policy: p,
		store:  store,
		locker: locker,
		log:    log.Named("scoring"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScoreBorrower scores user against the optional profile and course, persists
// the result and returns it. Ineligibility is reported in the result.
func (e *Engine) ScoreBorrower(ctx context.Context, user *User, profile *LearnerProfile, course *Course) (*BorrowerResult, error) {
	if user == nil || user.ID == "" {
		return nil, errors.New(errors.ErrCodeSubjectNotFound, "borrower not found")
	}
	release, err := e.acquire(ctx, "score:borrower:"+user.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	comps := ComputeBorrowerComponents(user, profile, course)
	score := comps.Total()
	res := &BorrowerResult{
		UserID:          user.ID,
		Score:           score,
		Components:      comps,
		RiskCategory:    e.policy.RiskBandFor(score).Category,
		Eligible:        score >= e.policy.EligibilityThreshold,
		Recommendations: BorrowerRecommendations(e.policy, score, comps),
		ScoredAt:        e.now(),
	}

	if e.store != nil {
		if err := e.store.SaveBorrowerScore(ctx, user.ID, score, comps, res.ScoredAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeScoringFailed, "failed to persist borrower score")
		}
	}
	if profile != nil {
		profile.BorrowerScore = score
		profile.BorrowerComponents = &comps
		profile.ScoredAt = &res.ScoredAt
	}
	if e.metrics != nil {
		e.metrics.ObserveScore("borrower", score)
	}
	e.log.Debug("borrower scored",
		logging.String("user_id", user.ID),
		logging.Float64("score", score),
		logging.String("risk_category", string(res.RiskCategory)),
		logging.Bool("eligible", res.Eligible))
	return res, nil
}

// ScoreTP scores a training provider and persists the result.
func (e *Engine) ScoreTP(ctx context.Context, tp *TrainingProvider) (*TPResult, error) {
	if tp == nil || tp.ID == "" {
		return nil, errors.New(errors.ErrCodeSubjectNotFound, "training provider not found")
	}
	release, err := e.acquire(ctx, "score:provider:"+tp.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	now := e.now()
	comps := ComputeTPComponents(tp, now)
	score := comps.Total()
	res := &TPResult{
		ProviderID:          tp.ID,
		Score:               score,
		Components:          comps,
		PerformanceCategory: e.policy.GuaranteeTierFor(score).Category,
		Eligible:            score >= e.policy.TPEligibilityThreshold,
		Recommendations:     TPRecommendations(e.policy, score, comps),
		ScoredAt:            now,
	}

	if e.store != nil {
		if err := e.store.SaveTPScore(ctx, tp.ID, score, comps, now); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeScoringFailed, "failed to persist provider score")
		}
	}
	tp.TPScore = score
	tp.Components = &comps
	tp.ScoredAt = &res.ScoredAt
	if e.metrics != nil {
		e.metrics.ObserveScore("provider", score)
	}
	e.log.Debug("provider scored",
		logging.String("provider_id", tp.ID),
		logging.Float64("score", score),
		logging.String("category", string(res.PerformanceCategory)))
	return res, nil
}

func (e *Engine) acquire(ctx context.Context, key string) (func(), error) {
	if e.locker == nil {
		return func() {}, nil
	}
	release, err := e.locker.Acquire(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeScoringFailed, "failed to lock scoring subject")
	}
	return release, nil
}

//Personal.AI order the ending
