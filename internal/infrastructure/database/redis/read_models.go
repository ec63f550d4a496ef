package redis

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/domain/scoring"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// ReadModelStore is the durable source behind CachedReadModels.
type ReadModelStore interface {
	GetUser(ctx context.Context, id string) (*scoring.User, error)
	GetLearnerProfile(ctx context.Context, userID string) (*scoring.LearnerProfile, error)
	GetCourse(ctx context.Context, id string) (*scoring.Course, error)
	GetProvider(ctx context.Context, id string) (*scoring.TrainingProvider, error)
	SaveBorrowerScore(ctx context.Context, userID string, score float64, c scoring.BorrowerComponents, at time.Time) error
	SaveTPScore(ctx context.Context, providerID string, score float64, c scoring.TPComponents, at time.Time) error
}

// CachedReadModels serves origination reads through the cache. Score writes
// go to the store first and then evict the affected entry. When Redis is
// unavailable every read falls through to the store.
type CachedReadModels struct {
	store ReadModelStore
	cache Cache
	ttl   time.Duration
	log   logging.Logger
}

var (
	_ scoring.ProfileStore   = (*CachedReadModels)(nil)
	_ loan.RecipientResolver = (*CachedReadModels)(nil)
)

func NewCachedReadModels(store ReadModelStore, cache Cache, ttl time.Duration, log logging.Logger) *CachedReadModels {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedReadModels{store: store, cache: cache, ttl: ttl, log: log}
}

func userKey(id string) string     { return "user:" + id }
func profileKey(id string) string  { return "profile:" + id }
func courseKey(id string) string   { return "course:" + id }
func providerKey(id string) string { return "provider:" + id }

// load reports found=false when the store holds nothing for key.
func (c *CachedReadModels) load(ctx context.Context, key string, dest interface{}, fetch func(ctx context.Context) (interface{}, error)) (bool, error) {
	var loadErr error
	err := c.cache.GetOrSet(ctx, key, dest, c.ttl, func(ctx context.Context) (interface{}, error) {
		v, err := fetch(ctx)
		loadErr = err
		return v, err
	})
	switch {
	case err == nil:
		return true, nil
	case loadErr != nil:
		return false, loadErr
	case stderrors.Is(err, ErrCacheMiss):
		return false, nil
	case errors.IsCode(err, errors.ErrCodeCacheError), errors.IsCode(err, errors.ErrCodeSerialization):
		c.log.Warn("Read model cache unavailable, reading store", logging.String("key", key), logging.Err(err))
		v, err := fetch(ctx)
		if err != nil || v == nil {
			return false, err
		}
		return true, copyInto(v, dest)
	default:
		return false, err
	}
}

func (c *CachedReadModels) GetUser(ctx context.Context, id string) (*scoring.User, error) {
	var u scoring.User
	found, err := c.load(ctx, userKey(id), &u, func(ctx context.Context) (interface{}, error) {
		return c.store.GetUser(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New(errors.ErrCodeSubjectNotFound, "user not found").WithDetail("id=" + id)
	}
	return &u, nil
}

// GetLearnerProfile keeps the store's (nil, nil) contract for a learner
// without a profile; the absence itself is cached briefly.
func (c *CachedReadModels) GetLearnerProfile(ctx context.Context, userID string) (*scoring.LearnerProfile, error) {
	var p scoring.LearnerProfile
	found, err := c.load(ctx, profileKey(userID), &p, func(ctx context.Context) (interface{}, error) {
		profile, err := c.store.GetLearnerProfile(ctx, userID)
		if profile == nil {
			return nil, err
		}
		return profile, err
	})
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

func (c *CachedReadModels) GetCourse(ctx context.Context, id string) (*scoring.Course, error) {
	var course scoring.Course
	found, err := c.load(ctx, courseKey(id), &course, func(ctx context.Context) (interface{}, error) {
		return c.store.GetCourse(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New(errors.ErrCodeSubjectNotFound, "course not found").WithDetail("id=" + id)
	}
	return &course, nil
}

func (c *CachedReadModels) GetProvider(ctx context.Context, id string) (*scoring.TrainingProvider, error) {
	var p scoring.TrainingProvider
	found, err := c.load(ctx, providerKey(id), &p, func(ctx context.Context) (interface{}, error) {
		return c.store.GetProvider(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New(errors.ErrCodeSubjectNotFound, "provider not found").WithDetail("id=" + id)
	}
	return &p, nil
}

func (c *CachedReadModels) RecipientFor(ctx context.Context, providerID string) (loan.BankAccount, error) {
	p, err := c.GetProvider(ctx, providerID)
	if err != nil {
		return loan.BankAccount{}, err
	}
	if p.BankAccount == nil {
		return loan.BankAccount{}, errors.New(errors.ErrCodeSubjectNotFound, "provider payout account not found").WithDetail("id=" + providerID)
	}
	return loan.BankAccount(*p.BankAccount), nil
}

func (c *CachedReadModels) SaveBorrowerScore(ctx context.Context, userID string, score float64, comp scoring.BorrowerComponents, at time.Time) error {
	if err := c.store.SaveBorrowerScore(ctx, userID, score, comp, at); err != nil {
		return err
	}
	c.evict(ctx, profileKey(userID))
	return nil
}

func (c *CachedReadModels) SaveTPScore(ctx context.Context, providerID string, score float64, comp scoring.TPComponents, at time.Time) error {
	if err := c.store.SaveTPScore(ctx, providerID, score, comp, at); err != nil {
		return err
	}
	c.evict(ctx, providerKey(providerID))
	return nil
}

// Invalidate drops cached reference data after an upsert.
func (c *CachedReadModels) Invalidate(ctx context.Context, kind, id string) {
	switch kind {
	case "user":
		c.evict(ctx, userKey(id))
	case "profile":
		c.evict(ctx, profileKey(id))
	case "course":
		c.evict(ctx, courseKey(id))
	case "provider":
		c.evict(ctx, providerKey(id))
	}
}

func (c *CachedReadModels) evict(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		c.log.Warn("Failed to evict read model", logging.String("key", key), logging.Err(err))
	}
}

//Personal.AI order the ending
