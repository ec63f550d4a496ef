package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/domain/scoring"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// MemoryReadModels serves users, learner profiles, courses and providers from
// maps. It also records persisted scores, so it can stand in for the profile
// store and the payout recipient resolver.
type MemoryReadModels struct {
	mu        sync.Mutex
	Users     map[string]*scoring.User
	Profiles  map[string]*scoring.LearnerProfile
	Courses   map[string]*scoring.Course
	Providers map[string]*scoring.TrainingProvider
}

var (
	_ scoring.ProfileStore   = (*MemoryReadModels)(nil)
	_ loan.RecipientResolver = (*MemoryReadModels)(nil)
)

// NewMemoryReadModels returns empty read models.
func NewMemoryReadModels() *MemoryReadModels {
	return &MemoryReadModels{
		Users:     make(map[string]*scoring.User),
		Profiles:  make(map[string]*scoring.LearnerProfile),
		Courses:   make(map[string]*scoring.Course),
		Providers: make(map[string]*scoring.TrainingProvider),
	}
}

func (m *MemoryReadModels) GetUser(_ context.Context, id string) (*scoring.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeSubjectNotFound, "user not found").WithDetail("id=" + id)
	}
	c := *u
	return &c, nil
}

func (m *MemoryReadModels) GetLearnerProfile(_ context.Context, userID string) (*scoring.LearnerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Profiles[userID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (m *MemoryReadModels) GetCourse(_ context.Context, id string) (*scoring.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Courses[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeSubjectNotFound, "course not found").WithDetail("id=" + id)
	}
	out := *c
	return &out, nil
}

func (m *MemoryReadModels) GetProvider(_ context.Context, id string) (*scoring.TrainingProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Providers[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeSubjectNotFound, "provider not found").WithDetail("id=" + id)
	}
	c := *p
	return &c, nil
}

func (m *MemoryReadModels) SaveBorrowerScore(_ context.Context, userID string, score float64, c scoring.BorrowerComponents, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Profiles[userID]
	if !ok {
		p = &scoring.LearnerProfile{UserID: userID}
		m.Profiles[userID] = p
	}
	p.BorrowerScore = score
	p.BorrowerComponents = &c
	p.ScoredAt = &at
	return nil
}

func (m *MemoryReadModels) SaveTPScore(_ context.Context, providerID string, score float64, c scoring.TPComponents, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Providers[providerID]
	if !ok {
		return errors.New(errors.ErrCodeSubjectNotFound, "provider not found").WithDetail("id=" + providerID)
	}
	p.TPScore = score
	p.Components = &c
	p.ScoredAt = &at
	return nil
}

func (m *MemoryReadModels) RecipientFor(_ context.Context, providerID string) (loan.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Providers[providerID]
	if !ok || p.BankAccount == nil {
		return loan.BankAccount{}, errors.New(errors.ErrCodeSubjectNotFound, "provider payout account not found").WithDetail("id=" + providerID)
	}
	return loan.BankAccount{
		AccountName:   p.BankAccount.AccountName,
		AccountNumber: p.BankAccount.AccountNumber,
		IFSC:          p.BankAccount.IFSC,
		BankName:      p.BankAccount.BankName,
	}, nil
}

// UpsertUser stores a copy of u.
func (m *MemoryReadModels) UpsertUser(_ context.Context, u *scoring.User) error {
	if u.ID == "" {
		return errors.InvalidParam("user id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *u
	m.Users[u.ID] = &c
	return nil
}

func (m *MemoryReadModels) UpsertLearnerProfile(_ context.Context, p *scoring.LearnerProfile) error {
	if p.UserID == "" {
		return errors.InvalidParam("profile user id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	m.Profiles[p.UserID] = &c
	return nil
}

func (m *MemoryReadModels) UpsertCourse(_ context.Context, course *scoring.Course) error {
	if course.ID == "" || course.ProviderID == "" {
		return errors.InvalidParam("course id and provider id are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *course
	m.Courses[course.ID] = &c
	return nil
}

func (m *MemoryReadModels) UpsertProvider(_ context.Context, p *scoring.TrainingProvider) error {
	if p.ID == "" {
		return errors.InvalidParam("provider id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	m.Providers[p.ID] = &c
	return nil
}

//Personal.AI order the ending
