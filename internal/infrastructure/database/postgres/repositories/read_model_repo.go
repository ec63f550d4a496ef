package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/domain/scoring"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// ReadModelRepo serves the borrower, course and provider records that
// origination reads, and stores the scores computed from them.
type ReadModelRepo struct {
	baseRepo
}

var (
	_ scoring.ProfileStore   = (*ReadModelRepo)(nil)
	_ loan.RecipientResolver = (*ReadModelRepo)(nil)
)

func NewReadModelRepo(conn *postgres.Connection, log logging.Logger) *ReadModelRepo {
	return &ReadModelRepo{baseRepo: baseRepo{conn: conn, log: log}}
}

func subjectNotFound(kind, id string) error {
	return errors.New(errors.ErrCodeSubjectNotFound, kind+" not found").WithDetail("id=" + id)
}

func (r *ReadModelRepo) getDocument(ctx context.Context, query, id string, v interface{}) error {
	var doc []byte
	if err := r.executor().QueryRowContext(ctx, query, id).Scan(&doc); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return err
		}
		return dbErr(err, "failed to load read model")
	}
	return decode(doc, v)
}

func (r *ReadModelRepo) GetUser(ctx context.Context, id string) (*scoring.User, error) {
	var u scoring.User
	err := r.getDocument(ctx, `SELECT document FROM users WHERE id = $1`, id, &u)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, subjectNotFound("user", id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetLearnerProfile returns nil, nil for a user who has not filled in a
// profile yet; scoring treats that as all-missing.
func (r *ReadModelRepo) GetLearnerProfile(ctx context.Context, userID string) (*scoring.LearnerProfile, error) {
	var p scoring.LearnerProfile
	err := r.getDocument(ctx, `SELECT document FROM learner_profiles WHERE user_id = $1`, userID, &p)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ReadModelRepo) GetCourse(ctx context.Context, id string) (*scoring.Course, error) {
	var c scoring.Course
	err := r.getDocument(ctx, `SELECT document FROM courses WHERE id = $1`, id, &c)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, subjectNotFound("course", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ReadModelRepo) GetProvider(ctx context.Context, id string) (*scoring.TrainingProvider, error) {
	var p scoring.TrainingProvider
	err := r.getDocument(ctx, `SELECT document FROM training_providers WHERE id = $1`, id, &p)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, subjectNotFound("provider", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RecipientFor returns the payout account registered for a provider.
func (r *ReadModelRepo) RecipientFor(ctx context.Context, providerID string) (loan.BankAccount, error) {
	p, err := r.GetProvider(ctx, providerID)
	if err != nil {
		return loan.BankAccount{}, err
	}
	if p.BankAccount == nil {
		return loan.BankAccount{}, errors.New(errors.ErrCodeSubjectNotFound, "provider payout account not found").WithDetail("id=" + providerID)
	}
	return loan.BankAccount{
		AccountName:   p.BankAccount.AccountName,
		AccountNumber: p.BankAccount.AccountNumber,
		IFSC:          p.BankAccount.IFSC,
		BankName:      p.BankAccount.BankName,
	}, nil
}

// SaveBorrowerScore writes the score into both the indexed columns and the
// profile document. A missing profile row is created.
func (r *ReadModelRepo) SaveBorrowerScore(ctx context.Context, userID string, score float64, c scoring.BorrowerComponents, at time.Time) error {
	components, err := encode(c)
	if err != nil {
		return err
	}
	doc, err := encode(scoring.LearnerProfile{UserID: userID, BorrowerScore: score, BorrowerComponents: &c, ScoredAt: &at})
	if err != nil {
		return err
	}
	_, err = r.executor().ExecContext(ctx, `
		INSERT INTO learner_profiles (user_id, document, borrower_score, borrower_components, scored_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			borrower_score = EXCLUDED.borrower_score,
			borrower_components = EXCLUDED.borrower_components,
			scored_at = EXCLUDED.scored_at,
			updated_at = EXCLUDED.updated_at,
			document = learner_profiles.document || jsonb_build_object(
				'borrower_score', EXCLUDED.borrower_score,
				'borrower_components', EXCLUDED.borrower_components,
				'scored_at', EXCLUDED.scored_at)`,
		userID, doc, score, components, at,
	)
	if err != nil {
		return dbErr(err, "failed to save borrower score")
	}
	return nil
}

// SaveTPScore records a provider's TPScore. The provider must exist.
func (r *ReadModelRepo) SaveTPScore(ctx context.Context, providerID string, score float64, c scoring.TPComponents, at time.Time) error {
	components, err := encode(c)
	if err != nil {
		return err
	}
	res, err := r.executor().ExecContext(ctx, `
		UPDATE training_providers SET
			tp_score = $2,
			tp_components = $3,
			scored_at = $4,
			updated_at = $4,
			document = document || jsonb_build_object('tp_score', $2::numeric, 'components', $3::jsonb, 'scored_at', $4::timestamptz)
		WHERE id = $1`,
		providerID, score, components, at,
	)
	if err != nil {
		return dbErr(err, "failed to save provider score")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return subjectNotFound("provider", providerID)
	}
	return nil
}

// --- Reference data upserts ---

func (r *ReadModelRepo) UpsertUser(ctx context.Context, u *scoring.User) error {
	if u.ID == "" {
		return errors.InvalidParam("user id is required")
	}
	doc, err := encode(u)
	if err != nil {
		return err
	}
	_, err = r.executor().ExecContext(ctx, `
		INSERT INTO users (id, document) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()`,
		u.ID, doc,
	)
	if err != nil {
		return dbErr(err, "failed to upsert user")
	}
	return nil
}

// UpsertLearnerProfile replaces the profile document but keeps any score
// already computed for the learner.
func (r *ReadModelRepo) UpsertLearnerProfile(ctx context.Context, p *scoring.LearnerProfile) error {
	if p.UserID == "" {
		return errors.InvalidParam("profile user id is required")
	}
	doc, err := encode(p)
	if err != nil {
		return err
	}
	_, err = r.executor().ExecContext(ctx, `
		INSERT INTO learner_profiles (user_id, document) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			document = EXCLUDED.document || jsonb_build_object(
				'borrower_score', learner_profiles.borrower_score,
				'borrower_components', learner_profiles.borrower_components,
				'scored_at', learner_profiles.scored_at),
			updated_at = NOW()`,
		p.UserID, doc,
	)
	if err != nil {
		return dbErr(err, "failed to upsert learner profile")
	}
	return nil
}

func (r *ReadModelRepo) UpsertProvider(ctx context.Context, p *scoring.TrainingProvider) error {
	if p.ID == "" {
		return errors.InvalidParam("provider id is required")
	}
	doc, err := encode(p)
	if err != nil {
		return err
	}
	_, err = r.executor().ExecContext(ctx, `
		INSERT INTO training_providers (id, document, tp_score) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, tp_score = EXCLUDED.tp_score, updated_at = NOW()`,
		p.ID, doc, p.TPScore,
	)
	if err != nil {
		return dbErr(err, "failed to upsert provider")
	}
	return nil
}

func (r *ReadModelRepo) UpsertCourse(ctx context.Context, c *scoring.Course) error {
	if c.ID == "" || c.ProviderID == "" {
		return errors.InvalidParam("course id and provider id are required")
	}
	doc, err := encode(c)
	if err != nil {
		return err
	}
	_, err = r.executor().ExecContext(ctx, `
		INSERT INTO courses (id, provider_id, document) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET provider_id = EXCLUDED.provider_id, document = EXCLUDED.document, updated_at = NOW()`,
		c.ID, c.ProviderID, doc,
	)
	if err != nil {
		return dbErr(err, "failed to upsert course")
	}
	return nil
}

//Personal.AI order the ending
