package testutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
	"github.com/turtacn/EduLoan-Engine/internal/domain/scoring"
)

// Fixture identifiers seeded by SeedLending.
const (
	StrongLearnerID = "learner-strong"
	WeakLearnerID   = "learner-weak"
	CourseID        = "course-fsd"
	ProviderID      = "tp-acme"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int         { return &v }

// SeedLending fills m with one strong learner (score 86.1), one learner
// without a profile (score 43.5), a six month course and an audited
// provider (TPScore 97) with a payout account. Audit recency is computed
// against now.
func SeedLending(m *MemoryReadModels, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := &scoring.Address{Line1: "12 MG Road", City: "Pune", State: "MH", Pincode: "411001"}
	m.Users[StrongLearnerID] = &scoring.User{
		ID: StrongLearnerID, Name: "Asha", KYCStatus: scoring.KYCVerified,
		AadhaarVerified: true, PANNumber: "ABCDE1234F", Address: addr,
	}
	m.Profiles[StrongLearnerID] = &scoring.LearnerProfile{
		UserID:                  StrongLearnerID,
		EducationLevel:          scoring.EducationGraduate,
		BaselineAssessmentScore: f64(80),
		Certifications:          2,
		HasBankAccount:          true,
		MonthlyIncome:           f64(30000),
		CreditScore:             intp(720),
		PriorLoans:              scoring.LoanHistoryRepaid,
		PreferredSectors:        []string{"IT"},
		SubmissionDays:          intp(2),
		OrientationCompleted:    true,
		OrientationScore:        f64(90),
		EngagementScore:         f64(80),
		Endorsements: []scoring.Endorsement{
			{Type: scoring.EndorserEmployer, Verified: true},
			{Type: scoring.EndorserTeacher, Verified: true},
		},
	}
	m.Users[WeakLearnerID] = &scoring.User{ID: WeakLearnerID, Name: "Ravi", KYCStatus: scoring.KYCPending}

	m.Courses[CourseID] = &scoring.Course{
		ID: CourseID, ProviderID: ProviderID, Name: "Full Stack Development",
		Sector: "IT", HighDemand: true, JobDemandIndex: f64(75), PlacementRate: f64(72),
		DurationMonths: 6,
	}

	audited := now.AddDate(0, -2, 0)
	m.Providers[ProviderID] = &scoring.TrainingProvider{
		ID:                 ProviderID,
		Name:               "Acme Skills",
		CompletionRate:     f64(90),
		CertificationRate:  f64(90),
		PlacementRate:      f64(75),
		GuaranteeClaimRate: f64(0),
		AuditScore:         f64(100),
		LastAuditAt:        &audited,
		BankAccount: &scoring.BankAccount{
			AccountName: "Acme Skills Pvt Ltd", AccountNumber: "001122334455",
			IFSC: "HDFC0001234", BankName: "HDFC Bank",
		},
	}
}

var fixtureSeq atomic.Int64

// ApprovedLoan returns a bank-approved loan for amount at 10% over twelve
// months with the default milestones. It is not stored.
func ApprovedLoan(amount string, now time.Time) *loan.Loan {
	l, err := loan.NewLoan(loan.Terms{
		ApplicationNumber: loan.FormatApplicationNumber(now.Year(), fixtureSeq.Add(1)),
		LearnerID:         StrongLearnerID,
		CourseID:          CourseID,
		ProviderID:        ProviderID,
		RequestedAmount:   decimal.RequireFromString(amount),
		TenureMonths:      12,
		MoratoriumMonths:  3,
		InterestRate:      10,
	}, policy.Default().Milestones, now)
	if err != nil {
		panic(err)
	}
	l.Status = loan.StatusBankApproved
	l.ApprovedAmount = l.RequestedAmount
	return l
}

// DriveToRepayment activates a stored bank-approved l, verifies every
// milestone at its target, enters moratorium and starts repayment.
func DriveToRepayment(t testing.TB, m *loan.StateMachine, l *loan.Loan) []*loan.Repayment {
	t.Helper()
	ctx := context.Background()
	_, err := m.Activate(ctx, l.ID)
	require.NoError(t, err)
	for i := 1; i < len(l.Milestones); i++ {
		_, err := m.VerifyMilestone(ctx, l.ID, i, loan.Evidence{CourseCompletionPct: l.Milestones[i].TargetPct})
		require.NoError(t, err)
	}
	_, err = m.EnterMoratorium(ctx, l.ID)
	require.NoError(t, err)
	_, schedule, err := m.StartRepayment(ctx, l.ID)
	require.NoError(t, err)
	return schedule
}

//Personal.AI order the ending
