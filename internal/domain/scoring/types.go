// Package scoring computes the borrower score and the training-provider score
// (TPScore). Both are sums of bounded sub-components, so totals always lie in
// [0, 100]. Every input field that may be missing is a pointer; a nil value
// resolves to a documented neutral figure rather than zero.
package scoring

import (
	"time"

	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
)

// KYCStatus is the identity-verification state of a user.
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

// EducationLevel is the highest completed level of schooling.
type EducationLevel string

const (
	EducationNone         EducationLevel = "none"
	EducationBelow10th    EducationLevel = "below_10th"
	Education10th         EducationLevel = "10th"
	Education12th         EducationLevel = "12th"
	EducationDiploma      EducationLevel = "diploma"
	EducationGraduate     EducationLevel = "graduate"
	EducationPostGraduate EducationLevel = "post_graduate"
)

// LoanHistory summarizes a borrower's prior credit behaviour.
type LoanHistory string

const (
	LoanHistoryNone      LoanHistory = "none"
	LoanHistoryRepaid    LoanHistory = "repaid"
	LoanHistoryDefaulted LoanHistory = "defaulted"
)

// EndorserType identifies who vouched for a learner.
type EndorserType string

const (
	EndorserEmployer        EndorserType = "employer"
	EndorserCommunityLeader EndorserType = "community_leader"
	EndorserNGO             EndorserType = "ngo"
	EndorserTeacher         EndorserType = "teacher"
)

// Address is a postal address; it counts as complete when every field is set.
type Address struct {
	Line1   string `json:"line1"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Complete reports whether all address fields are present.
func (a *Address) Complete() bool {
	return a != nil && a.Line1 != "" && a.City != "" && a.State != "" && a.Pincode != ""
}

// User is the identity read model of a borrower.
type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	KYCStatus       KYCStatus `json:"kyc_status"`
	AadhaarVerified bool      `json:"aadhaar_verified"`
	PANNumber       string    `json:"pan_number,omitempty"`
	Address         *Address  `json:"address,omitempty"`
}

// Endorsement is a reference given for a learner.
type Endorsement struct {
	Type     EndorserType `json:"type"`
	Name     string       `json:"name"`
	Verified bool         `json:"verified"`
}

// LearnerProfile is the borrower's self-reported and observed profile. Scores
// are written back onto it after every scoring call.
type LearnerProfile struct {
	UserID string `json:"user_id"`

	EducationLevel          EducationLevel `json:"education_level,omitempty"`
	BaselineAssessmentScore *float64       `json:"baseline_assessment_score,omitempty"`
	Certifications          int            `json:"certifications"`

	HasBankAccount bool        `json:"has_bank_account"`
	MonthlyIncome  *float64    `json:"monthly_income,omitempty"`
	CreditScore    *int        `json:"credit_score,omitempty"`
	PriorLoans     LoanHistory `json:"prior_loans,omitempty"`

	PreferredSectors []string `json:"preferred_sectors,omitempty"`

	// SubmissionDays is the number of days the learner took to complete
	// the application after starting it.
	SubmissionDays       *int     `json:"submission_days,omitempty"`
	OrientationCompleted bool     `json:"orientation_completed"`
	OrientationScore     *float64 `json:"orientation_score,omitempty"`
	EngagementScore      *float64 `json:"engagement_score,omitempty"`

	Endorsements []Endorsement `json:"endorsements,omitempty"`

	BorrowerScore      float64              `json:"borrower_score"`
	BorrowerComponents *BorrowerComponents `json:"borrower_components,omitempty"`
	ScoredAt           *time.Time          `json:"scored_at,omitempty"`
}

// Course is the programme a loan finances.
type Course struct {
	ID             string   `json:"id"`
	ProviderID     string   `json:"provider_id"`
	Name           string   `json:"name"`
	Sector         string   `json:"sector"`
	HighDemand     bool     `json:"high_demand"`
	JobDemandIndex *float64 `json:"job_demand_index,omitempty"`
	PlacementRate  *float64 `json:"placement_rate,omitempty"`
	DurationMonths int      `json:"duration_months"`
}

// BankAccount is a settlement destination.
type BankAccount struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
	BankName      string `json:"bank_name"`
}

// TrainingProvider is the provider read model; rates are percentages.
type TrainingProvider struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	CompletionRate       *float64     `json:"completion_rate,omitempty"`
	CertificationRate    *float64     `json:"certification_rate,omitempty"`
	PlacementRate        *float64     `json:"placement_rate,omitempty"`
	GuaranteeClaimRate   *float64     `json:"guarantee_claim_rate,omitempty"`
	AuditScore           *float64     `json:"audit_score,omitempty"`
	LastAuditAt          *time.Time   `json:"last_audit_at,omitempty"`
	OpenComplianceIssues int          `json:"open_compliance_issues"`
	BankAccount          *BankAccount `json:"bank_account,omitempty"`

	TPScore    float64       `json:"tp_score"`
	Components *TPComponents `json:"components,omitempty"`
	ScoredAt   *time.Time    `json:"scored_at,omitempty"`
}

// BorrowerComponents holds the six weighted borrower sub-scores.
type BorrowerComponents struct {
	KYC        float64 `json:"kyc"`
	Education  float64 `json:"education"`
	Income     float64 `json:"income"`
	CourseFit  float64 `json:"course_fit"`
	Commitment float64 `json:"commitment"`
	Community  float64 `json:"community"`
}

// Total is the clamped, rounded sum of the components.
func (c BorrowerComponents) Total() float64 {
	return clampRound(c.KYC+c.Education+c.Income+c.CourseFit+c.Commitment+c.Community, 0, 100)
}

// TPComponents holds the five weighted provider sub-scores.
type TPComponents struct {
	Completion    float64 `json:"completion"`
	Certification float64 `json:"certification"`
	Placement     float64 `json:"placement"`
	RefundHistory float64 `json:"refund_history"`
	Audit         float64 `json:"audit"`
}

// Total is the clamped, rounded sum of the components.
func (c TPComponents) Total() float64 {
	return clampRound(c.Completion+c.Certification+c.Placement+c.RefundHistory+c.Audit, 0, 100)
}

// BorrowerResult is the outcome of ScoreBorrower.
type BorrowerResult struct {
	UserID          string              `json:"user_id"`
	Score           float64             `json:"score"`
	Components      BorrowerComponents  `json:"components"`
	RiskCategory    policy.RiskCategory `json:"risk_category"`
	Eligible        bool                `json:"eligible"`
	Recommendations []string            `json:"recommendations"`
	ScoredAt        time.Time           `json:"scored_at"`
}

// TPResult is the outcome of ScoreTP.
type TPResult struct {
	ProviderID          string                     `json:"provider_id"`
	Score               float64                    `json:"score"`
	Components          TPComponents               `json:"components"`
	PerformanceCategory policy.PerformanceCategory `json:"performance_category"`
	Eligible            bool                       `json:"eligible"`
	Recommendations     []string                   `json:"recommendations"`
	ScoredAt            time.Time                  `json:"scored_at"`
}

//Personal.AI order the ending
