package scoring

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Component ceilings.
const (
	MaxKYC        = 10.0
	MaxEducation  = 20.0
	MaxIncome     = 15.0
	MaxCourseFit  = 25.0
	MaxCommitment = 20.0
	MaxCommunity  = 10.0

	MaxCompletion    = 30.0
	MaxCertification = 25.0
	MaxPlacement     = 20.0
	MaxRefundHistory = 15.0
	MaxAudit         = 10.0
)

// Neutral values used when the input needed for a component is missing.
const (
	NeutralIncome         = 7.5
	NeutralCourseFit      = 12.5
	NeutralCommitment     = 10.0
	NeutralCommunity      = 5.0
	NeutralEducationLevel = 6.0
	NeutralBaseline       = 2.5
	NeutralIncomeTier     = 3.0
	NeutralCreditTier     = 1.5
	NeutralJobDemand      = 4.0
	NeutralSubmission     = 3.0
	NeutralEngagement     = 3.5

	NeutralCompletion    = 15.0
	NeutralCertification = 12.5
	NeutralPlacement     = 10.0
	NeutralRefundHistory = 7.5
	NeutralAuditScore    = 2.5
)

var educationTiers = map[EducationLevel]float64{
	EducationNone:         0,
	EducationBelow10th:    2,
	Education10th:         4,
	Education12th:         6,
	EducationDiploma:      8,
	EducationGraduate:     10,
	EducationPostGraduate: 12,
}

var endorserWeights = map[EndorserType]float64{
	EndorserEmployer:        4,
	EndorserCommunityLeader: 3,
	EndorserNGO:             2.5,
	EndorserTeacher:         2,
}

// ─────────────────────────────────────────────────────────────────────────────
// Borrower components
// ─────────────────────────────────────────────────────────────────────────────

// KYCScore awards 7 for a verified Aadhaar, 2 for a complete address and 1 for
// a PAN. A rejected KYC scores zero.
func KYCScore(u *User) float64 {
	if u == nil || u.KYCStatus == KYCRejected {
		return 0
	}
	var s float64
	if u.AadhaarVerified {
		s += 7
	}
	if u.Address.Complete() {
		s += 2
	}
	if strings.TrimSpace(u.PANNumber) != "" {
		s += 1
	}
	return clampRound(s, 0, MaxKYC)
}

// EducationScore is level tier + baseline assessment/100*5 + min(certs, 3).
func EducationScore(p *LearnerProfile) float64 {
	if p == nil {
		return clampRound(NeutralEducationLevel+NeutralBaseline, 0, MaxEducation)
	}
	level, ok := educationTiers[p.EducationLevel]
	if !ok {
		level = NeutralEducationLevel
	}
	baseline := NeutralBaseline
	if p.BaselineAssessmentScore != nil {
		baseline = clamp(*p.BaselineAssessmentScore, 0, 100) / 100 * 5
	}
	certs := math.Min(float64(max(p.Certifications, 0)), 3)
	return clampRound(level+baseline+certs, 0, MaxEducation)
}

// IncomeScore is bank account 3 + income tier + credit tier + prior loans.
func IncomeScore(p *LearnerProfile) float64 {
	if p == nil {
		return NeutralIncome
	}
	var s float64
	if p.HasBankAccount {
		s += 3
	}
	s += incomeTier(p.MonthlyIncome)
	s += creditTier(p.CreditScore)
	switch p.PriorLoans {
	case LoanHistoryRepaid:
		s += 3
	case LoanHistoryDefaulted:
	default:
		s += 1.5
	}
	return clampRound(s, 0, MaxIncome)
}

func incomeTier(income *float64) float64 {
	if income == nil {
		return NeutralIncomeTier
	}
	switch v := *income; {
	case v >= 50000:
		return 6
	case v >= 25000:
		return 4.5
	case v >= 15000:
		return 3
	case v >= 8000:
		return 1.5
	default:
		return 0
	}
}

func creditTier(score *int) float64 {
	if score == nil {
		return NeutralCreditTier
	}
	switch v := *score; {
	case v >= 750:
		return 3
	case v >= 650:
		return 2
	case v >= 550:
		return 1
	default:
		return 0
	}
}

// CourseFitScore rewards sector demand, job demand, a preferred-sector match
// and a strong placement record.
func CourseFitScore(c *Course, p *LearnerProfile) float64 {
	if c == nil {
		return NeutralCourseFit
	}
	s := 5.0
	if c.HighDemand {
		s = 10
	}
	if c.JobDemandIndex != nil {
		s += clamp(*c.JobDemandIndex, 0, 100) / 100 * 8
	} else {
		s += NeutralJobDemand
	}
	if p != nil && c.Sector != "" {
		for _, sector := range p.PreferredSectors {
			if strings.EqualFold(sector, c.Sector) {
				s += 5
				break
			}
		}
	}
	if c.PlacementRate != nil && *c.PlacementRate >= 70 {
		s += 2
	}
	return clampRound(s, 0, MaxCourseFit)
}

// CommitmentScore is submission speed + orientation + engagement.
func CommitmentScore(p *LearnerProfile) float64 {
	if p == nil {
		return NeutralCommitment
	}
	s := NeutralSubmission
	if p.SubmissionDays != nil {
		switch d := *p.SubmissionDays; {
		case d <= 3:
			s = 6
		case d <= 7:
			s = 4
		case d <= 14:
			s = 2
		default:
			s = 0
		}
	}
	if p.OrientationCompleted {
		s += 5
		if p.OrientationScore != nil && *p.OrientationScore >= 70 {
			s += 2
		}
	}
	if p.EngagementScore != nil {
		s += clamp(*p.EngagementScore, 0, 100) / 100 * 7
	} else {
		s += NeutralEngagement
	}
	return clampRound(s, 0, MaxCommitment)
}

// CommunityScore sums the three heaviest verified endorsements.
func CommunityScore(p *LearnerProfile) float64 {
	if p == nil {
		return NeutralCommunity
	}
	weights := make([]float64, 0, len(p.Endorsements))
	for _, e := range p.Endorsements {
		if e.Verified {
			weights = append(weights, endorserWeights[e.Type])
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(weights)))
	var s float64
	for i := 0; i < len(weights) && i < 3; i++ {
		s += weights[i]
	}
	return clampRound(s, 0, MaxCommunity)
}

// ComputeBorrowerComponents resolves every borrower component.
func ComputeBorrowerComponents(u *User, p *LearnerProfile, c *Course) BorrowerComponents {
	return BorrowerComponents{
		KYC:        KYCScore(u),
		Education:  EducationScore(p),
		Income:     IncomeScore(p),
		CourseFit:  CourseFitScore(c, p),
		Commitment: CommitmentScore(p),
		Community:  CommunityScore(p),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Training-provider components
// ─────────────────────────────────────────────────────────────────────────────

// CompletionScore is completion rate * 0.3.
func CompletionScore(rate *float64) float64 {
	if rate == nil {
		return NeutralCompletion
	}
	return clampRound(*rate*0.3, 0, MaxCompletion)
}

// CertificationScore scales linearly to 15 below the 62% baseline and from 15
// to 25 between the baseline and 90%.
func CertificationScore(rate *float64) float64 {
	if rate == nil {
		return NeutralCertification
	}
	r := clamp(*rate, 0, 100)
	if r < 62 {
		return clampRound(r/62*15, 0, MaxCertification)
	}
	return clampRound(15+(r-62)/(90-62)*10, 0, MaxCertification)
}

// PlacementScore is piecewise around the 50% target and saturates at 70%.
func PlacementScore(rate *float64) float64 {
	if rate == nil {
		return NeutralPlacement
	}
	r := clamp(*rate, 0, 100)
	switch {
	case r < 50:
		return clampRound(r/50*12, 0, MaxPlacement)
	case r < 70:
		return clampRound(12+(r-50)/20*8, 0, MaxPlacement)
	default:
		return MaxPlacement
	}
}

// RefundHistoryScore falls as the guarantee-claim rate rises.
func RefundHistoryScore(claimRate *float64) float64 {
	if claimRate == nil {
		return NeutralRefundHistory
	}
	r := math.Max(*claimRate, 0)
	switch {
	case r == 0:
		return 15
	case r <= 5:
		return 12
	case r <= 10:
		return 9
	case r <= 20:
		return 6
	default:
		return clampRound(6-(r-20)/5, 0, MaxRefundHistory)
	}
}

// AuditScore is audit score/100*5 + recency bonus + compliance bonus.
func AuditScore(tp *TrainingProvider, now time.Time) float64 {
	s := NeutralAuditScore
	if tp.AuditScore != nil {
		s = clamp(*tp.AuditScore, 0, 100) / 100 * 5
	}
	switch last := tp.LastAuditAt; {
	case last != nil && !last.AddDate(0, 6, 0).Before(now):
		s += 3
	case last != nil && !last.AddDate(0, 12, 0).Before(now):
		s += 2
	default:
		s += 1
	}
	switch n := tp.OpenComplianceIssues; {
	case n <= 0:
		s += 2
	case n <= 2:
		s += 1
	}
	return clampRound(s, 0, MaxAudit)
}

// ComputeTPComponents resolves every provider component.
func ComputeTPComponents(tp *TrainingProvider, now time.Time) TPComponents {
	return TPComponents{
		Completion:    CompletionScore(tp.CompletionRate),
		Certification: CertificationScore(tp.CertificationRate),
		Placement:     PlacementScore(tp.PlacementRate),
		RefundHistory: RefundHistoryScore(tp.GuaranteeClaimRate),
		Audit:         AuditScore(tp, now),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampRound(v, lo, hi float64) float64 {
	return round2(clamp(v, lo, hi))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

//Personal.AI order the ending
