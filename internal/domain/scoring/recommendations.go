package scoring

import (
	"fmt"
	"sort"

	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
)

// maxTips caps how many component tips a result carries.
const maxTips = 3

type componentGap struct {
	name   string
	value  float64
	max    float64
	advice string
}

func (g componentGap) shortfall() float64 { return g.max - g.value }

func borrowerGaps(c BorrowerComponents) []componentGap {
	return []componentGap{
		{"KYC", c.KYC, MaxKYC, "complete Aadhaar verification and add PAN and a full address"},
		{"Education", c.Education, MaxEducation, "take the baseline assessment and add certifications"},
		{"Income", c.Income, MaxIncome, "link a bank account and share income and credit details"},
		{"Course fit", c.CourseFit, MaxCourseFit, "pick a course in a high-demand or preferred sector"},
		{"Commitment", c.Commitment, MaxCommitment, "complete orientation and stay engaged on the platform"},
		{"Community", c.Community, MaxCommunity, "collect verified endorsements from employers or community leaders"},
	}
}

func tpGaps(c TPComponents) []componentGap {
	return []componentGap{
		{"Completion", c.Completion, MaxCompletion, "improve learner completion rates"},
		{"Certification", c.Certification, MaxCertification, "raise the certification rate above 62%"},
		{"Placement", c.Placement, MaxPlacement, "lift placement to 70% or more"},
		{"Refund history", c.RefundHistory, MaxRefundHistory, "reduce guarantee claims"},
		{"Audit", c.Audit, MaxAudit, "schedule an audit and close open compliance issues"},
	}
}

// weakest returns up to maxTips gaps ordered by shortfall, ignoring
// components within half a point of their ceiling.
func weakest(gaps []componentGap) []componentGap {
	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].shortfall() > gaps[j].shortfall() })
	out := make([]componentGap, 0, maxTips)
	for _, g := range gaps {
		if len(out) == maxTips || g.shortfall() < 0.5 {
			break
		}
		out = append(out, g)
	}
	return out
}

func tips(gaps []componentGap) []string {
	out := make([]string, 0, len(gaps))
	for _, g := range weakest(gaps) {
		out = append(out, fmt.Sprintf("%s scores %.2f of %.0f: %s", g.name, g.value, g.max, g.advice))
	}
	return out
}

// BorrowerRecommendations explains how a borrower could reach eligibility and
// the next risk band.
func BorrowerRecommendations(p *policy.Policy, score float64, c BorrowerComponents) []string {
	var recs []string
	if score < p.EligibilityThreshold {
		recs = append(recs, fmt.Sprintf("Score %.2f is below the eligibility threshold of %.2f; %.2f more points are needed",
			score, p.EligibilityThreshold, round2(p.EligibilityThreshold-score)))
	}
	if next, ok := p.NextRiskBand(score); ok {
		recs = append(recs, fmt.Sprintf("Reach %.2f (+%.2f) for the %s risk band at a %.2f%% spread",
			next.MinScore, round2(next.MinScore-score), next.Category, next.Spread))
	}
	return append(recs, tips(borrowerGaps(c))...)
}

// TPRecommendations explains how a provider could reach the next tier.
func TPRecommendations(p *policy.Policy, score float64, c TPComponents) []string {
	var recs []string
	if score < p.TPEligibilityThreshold {
		recs = append(recs, fmt.Sprintf("TPScore %.2f is below the partner threshold of %.2f",
			score, p.TPEligibilityThreshold))
	}
	if next, ok := p.NextGuaranteeTier(score); ok {
		recs = append(recs, fmt.Sprintf("Reach %.2f (+%.2f) for the %s tier with a %.0f%% standing deposit",
			next.MinScore, round2(next.MinScore-score), next.Category, next.DepositPercentage))
	}
	return append(recs, tips(tpGaps(c))...)
}

//Personal.AI order the ending
