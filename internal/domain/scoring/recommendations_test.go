package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
)

func TestBorrowerRecommendations_TopBandHasOnlyTips(t *testing.T) {
	p := policy.Default()
	c := BorrowerComponents{KYC: 10, Education: 20, Income: 15, CourseFit: 25, Commitment: 20, Community: 6}

	recs := BorrowerRecommendations(p, c.Total(), c)
	assert.Equal(t, []string{
		"Community scores 6.00 of 10: collect verified endorsements from employers or community leaders",
	}, recs)
}

func TestBorrowerRecommendations_ModerateNamesNextBand(t *testing.T) {
	p := policy.Default()
	c := BorrowerComponents{KYC: 10, Education: 12, Income: 10, CourseFit: 15, Commitment: 12, Community: 6}

	recs := BorrowerRecommendations(p, c.Total(), c)
	assert.Equal(t, "Reach 80.00 (+15.00) for the low risk band at a 1.00% spread", recs[0])
	assert.Len(t, recs, 4)
}

func TestTPRecommendations(t *testing.T) {
	p := policy.Default()
	c := TPComponents{Completion: 10, Certification: 10, Placement: 10, RefundHistory: 6, Audit: 4}

	recs := TPRecommendations(p, c.Total(), c)
	assert.Contains(t, recs[0], "below the partner threshold")
	assert.Equal(t, "Reach 50.00 (+10.00) for the average tier with a 25% standing deposit", recs[1])
	assert.Contains(t, recs[2], "Completion")
}

//Personal.AI order the ending
