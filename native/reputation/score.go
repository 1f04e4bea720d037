package reputation

import "math/big"

const (
	// ScoreCap bounds every component score and the composite score.
	ScoreCap = 10_000

	worksPerUnit     = 200 // saturates at 50 works
	campaignsPerUnit = 500 // saturates at 20 successful campaigns

	worksWeight         = 1_000
	earningsWeight      = 4_000
	contributionsWeight = 3_000
	campaignsWeight     = 2_000
)

var (
	// unit is the wei denomination of one whole value unit.
	unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// earningsSaturation is the earnings volume (10 units) at which the
	// earnings component reaches its cap.
	earningsSaturation = new(big.Int).Mul(big.NewInt(10), unit)

	// contributionsSaturation is the contribution volume (5 units) at which
	// the contributions component reaches its cap.
	contributionsSaturation = new(big.Int).Mul(big.NewInt(5), unit)
)

func cappedCount(count uint64, perUnit uint64) uint64 {
	if perUnit == 0 {
		return 0
	}
	if count >= ScoreCap/perUnit {
		return ScoreCap
	}
	return count * perUnit
}

func cappedVolume(volume, saturation *big.Int) uint64 {
	if volume == nil || volume.Sign() <= 0 {
		return 0
	}
	scaled := new(big.Int).Mul(volume, big.NewInt(ScoreCap))
	scaled.Div(scaled, saturation)
	if scaled.Cmp(big.NewInt(ScoreCap)) >= 0 {
		return ScoreCap
	}
	return scaled.Uint64()
}

// ComputeBreakdown derives the component and composite scores for the supplied
// stats. The composite is the weight-then-normalize combination of the four
// components, clamped to ScoreCap.
func ComputeBreakdown(stats *CreatorStats) Breakdown {
	if stats == nil {
		return Breakdown{}
	}
	b := Breakdown{
		WorksScore:         cappedCount(stats.TotalWorks, worksPerUnit),
		EarningsScore:      cappedVolume(stats.TotalEarnings, earningsSaturation),
		ContributionsScore: cappedVolume(stats.TotalContributions, contributionsSaturation),
		CampaignsScore:     cappedCount(stats.SuccessfulCampaigns, campaignsPerUnit),
	}
	weighted := b.WorksScore*worksWeight +
		b.EarningsScore*earningsWeight +
		b.ContributionsScore*contributionsWeight +
		b.CampaignsScore*campaignsWeight
	total := weighted / ScoreCap
	if total > ScoreCap {
		total = ScoreCap
	}
	b.Total = total
	return b
}
