package reputation

import "math/big"

// CreatorStats accumulates the ledger activity attributed to a creator. The
// derived score is recomputed in full on every mutation rather than adjusted
// incrementally, keeping it a pure function of the stored counters.
type CreatorStats struct {
	Creator             [20]byte `json:"creator"`
	TotalWorks          uint64   `json:"totalWorks"`
	TotalEarnings       *big.Int `json:"totalEarnings"`
	TotalContributions  *big.Int `json:"totalContributions"`
	SuccessfulCampaigns uint64   `json:"successfulCampaigns"`
	Score               uint64   `json:"score"`
	LastUpdated         int64    `json:"lastUpdated"`
	Verified            bool     `json:"verified"`
}

// Clone returns a deep copy of the stats record.
func (s *CreatorStats) Clone() *CreatorStats {
	if s == nil {
		return nil
	}
	clone := *s
	if s.TotalEarnings != nil {
		clone.TotalEarnings = new(big.Int).Set(s.TotalEarnings)
	}
	if s.TotalContributions != nil {
		clone.TotalContributions = new(big.Int).Set(s.TotalContributions)
	}
	return &clone
}

// Breakdown exposes the four weighted component scores alongside the final
// composite value. Every component is independently capped at ScoreCap.
type Breakdown struct {
	WorksScore         uint64 `json:"worksScore"`
	EarningsScore      uint64 `json:"earningsScore"`
	ContributionsScore uint64 `json:"contributionsScore"`
	CampaignsScore     uint64 `json:"campaignsScore"`
	Total              uint64 `json:"total"`
}

func newStats(creator [20]byte) *CreatorStats {
	return &CreatorStats{
		Creator:            creator,
		TotalEarnings:      big.NewInt(0),
		TotalContributions: big.NewInt(0),
	}
}

func ensureStats(s *CreatorStats) *CreatorStats {
	if s == nil {
		return nil
	}
	if s.TotalEarnings == nil {
		s.TotalEarnings = big.NewInt(0)
	}
	if s.TotalContributions == nil {
		s.TotalContributions = big.NewInt(0)
	}
	return s
}
