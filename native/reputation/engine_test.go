package reputation

import (
	"errors"
	"math/big"
	"testing"

	"opusledger/core/events"
)

type mockState struct {
	stats map[[20]byte]*CreatorStats
}

func newMockState() *mockState {
	return &mockState{stats: make(map[[20]byte]*CreatorStats)}
}

func (m *mockState) ReputationStatsGet(creator [20]byte) (*CreatorStats, bool, error) {
	stats, ok := m.stats[creator]
	if !ok {
		return nil, false, nil
	}
	return stats.Clone(), true, nil
}

func (m *mockState) ReputationStatsPut(stats *CreatorStats) error {
	if stats == nil {
		return nil
	}
	m.stats[stats.Creator] = stats.Clone()
	return nil
}

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func unitAmount(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), unit)
}

func newTestEngine(state *mockState) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return 1_000 })
	return engine
}

func TestWorksScoreAccumulates(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	recorder := engine.NewRecorder()
	creator := addr(0x01)

	for i := 0; i < 3; i++ {
		if _, err := recorder.IncrementWorks(creator); err != nil {
			t.Fatalf("increment works failed: %v", err)
		}
	}

	breakdown, err := engine.ScoreBreakdown(creator)
	if err != nil {
		t.Fatalf("breakdown failed: %v", err)
	}
	if breakdown.WorksScore != 600 {
		t.Fatalf("unexpected works score: %d", breakdown.WorksScore)
	}
	// Works carry a 10% weight.
	if breakdown.Total != 60 {
		t.Fatalf("unexpected composite score: %d", breakdown.Total)
	}
	score, err := engine.Score(creator)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if score != breakdown.Total {
		t.Fatalf("stored score %d disagrees with breakdown %d", score, breakdown.Total)
	}
}

func TestComponentSaturation(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	recorder := engine.NewRecorder()
	creator := addr(0x01)

	// 60 works saturate the works component at 50.
	for i := 0; i < 60; i++ {
		if _, err := recorder.IncrementWorks(creator); err != nil {
			t.Fatalf("increment works failed: %v", err)
		}
	}
	// 25 units of earnings saturate at 10.
	if _, err := recorder.AddEarnings(creator, unitAmount(25)); err != nil {
		t.Fatalf("add earnings failed: %v", err)
	}
	// 9 units of contributions saturate at 5.
	if _, err := recorder.AddContributions(creator, unitAmount(9)); err != nil {
		t.Fatalf("add contributions failed: %v", err)
	}
	// 30 successes saturate at 20.
	for i := 0; i < 30; i++ {
		if _, err := recorder.IncrementSuccessfulCampaigns(creator); err != nil {
			t.Fatalf("increment campaigns failed: %v", err)
		}
	}

	breakdown, err := engine.ScoreBreakdown(creator)
	if err != nil {
		t.Fatalf("breakdown failed: %v", err)
	}
	if breakdown.WorksScore != ScoreCap || breakdown.EarningsScore != ScoreCap ||
		breakdown.ContributionsScore != ScoreCap || breakdown.CampaignsScore != ScoreCap {
		t.Fatalf("components not saturated: %+v", breakdown)
	}
	if breakdown.Total != ScoreCap {
		t.Fatalf("composite not capped: %d", breakdown.Total)
	}
}

func TestVolumeScoresScaleLinearly(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	recorder := engine.NewRecorder()
	creator := addr(0x01)

	// Half the earnings saturation scores half the cap.
	if _, err := recorder.AddEarnings(creator, unitAmount(5)); err != nil {
		t.Fatalf("add earnings failed: %v", err)
	}
	breakdown, err := engine.ScoreBreakdown(creator)
	if err != nil {
		t.Fatalf("breakdown failed: %v", err)
	}
	if breakdown.EarningsScore != ScoreCap/2 {
		t.Fatalf("unexpected earnings score: %d", breakdown.EarningsScore)
	}
	// Earnings carry a 40% weight.
	if breakdown.Total != 2_000 {
		t.Fatalf("unexpected composite score: %d", breakdown.Total)
	}

	if _, err := recorder.AddEarnings(creator, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero earnings accepted: %v", err)
	}
	if _, err := recorder.AddContributions(creator, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative contributions accepted: %v", err)
	}
}

func TestRecorderCapabilityGatesMutation(t *testing.T) {
	var nilRecorder *Recorder
	if _, err := nilRecorder.IncrementWorks(addr(0x01)); !errors.Is(err, errUnauthorized) {
		t.Fatalf("nil recorder mutated stats: %v", err)
	}

	orphan := &Recorder{}
	if _, err := orphan.AddEarnings(addr(0x01), big.NewInt(1)); !errors.Is(err, errUnauthorized) {
		t.Fatalf("detached recorder mutated stats: %v", err)
	}
}

func TestSetVerifiedRequiresAdmin(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	admin := addr(0xAD)
	creator := addr(0x01)

	// No admin configured: nobody may verify.
	if _, err := engine.SetVerified(admin, creator, true); !errors.Is(err, errUnauthorized) {
		t.Fatalf("verification without configured admin accepted: %v", err)
	}

	engine.SetAdmin(admin)
	if _, err := engine.SetVerified(creator, creator, true); !errors.Is(err, errUnauthorized) {
		t.Fatalf("non-admin verification accepted: %v", err)
	}

	stats, err := engine.SetVerified(admin, creator, true)
	if err != nil {
		t.Fatalf("admin verification failed: %v", err)
	}
	if !stats.Verified {
		t.Fatalf("verification flag not set")
	}
	// The flag is orthogonal to the score.
	if stats.Score != 0 {
		t.Fatalf("verification changed the score: %d", stats.Score)
	}

	stats, err = engine.SetVerified(admin, creator, false)
	if err != nil {
		t.Fatalf("admin unverification failed: %v", err)
	}
	if stats.Verified {
		t.Fatalf("verification flag not cleared")
	}
}

func TestMutationEmitsEvents(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	log := events.NewLog()
	engine.SetEmitter(log)
	recorder := engine.NewRecorder()
	creator := addr(0x01)

	if _, err := recorder.IncrementWorks(creator); err != nil {
		t.Fatalf("increment works failed: %v", err)
	}
	if log.Len() != 1 {
		t.Fatalf("expected 1 event, got %d", log.Len())
	}
	if got := log.Events()[0].EventType(); got != EventTypeReputationUpdated {
		t.Fatalf("unexpected event type: %s", got)
	}

	stats, err := engine.Stats(creator)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.LastUpdated != 1_000 {
		t.Fatalf("last updated not stamped: %d", stats.LastUpdated)
	}
}
