package reputation

import (
	"errors"
	"math/big"
	"time"

	"opusledger/core/events"
)

var (
	errNilState     = errors.New("reputation engine: state not configured")
	errNilCreator   = errors.New("reputation engine: creator address required")
	errUnauthorized = errors.New("reputation engine: caller not authorized")
	// ErrInvalidAmount marks non-positive earning or contribution reports.
	ErrInvalidAmount = errors.New("reputation engine: amount must be positive")
)

type engineState interface {
	ReputationStatsGet(creator [20]byte) (*CreatorStats, bool, error)
	ReputationStatsPut(stats *CreatorStats) error
}

// Engine maintains per-creator cumulative stats and the derived score. It
// holds no funds; mutations arrive exclusively through Recorder capabilities
// handed out at wiring time, so there is no ambient allow-list to manage.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
	admin   [20]byte
}

// NewEngine constructs a reputation engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetAdmin configures the administrator allowed to flip verification flags.
func (e *Engine) SetAdmin(addr [20]byte) { e.admin = addr }

// NewRecorder hands out a capability granting access to the engine's stat
// mutators. Components that must report ledger activity receive one at
// construction; everything else can only read.
func (e *Engine) NewRecorder() *Recorder {
	return &Recorder{engine: e}
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func (e *Engine) loadStats(creator [20]byte) (*CreatorStats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(creator) {
		return nil, errNilCreator
	}
	stats, ok, err := e.state.ReputationStatsGet(creator)
	if err != nil {
		return nil, err
	}
	if !ok || stats == nil {
		stats = newStats(creator)
	}
	return ensureStats(stats), nil
}

// mutate applies fn to the creator's stats, recomputes the composite score in
// full and persists the updated record.
func (e *Engine) mutate(creator [20]byte, fn func(*CreatorStats) error) (*CreatorStats, error) {
	stats, err := e.loadStats(creator)
	if err != nil {
		return nil, err
	}
	if err := fn(stats); err != nil {
		return nil, err
	}
	breakdown := ComputeBreakdown(stats)
	stats.Score = breakdown.Total
	stats.LastUpdated = e.now()
	if err := e.state.ReputationStatsPut(stats); err != nil {
		return nil, err
	}
	e.emit(ReputationUpdatedEvent(hexAddr(creator), stats.Score, stats.LastUpdated))
	return stats.Clone(), nil
}

func (e *Engine) incrementWorks(creator [20]byte) (*CreatorStats, error) {
	return e.mutate(creator, func(stats *CreatorStats) error {
		stats.TotalWorks++
		return nil
	})
}

func (e *Engine) addEarnings(creator [20]byte, amount *big.Int) (*CreatorStats, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return e.mutate(creator, func(stats *CreatorStats) error {
		stats.TotalEarnings = new(big.Int).Add(stats.TotalEarnings, amount)
		return nil
	})
}

func (e *Engine) addContributions(creator [20]byte, amount *big.Int) (*CreatorStats, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return e.mutate(creator, func(stats *CreatorStats) error {
		stats.TotalContributions = new(big.Int).Add(stats.TotalContributions, amount)
		return nil
	})
}

func (e *Engine) incrementSuccessfulCampaigns(creator [20]byte) (*CreatorStats, error) {
	return e.mutate(creator, func(stats *CreatorStats) error {
		stats.SuccessfulCampaigns++
		return nil
	})
}

// SetVerified flips the verification flag for a creator. Administrator only;
// the flag is orthogonal to the score.
func (e *Engine) SetVerified(caller [20]byte, creator [20]byte, verified bool) (*CreatorStats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(e.admin) || caller != e.admin {
		return nil, errUnauthorized
	}
	stats, err := e.loadStats(creator)
	if err != nil {
		return nil, err
	}
	stats.Verified = verified
	stats.LastUpdated = e.now()
	if err := e.state.ReputationStatsPut(stats); err != nil {
		return nil, err
	}
	e.emit(VerificationChangedEvent(hexAddr(creator), verified))
	return stats.Clone(), nil
}

// Stats returns the stored stats for a creator, or the zero-value lazy record
// when nothing has been written yet.
func (e *Engine) Stats(creator [20]byte) (*CreatorStats, error) {
	stats, err := e.loadStats(creator)
	if err != nil {
		return nil, err
	}
	return stats.Clone(), nil
}

// Score returns the current composite score for a creator.
func (e *Engine) Score(creator [20]byte) (uint64, error) {
	stats, err := e.loadStats(creator)
	if err != nil {
		return 0, err
	}
	return stats.Score, nil
}

// ScoreBreakdown recomputes and returns the component scores for a creator.
func (e *Engine) ScoreBreakdown(creator [20]byte) (Breakdown, error) {
	stats, err := e.loadStats(creator)
	if err != nil {
		return Breakdown{}, err
	}
	return ComputeBreakdown(stats), nil
}

// Recorder is the capability handle granting access to the engine's stat
// mutators. Holding a non-nil Recorder is the authorization; callers that
// were not handed one at wiring time cannot mutate reputation state.
type Recorder struct {
	engine *Engine
}

// IncrementWorks credits the creator with one additional registered work.
func (r *Recorder) IncrementWorks(creator [20]byte) (*CreatorStats, error) {
	if r == nil || r.engine == nil {
		return nil, errUnauthorized
	}
	return r.engine.incrementWorks(creator)
}

// AddEarnings credits distributed royalty earnings to the creator.
func (r *Recorder) AddEarnings(creator [20]byte, amount *big.Int) (*CreatorStats, error) {
	if r == nil || r.engine == nil {
		return nil, errUnauthorized
	}
	return r.engine.addEarnings(creator, amount)
}

// AddContributions credits campaign contribution volume to the creator.
func (r *Recorder) AddContributions(creator [20]byte, amount *big.Int) (*CreatorStats, error) {
	if r == nil || r.engine == nil {
		return nil, errUnauthorized
	}
	return r.engine.addContributions(creator, amount)
}

// IncrementSuccessfulCampaigns credits the creator with one successfully
// finalized campaign.
func (r *Recorder) IncrementSuccessfulCampaigns(creator [20]byte) (*CreatorStats, error) {
	if r == nil || r.engine == nil {
		return nil, errUnauthorized
	}
	return r.engine.incrementSuccessfulCampaigns(creator)
}
