package registry

import (
	"errors"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"opusledger/core/events"
	"opusledger/native/reputation"
)

var (
	errNilState = errors.New("registry engine: state not configured")
	// ErrFingerprintExists marks registrations whose fingerprint already
	// identifies another work.
	ErrFingerprintExists = errors.New("registry engine: fingerprint already registered")
	// ErrWorkNotFound marks lookups for unknown work identifiers.
	ErrWorkNotFound = errors.New("registry engine: work not found")
	// ErrUnauthorized marks status changes attempted by non-owners.
	ErrUnauthorized   = errors.New("registry engine: caller is not the work owner")
	errNilFingerprint = errors.New("registry engine: fingerprint required")
	errNilCreator     = errors.New("registry engine: creator address required")
)

type engineState interface {
	RegistryWorkGet(id uint64) (*Work, bool, error)
	RegistryWorkPut(work *Work) error
	RegistryWorkIDByFingerprint(fingerprint [32]byte) (uint64, bool, error)
	RegistryFingerprintPut(fingerprint [32]byte, id uint64) error
	RegistryNextWorkID() (uint64, error)
	Snapshot() int
	RevertToSnapshot(revision int)
}

// Engine owns work identity: minting unique records, deduplicating by content
// fingerprint and tracking the active flag consulted by the royalty ledger.
type Engine struct {
	state      engineState
	emitter    events.Emitter
	nowFn      func() int64
	reputation *reputation.Recorder
}

// NewEngine constructs a registry engine with default dependencies.
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

// SetReputation wires the capability used to credit registered works to the
// creator's stats. Optional; without it registrations are not reported.
func (e *Engine) SetReputation(recorder *reputation.Recorder) { e.reputation = recorder }

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

// Fingerprint derives the canonical content fingerprint for raw work content.
func Fingerprint(content []byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(content))
	return out
}

// Register mints a new work record for the supplied fingerprint. A
// fingerprint may identify at most one work; duplicates are rejected.
func (e *Engine) Register(creator [20]byte, fingerprint [32]byte, metadataURI string) (*Work, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(creator) {
		return nil, errNilCreator
	}
	if fingerprint == ([32]byte{}) {
		return nil, errNilFingerprint
	}
	if _, ok, err := e.state.RegistryWorkIDByFingerprint(fingerprint); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrFingerprintExists
	}
	snap := e.state.Snapshot()
	fail := func(err error) (*Work, error) {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	id, err := e.state.RegistryNextWorkID()
	if err != nil {
		return fail(err)
	}
	work := &Work{
		ID:           id,
		Fingerprint:  fingerprint,
		Creator:      creator,
		MetadataURI:  strings.TrimSpace(metadataURI),
		Active:       true,
		RegisteredAt: e.now(),
	}
	if err := e.state.RegistryWorkPut(work); err != nil {
		return fail(err)
	}
	if err := e.state.RegistryFingerprintPut(fingerprint, id); err != nil {
		return fail(err)
	}
	if e.reputation != nil {
		if _, err := e.reputation.IncrementWorks(creator); err != nil {
			return fail(err)
		}
	}
	e.emit(WorkRegisteredEvent(work))
	return work.Clone(), nil
}

// SetActive flips the active flag on a work. Owner only.
func (e *Engine) SetActive(caller [20]byte, id uint64, active bool) (*Work, error) {
	work, err := e.loadWork(id)
	if err != nil {
		return nil, err
	}
	if work.Creator != caller {
		return nil, ErrUnauthorized
	}
	if work.Active == active {
		return work.Clone(), nil
	}
	work.Active = active
	if err := e.state.RegistryWorkPut(work); err != nil {
		return nil, err
	}
	e.emit(WorkStatusChangedEvent(work))
	return work.Clone(), nil
}

func (e *Engine) loadWork(id uint64) (*Work, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	work, ok, err := e.state.RegistryWorkGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || work == nil {
		return nil, ErrWorkNotFound
	}
	return work, nil
}

// Work returns the stored record for the supplied identifier.
func (e *Engine) Work(id uint64) (*Work, error) {
	work, err := e.loadWork(id)
	if err != nil {
		return nil, err
	}
	return work.Clone(), nil
}

// OwnerOf resolves the current owner of a work. Fails for unknown works.
func (e *Engine) OwnerOf(id uint64) ([20]byte, error) {
	work, err := e.loadWork(id)
	if err != nil {
		return [20]byte{}, err
	}
	return work.Creator, nil
}

// MetadataOf returns the metadata URI stored for a work.
func (e *Engine) MetadataOf(id uint64) (string, error) {
	work, err := e.loadWork(id)
	if err != nil {
		return "", err
	}
	return work.MetadataURI, nil
}

// ExistsAndActive reports whether the work is known and accepting payments.
func (e *Engine) ExistsAndActive(id uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	work, ok, err := e.state.RegistryWorkGet(id)
	if err != nil {
		return false, err
	}
	if !ok || work == nil {
		return false, nil
	}
	return work.Active, nil
}

// VerifyFingerprint resolves a content fingerprint to its registered work, if
// any.
func (e *Engine) VerifyFingerprint(fingerprint [32]byte) (bool, uint64, [20]byte, error) {
	if e == nil || e.state == nil {
		return false, 0, [20]byte{}, errNilState
	}
	id, ok, err := e.state.RegistryWorkIDByFingerprint(fingerprint)
	if err != nil || !ok {
		return false, 0, [20]byte{}, err
	}
	work, found, err := e.state.RegistryWorkGet(id)
	if err != nil || !found || work == nil {
		return false, 0, [20]byte{}, err
	}
	return true, work.ID, work.Creator, nil
}
