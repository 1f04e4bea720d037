package royalty

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"opusledger/core/events"
	"opusledger/core/types"
	"opusledger/native/reputation"
)

var (
	errNilState = errors.New("royalty engine: state not configured")
	// ErrWorkInactive marks payments into unknown or deactivated works.
	ErrWorkInactive = errors.New("royalty engine: work unknown or inactive")
	// ErrInvalidAmount marks non-positive payment amounts.
	ErrInvalidAmount = errors.New("royalty engine: amount must be positive")
	// ErrInsufficientFunds marks payers whose balance cannot cover a payment.
	ErrInsufficientFunds = errors.New("royalty engine: insufficient balance")
	// ErrNotOwner marks split configuration attempts by non-owners.
	ErrNotOwner = errors.New("royalty engine: caller is not the work owner")
	// ErrBelowMinDistribution marks distributions under the dust threshold.
	ErrBelowMinDistribution = errors.New("royalty engine: pending below minimum distribution")
	// ErrReentrantCall marks a distribution entered while one is in flight.
	ErrReentrantCall         = errors.New("royalty engine: reentrant call")
	errVaultNotSet           = errors.New("royalty engine: vault not configured")
	errPlatformNotSet        = errors.New("royalty engine: platform treasury not configured")
	errOwnerUnresolvable     = errors.New("royalty engine: work owner unresolvable")
	errRegistryNotConfigured = errors.New("royalty engine: registry not configured")
)

// Default division applied when a work has no configured split.
const (
	DefaultOwnerShareBps    = 9_000
	DefaultPlatformShareBps = 1_000
)

// DefaultMinDistribution is the dust threshold below which a distribution is
// rejected: 0.001 units in wei.
var DefaultMinDistribution = new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil)

// WorkRegistry is the slice of the identity registry the ledger consumes.
// Lookups are always live; ownership is never cached.
type WorkRegistry interface {
	ExistsAndActive(workID uint64) (bool, error)
	OwnerOf(workID uint64) ([20]byte, error)
}

// TransferFunc settles an outbound payout from the ledger vault. The default
// implementation moves account balances through the state backend; tests
// substitute sinks that fail or synchronously call back into the engine.
// All engine state is settled before a transfer is invoked.
type TransferFunc func(to [20]byte, amount *big.Int) error

type engineState interface {
	RoyaltySplitGet(workID uint64) (*Split, bool, error)
	RoyaltySplitPut(split *Split) error
	RoyaltyBalanceGet(workID uint64) (*BalanceRecord, bool, error)
	RoyaltyBalancePut(record *BalanceRecord) error
	RoyaltyDistributedGet(workID uint64, beneficiary [20]byte) (*big.Int, error)
	RoyaltyDistributedAdd(workID uint64, beneficiary [20]byte, amount *big.Int) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	Snapshot() int
	RevertToSnapshot(revision int)
}

// Engine holds per-work pending and lifetime balances, the split
// configuration, and executes at-most-once fund distribution. Funds received
// for a work are custodied in the engine vault until distributed.
type Engine struct {
	state            engineState
	registry         WorkRegistry
	emitter          events.Emitter
	nowFn            func() int64
	vault            [20]byte
	platformTreasury [20]byte
	minDistribution  *big.Int
	reputation       *reputation.Recorder
	transferFn       TransferFunc
	distributing     bool
}

// NewEngine constructs a royalty engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter:         events.NoopEmitter{},
		nowFn:           func() int64 { return time.Now().Unix() },
		minDistribution: new(big.Int).Set(DefaultMinDistribution),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the identity registry consulted for work lookups.
func (e *Engine) SetRegistry(registry WorkRegistry) { e.registry = registry }

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

// SetVault configures the holding account for undistributed royalties.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetPlatformTreasury configures the recipient of the default platform share.
func (e *Engine) SetPlatformTreasury(addr [20]byte) { e.platformTreasury = addr }

// SetMinDistribution overrides the dust threshold.
func (e *Engine) SetMinDistribution(min *big.Int) {
	if min == nil || min.Sign() <= 0 {
		e.minDistribution = new(big.Int).Set(DefaultMinDistribution)
		return
	}
	e.minDistribution = new(big.Int).Set(min)
}

// SetReputation wires the capability used to report distributed earnings.
// Optional; without it earnings are not reported.
func (e *Engine) SetReputation(recorder *reputation.Recorder) { e.reputation = recorder }

// SetTransferFunc overrides the outbound payout path.
func (e *Engine) SetTransferFunc(fn TransferFunc) { e.transferFn = fn }

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func (e *Engine) moveBalance(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	toAcc = ensureAccount(toAcc)
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

// payOut settles one beneficiary payment. The state mutations of the
// triggering operation are complete before this runs, so a sink that calls
// back into the engine observes the operation as already finished.
func (e *Engine) payOut(to [20]byte, amount *big.Int) error {
	if e.transferFn != nil {
		return e.transferFn(to, new(big.Int).Set(amount))
	}
	return e.moveBalance(e.vault, to, amount)
}

func (e *Engine) loadBalance(workID uint64) (*BalanceRecord, error) {
	record, ok, err := e.state.RoyaltyBalanceGet(workID)
	if err != nil {
		return nil, err
	}
	if !ok || record == nil {
		record = newBalance(workID)
	}
	return ensureBalance(record), nil
}

// ReceivePayment records a usage payment for a work. Permissionless by
// design: any payer may pay into any active work, with the platform and
// usage-type strings carried as free-form context on the emitted event.
func (e *Engine) ReceivePayment(payer [20]byte, workID uint64, amount *big.Int, platform, usageType string) (*BalanceRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.registry == nil {
		return nil, errRegistryNotConfigured
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.vault == ([20]byte{}) {
		return nil, errVaultNotSet
	}
	active, err := e.registry.ExistsAndActive(workID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrWorkInactive
	}
	snap := e.state.Snapshot()
	if err := e.moveBalance(payer, e.vault, amount); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	record, err := e.loadBalance(workID)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	record.Pending = new(big.Int).Add(record.Pending, amount)
	record.TotalEarned = new(big.Int).Add(record.TotalEarned, amount)
	if err := e.state.RoyaltyBalancePut(record); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	e.emit(PaymentReceivedEvent(workID, hexAddr(payer), amount.String(), platform, usageType))
	return record.Clone(), nil
}

// ConfigureSplit overwrites the split configuration for a work. The caller
// must be the current owner, resolved live from the registry.
func (e *Engine) ConfigureSplit(caller [20]byte, workID uint64, entries []SplitEntry) (*Split, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.registry == nil {
		return nil, errRegistryNotConfigured
	}
	owner, err := e.registry.OwnerOf(workID)
	if err != nil {
		return nil, err
	}
	if owner != caller {
		return nil, ErrNotOwner
	}
	split, err := SanitizeSplit(workID, entries)
	if err != nil {
		return nil, err
	}
	if err := e.state.RoyaltySplitPut(split); err != nil {
		return nil, err
	}
	e.emit(SplitConfiguredEvent(workID, len(split.Entries)))
	return split.Clone(), nil
}

// Distribute drains the work's pending balance to its beneficiaries.
//
// Ordering is the reentrancy defense and must hold exactly: the pending
// balance is zeroed before the first outbound transfer, so a reentrant call
// on the same work sees pending == 0 and fails the threshold check. The
// distributing flag independently blocks a second Distribute on the call
// stack. Any transfer failure reverts the whole call, including the zeroed
// pending; partial distribution is never left behind.
func (e *Engine) Distribute(workID uint64) ([]Payout, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.distributing {
		return nil, ErrReentrantCall
	}
	e.distributing = true
	defer func() { e.distributing = false }()

	if e.registry == nil {
		return nil, errRegistryNotConfigured
	}
	record, err := e.loadBalance(workID)
	if err != nil {
		return nil, err
	}
	pending := new(big.Int).Set(record.Pending)
	if pending.Cmp(e.minDistribution) < 0 {
		return nil, ErrBelowMinDistribution
	}
	owner, err := e.registry.OwnerOf(workID)
	if err != nil {
		return nil, err
	}
	if owner == ([20]byte{}) {
		return nil, errOwnerUnresolvable
	}
	split, configured, err := e.state.RoyaltySplitGet(workID)
	if err != nil {
		return nil, err
	}
	var entries []SplitEntry
	usedDefault := false
	if configured && split != nil && len(split.Entries) > 0 {
		entries = split.Entries
	} else {
		if e.platformTreasury == ([20]byte{}) {
			return nil, errPlatformNotSet
		}
		entries = []SplitEntry{
			{Beneficiary: owner, Bps: DefaultOwnerShareBps},
			{Beneficiary: e.platformTreasury, Bps: DefaultPlatformShareBps},
		}
		usedDefault = true
	}

	// Payout amounts are pure functions of pending and the split, so compute
	// them all up front. That fixes the floor-division dust before the first
	// transfer and keeps the balance record write-once for this call.
	payouts := make([]Payout, 0, len(entries))
	paid := big.NewInt(0)
	for _, entry := range entries {
		share := new(big.Int).Mul(pending, big.NewInt(int64(entry.Bps)))
		share.Div(share, big.NewInt(BpsDenominator))
		if share.Sign() == 0 {
			continue
		}
		paid = new(big.Int).Add(paid, share)
		payouts = append(payouts, Payout{Beneficiary: entry.Beneficiary, Amount: share})
	}
	dust := new(big.Int).Sub(pending, paid)

	snap := e.state.Snapshot()
	fail := func(err error) ([]Payout, error) {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	// Checks-effects-interactions: zero pending and settle the dust residue
	// before any transfer. The record is never written again after this, so a
	// sink that pays back into the same work cannot have its write clobbered.
	record.Pending = big.NewInt(0)
	if dust.Sign() > 0 {
		record.DustAccrued = new(big.Int).Add(record.DustAccrued, dust)
	}
	if err := e.state.RoyaltyBalancePut(record); err != nil {
		return fail(err)
	}

	for _, payout := range payouts {
		if err := e.payOut(payout.Beneficiary, payout.Amount); err != nil {
			return fail(fmt.Errorf("royalty: payout to %s failed: %w", hexAddr(payout.Beneficiary), err))
		}
		if err := e.state.RoyaltyDistributedAdd(workID, payout.Beneficiary, payout.Amount); err != nil {
			return fail(err)
		}
		if e.reputation != nil {
			if _, err := e.reputation.AddEarnings(payout.Beneficiary, payout.Amount); err != nil {
				return fail(err)
			}
		}
	}

	e.emit(DistributedEvent(workID, pending.String(), len(payouts), dust.String()))
	if usedDefault {
		platformShare := new(big.Int).Mul(pending, big.NewInt(DefaultPlatformShareBps))
		platformShare.Div(platformShare, big.NewInt(BpsDenominator))
		e.emit(PlatformFeeCollectedEvent(workID, hexAddr(e.platformTreasury), platformShare.String()))
	}
	return payouts, nil
}

// Split returns the configured split for a work, reporting ok=false when the
// default division applies.
func (e *Engine) Split(workID uint64) (*Split, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	split, ok, err := e.state.RoyaltySplitGet(workID)
	if err != nil || !ok {
		return nil, false, err
	}
	return split.Clone(), true, nil
}

// Pending returns the undistributed balance for a work.
func (e *Engine) Pending(workID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, err := e.loadBalance(workID)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(record.Pending), nil
}

// TotalEarned returns the lifetime earnings recorded for a work.
func (e *Engine) TotalEarned(workID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, err := e.loadBalance(workID)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(record.TotalEarned), nil
}

// Balance returns the full balance record for a work.
func (e *Engine) Balance(workID uint64) (*BalanceRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, err := e.loadBalance(workID)
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// Distributed returns the cumulative amount paid to a beneficiary for a work.
func (e *Engine) Distributed(workID uint64, beneficiary [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.RoyaltyDistributedGet(workID, beneficiary)
}
