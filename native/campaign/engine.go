package campaign

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
	errNilState = errors.New("campaign engine: state not configured")
	// ErrCampaignNotFound marks lookups for unknown campaign identifiers.
	ErrCampaignNotFound = errors.New("campaign engine: campaign not found")
	// ErrCampaignExists marks creation attempts for works that already have a
	// campaign, cancelled ones included.
	ErrCampaignExists = errors.New("campaign engine: work already has a campaign")
	// ErrNotCreator marks creator-only operations invoked by someone else.
	ErrNotCreator = errors.New("campaign engine: caller is not the campaign creator")
	// ErrSelfContribution marks creators funding their own campaign.
	ErrSelfContribution = errors.New("campaign engine: creator cannot contribute")
	// ErrNotActive marks operations requiring an Active campaign.
	ErrNotActive = errors.New("campaign engine: campaign is not active")
	// ErrDeadlinePassed marks contributions after the deadline.
	ErrDeadlinePassed = errors.New("campaign engine: deadline passed")
	// ErrDeadlineNotReached marks finalization before the deadline.
	ErrDeadlineNotReached = errors.New("campaign engine: deadline not reached")
	// ErrNotSuccessful marks withdrawals from non-successful campaigns.
	ErrNotSuccessful = errors.New("campaign engine: campaign not successful")
	// ErrNotFailed marks refund claims on non-failed campaigns.
	ErrNotFailed = errors.New("campaign engine: campaign not failed")
	// ErrAlreadyWithdrawn marks a second withdrawal attempt.
	ErrAlreadyWithdrawn = errors.New("campaign engine: funds already withdrawn")
	// ErrNoContribution marks refund claims with a zeroed aggregate.
	ErrNoContribution = errors.New("campaign engine: no contribution")
	// ErrNotEmpty marks cancellation of a campaign holding contributions.
	ErrNotEmpty = errors.New("campaign engine: campaign has contributions")
	// ErrInvalidAmount marks non-positive contribution amounts.
	ErrInvalidAmount = errors.New("campaign engine: amount must be positive")
	// ErrInsufficientFunds marks contributors whose balance cannot cover a
	// contribution.
	ErrInsufficientFunds = errors.New("campaign engine: insufficient balance")
	// ErrReentrantCall marks a guarded operation entered while one is in
	// flight on the call stack.
	ErrReentrantCall         = errors.New("campaign engine: reentrant call")
	errVaultNotSet           = errors.New("campaign engine: vault not configured")
	errPlatformNotSet        = errors.New("campaign engine: platform treasury not configured")
	errRegistryNotConfigured = errors.New("campaign engine: registry not configured")
	errNotOwner              = errors.New("campaign engine: caller does not own the work")
)

const (
	// BpsDenominator is the basis-point scale shared with the royalty ledger.
	BpsDenominator = 10_000
	// MaxShareBps caps the royalty share a campaign may offer.
	MaxShareBps = 5_000
	// MaxDurationDays bounds the campaign funding window.
	MaxDurationDays = 90
	// DefaultPlatformFeeBps is the platform cut taken on withdrawal.
	DefaultPlatformFeeBps = 500

	secondsPerDay = 86_400
)

// WorkRegistry is the slice of the identity registry the campaign manager
// consumes.
type WorkRegistry interface {
	OwnerOf(workID uint64) ([20]byte, error)
}

// TransferFunc settles an outbound payment from the campaign vault. The
// default implementation moves account balances through the state backend.
// All engine state is settled before a transfer is invoked.
type TransferFunc func(to [20]byte, amount *big.Int) error

type engineState interface {
	CampaignGet(id uint64) (*Campaign, bool, error)
	CampaignPut(campaign *Campaign) error
	CampaignNextID() (uint64, error)
	CampaignIDByWork(workID uint64) (uint64, bool, error)
	CampaignWorkIndexPut(workID uint64, id uint64) error
	CampaignContributionsGet(id uint64) ([]Contribution, error)
	CampaignContributionAppend(id uint64, c Contribution) error
	CampaignContributorTotalGet(id uint64, contributor [20]byte) (*big.Int, error)
	CampaignContributorTotalPut(id uint64, contributor [20]byte, total *big.Int) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	Snapshot() int
	RevertToSnapshot(revision int)
}

// Engine owns the campaign lifecycle: funding, finalization, withdrawal and
// refunds. Contributions are custodied in the engine vault until the outcome
// is decided. On success the engine computes the royalty-share allocation but
// does not install it into the royalty ledger; installing a split remains the
// creator's own authorized follow-up through the ledger's ConfigureSplit.
type Engine struct {
	state            engineState
	registry         WorkRegistry
	emitter          events.Emitter
	nowFn            func() int64
	vault            [20]byte
	platformTreasury [20]byte
	platformFeeBps   uint32
	reputation       *reputation.Recorder
	transferFn       TransferFunc

	contributing bool
	finalizing   bool
	withdrawing  bool
	refunding    bool
}

// NewEngine constructs a campaign engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter:        events.NoopEmitter{},
		nowFn:          func() int64 { return time.Now().Unix() },
		platformFeeBps: DefaultPlatformFeeBps,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the identity registry consulted for ownership.
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

// SetVault configures the holding account for live contributions.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetPlatformTreasury configures the recipient of the withdrawal fee.
func (e *Engine) SetPlatformTreasury(addr [20]byte) { e.platformTreasury = addr }

// SetPlatformFeeBps overrides the withdrawal fee. Values above the
// denominator are rejected silently in favour of the default.
func (e *Engine) SetPlatformFeeBps(bps uint32) {
	if bps > BpsDenominator {
		e.platformFeeBps = DefaultPlatformFeeBps
		return
	}
	e.platformFeeBps = bps
}

// SetReputation wires the capability used to report campaign successes.
// Optional; without it successes are not reported.
func (e *Engine) SetReputation(recorder *reputation.Recorder) { e.reputation = recorder }

// SetTransferFunc overrides the outbound payment path.
func (e *Engine) SetTransferFunc(fn TransferFunc) { e.transferFn = fn }

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

func (e *Engine) payOut(to [20]byte, amount *big.Int) error {
	if e.transferFn != nil {
		return e.transferFn(to, new(big.Int).Set(amount))
	}
	return e.moveBalance(e.vault, to, amount)
}

func (e *Engine) loadCampaign(id uint64) (*Campaign, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	campaign, ok, err := e.state.CampaignGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return ensureCampaign(campaign), nil
}

// Create opens a campaign for a work the caller owns. One campaign per work,
// ever: cancelled campaigns still occupy the slot.
func (e *Engine) Create(caller [20]byte, workID uint64, goal *big.Int, shareBps uint32, durationDays, lockupDays uint32) (*Campaign, error) {
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
		return nil, errNotOwner
	}
	if goal == nil || goal.Sign() <= 0 {
		return nil, fmt.Errorf("campaign: goal must be positive")
	}
	if shareBps == 0 || shareBps > MaxShareBps {
		return nil, fmt.Errorf("campaign: royalty share must be within (0, %d] bps", MaxShareBps)
	}
	if durationDays == 0 || durationDays > MaxDurationDays {
		return nil, fmt.Errorf("campaign: duration must be within [1, %d] days", MaxDurationDays)
	}
	if _, ok, err := e.state.CampaignIDByWork(workID); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrCampaignExists
	}
	snap := e.state.Snapshot()
	fail := func(err error) (*Campaign, error) {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	// The ID counter, the record and the work index land together or not at
	// all; a half-created campaign would burn the work's one slot forever.
	id, err := e.state.CampaignNextID()
	if err != nil {
		return fail(err)
	}
	now := e.now()
	campaign := &Campaign{
		ID:         id,
		WorkID:     workID,
		Creator:    caller,
		Goal:       new(big.Int).Set(goal),
		Raised:     big.NewInt(0),
		ShareBps:   shareBps,
		Deadline:   now + int64(durationDays)*secondsPerDay,
		LockupDays: lockupDays,
		CreatedAt:  now,
		Status:     StatusActive,
	}
	if err := e.state.CampaignPut(campaign); err != nil {
		return fail(err)
	}
	if err := e.state.CampaignWorkIndexPut(workID, id); err != nil {
		return fail(err)
	}
	e.emit(CampaignCreatedEvent(campaign))
	return campaign.Clone(), nil
}

// Contribute funds an active campaign. Creators cannot fund themselves.
func (e *Engine) Contribute(caller [20]byte, id uint64, amount *big.Int) (*Campaign, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.contributing {
		return nil, ErrReentrantCall
	}
	e.contributing = true
	defer func() { e.contributing = false }()

	campaign, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != StatusActive {
		return nil, ErrNotActive
	}
	if e.now() >= campaign.Deadline {
		return nil, ErrDeadlinePassed
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if caller == campaign.Creator {
		return nil, ErrSelfContribution
	}
	if e.vault == ([20]byte{}) {
		return nil, errVaultNotSet
	}

	snap := e.state.Snapshot()
	fail := func(err error) (*Campaign, error) {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	if err := e.moveBalance(caller, e.vault, amount); err != nil {
		return fail(err)
	}
	campaign.Raised = new(big.Int).Add(campaign.Raised, amount)
	if err := e.state.CampaignPut(campaign); err != nil {
		return fail(err)
	}
	total, err := e.state.CampaignContributorTotalGet(id, caller)
	if err != nil {
		return fail(err)
	}
	if total == nil {
		total = big.NewInt(0)
	}
	total = new(big.Int).Add(total, amount)
	if err := e.state.CampaignContributorTotalPut(id, caller, total); err != nil {
		return fail(err)
	}
	record := Contribution{Contributor: caller, Amount: new(big.Int).Set(amount), Timestamp: e.now()}
	if err := e.state.CampaignContributionAppend(id, record); err != nil {
		return fail(err)
	}
	e.emit(ContributionMadeEvent(id, hexAddr(caller), amount.String(), campaign.Raised.String()))
	return campaign.Clone(), nil
}

// Finalize decides a campaign's outcome. Callable by anyone, only after the
// deadline and only once: a second call observes a non-Active status and
// rejects without re-running side effects. On success the royalty-share
// allocation is computed and returned; the caller hands it to the creator for
// installation through the royalty ledger.
func (e *Engine) Finalize(id uint64) (*Campaign, []AllocationEntry, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if e.finalizing {
		return nil, nil, ErrReentrantCall
	}
	e.finalizing = true
	defer func() { e.finalizing = false }()

	campaign, err := e.loadCampaign(id)
	if err != nil {
		return nil, nil, err
	}
	if campaign.Status != StatusActive {
		return nil, nil, ErrNotActive
	}
	if e.now() <= campaign.Deadline {
		return nil, nil, ErrDeadlineNotReached
	}

	snap := e.state.Snapshot()
	fail := func(err error) (*Campaign, []AllocationEntry, error) {
		e.state.RevertToSnapshot(snap)
		return nil, nil, err
	}

	if campaign.Raised.Cmp(campaign.Goal) >= 0 {
		campaign.Status = StatusSuccessful
	} else {
		campaign.Status = StatusFailed
	}
	if err := e.state.CampaignPut(campaign); err != nil {
		return fail(err)
	}

	var allocation []AllocationEntry
	if campaign.Status == StatusSuccessful {
		if e.reputation != nil {
			if _, err := e.reputation.IncrementSuccessfulCampaigns(campaign.Creator); err != nil {
				return fail(err)
			}
			if _, err := e.reputation.AddContributions(campaign.Creator, campaign.Raised); err != nil {
				return fail(err)
			}
		}
		allocation, err = e.computeAllocation(campaign)
		if err != nil {
			return fail(err)
		}
	}
	e.emit(CampaignFinalizedEvent(campaign))
	return campaign.Clone(), allocation, nil
}

// computeAllocation derives the royalty-share vectors for a successful
// campaign: the creator keeps 10000-shareBps and each contributor receives
// total*shareBps/raised by floor division. Residual basis points from
// rounding are accepted dust and are not redistributed.
func (e *Engine) computeAllocation(campaign *Campaign) ([]AllocationEntry, error) {
	contributions, err := e.state.CampaignContributionsGet(campaign.ID)
	if err != nil {
		return nil, err
	}
	allocation := []AllocationEntry{{
		Beneficiary: campaign.Creator,
		Bps:         BpsDenominator - campaign.ShareBps,
	}}
	seen := make(map[[20]byte]bool, len(contributions))
	for _, c := range contributions {
		if seen[c.Contributor] {
			continue
		}
		seen[c.Contributor] = true
		bps, err := e.contributorShareBps(campaign, c.Contributor)
		if err != nil {
			return nil, err
		}
		if bps == 0 {
			continue
		}
		allocation = append(allocation, AllocationEntry{Beneficiary: c.Contributor, Bps: bps})
	}
	return allocation, nil
}

func (e *Engine) contributorShareBps(campaign *Campaign, contributor [20]byte) (uint32, error) {
	if campaign.Raised == nil || campaign.Raised.Sign() == 0 {
		return 0, nil
	}
	total, err := e.state.CampaignContributorTotalGet(campaign.ID, contributor)
	if err != nil {
		return 0, err
	}
	if total == nil || total.Sign() == 0 {
		return 0, nil
	}
	share := new(big.Int).Mul(total, big.NewInt(int64(campaign.ShareBps)))
	share.Div(share, campaign.Raised)
	return uint32(share.Uint64()), nil
}

// Withdraw pays out a successful campaign to its creator, minus the platform
// fee. One shot: the funds-withdrawn flag flips before any transfer, and both
// transfers succeed or the whole call reverts.
func (e *Engine) Withdraw(caller [20]byte, id uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.withdrawing {
		return nil, ErrReentrantCall
	}
	e.withdrawing = true
	defer func() { e.withdrawing = false }()

	campaign, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	if caller != campaign.Creator {
		return nil, ErrNotCreator
	}
	if campaign.Status != StatusSuccessful {
		return nil, ErrNotSuccessful
	}
	if campaign.FundsWithdrawn {
		return nil, ErrAlreadyWithdrawn
	}
	if e.platformTreasury == ([20]byte{}) {
		return nil, errPlatformNotSet
	}
	if e.vault == ([20]byte{}) {
		return nil, errVaultNotSet
	}

	snap := e.state.Snapshot()
	fail := func(err error) (*big.Int, error) {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	// One-shot flag flips before the transfers.
	campaign.FundsWithdrawn = true
	if err := e.state.CampaignPut(campaign); err != nil {
		return fail(err)
	}
	creatorShare := new(big.Int).Mul(campaign.Raised, big.NewInt(int64(BpsDenominator-e.platformFeeBps)))
	creatorShare.Div(creatorShare, big.NewInt(BpsDenominator))
	platformShare := new(big.Int).Sub(campaign.Raised, creatorShare)
	if err := e.payOut(campaign.Creator, creatorShare); err != nil {
		return fail(fmt.Errorf("campaign: creator payout failed: %w", err))
	}
	if err := e.payOut(e.platformTreasury, platformShare); err != nil {
		return fail(fmt.Errorf("campaign: platform payout failed: %w", err))
	}
	e.emit(FundsWithdrawnEvent(id, hexAddr(campaign.Creator), creatorShare.String(), platformShare.String()))
	return creatorShare, nil
}

// ClaimRefund returns a contributor's full aggregate from a failed campaign.
// The aggregate is zeroed before the transfer; a second claim rejects.
func (e *Engine) ClaimRefund(caller [20]byte, id uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.refunding {
		return nil, ErrReentrantCall
	}
	e.refunding = true
	defer func() { e.refunding = false }()

	campaign, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != StatusFailed {
		return nil, ErrNotFailed
	}
	total, err := e.state.CampaignContributorTotalGet(id, caller)
	if err != nil {
		return nil, err
	}
	if total == nil || total.Sign() == 0 {
		return nil, ErrNoContribution
	}
	if e.vault == ([20]byte{}) {
		return nil, errVaultNotSet
	}

	snap := e.state.Snapshot()
	fail := func(err error) (*big.Int, error) {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	// Zero the aggregate before the transfer.
	if err := e.state.CampaignContributorTotalPut(id, caller, big.NewInt(0)); err != nil {
		return fail(err)
	}
	refund := new(big.Int).Set(total)
	if err := e.payOut(caller, refund); err != nil {
		return fail(fmt.Errorf("campaign: refund failed: %w", err))
	}
	e.emit(RefundIssuedEvent(id, hexAddr(caller), refund.String()))
	return refund, nil
}

// Cancel terminates an unfunded active campaign. Creator only; irreversible.
func (e *Engine) Cancel(caller [20]byte, id uint64) (*Campaign, error) {
	campaign, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	if caller != campaign.Creator {
		return nil, ErrNotCreator
	}
	if campaign.Status != StatusActive {
		return nil, ErrNotActive
	}
	if campaign.Raised.Sign() != 0 {
		return nil, ErrNotEmpty
	}
	campaign.Status = StatusCancelled
	if err := e.state.CampaignPut(campaign); err != nil {
		return nil, err
	}
	e.emit(CampaignCancelledEvent(id, hexAddr(caller)))
	return campaign.Clone(), nil
}

// Campaign returns the stored campaign for an identifier.
func (e *Engine) Campaign(id uint64) (*Campaign, error) {
	campaign, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	return campaign.Clone(), nil
}

// CampaignByWork resolves the campaign occupying a work's slot, if any.
func (e *Engine) CampaignByWork(workID uint64) (*Campaign, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	id, ok, err := e.state.CampaignIDByWork(workID)
	if err != nil || !ok {
		return nil, false, err
	}
	campaign, err := e.loadCampaign(id)
	if err != nil {
		return nil, false, err
	}
	return campaign.Clone(), true, nil
}

// Contributions returns the append-only funding history for a campaign.
func (e *Engine) Contributions(id uint64) ([]Contribution, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadCampaign(id); err != nil {
		return nil, err
	}
	contributions, err := e.state.CampaignContributionsGet(id)
	if err != nil {
		return nil, err
	}
	out := make([]Contribution, len(contributions))
	for i, c := range contributions {
		out[i] = c.Clone()
	}
	return out, nil
}

// ContributorTotal returns the live aggregate for one contributor.
func (e *Engine) ContributorTotal(id uint64, contributor [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadCampaign(id); err != nil {
		return nil, err
	}
	total, err := e.state.CampaignContributorTotalGet(id, contributor)
	if err != nil {
		return nil, err
	}
	if total == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(total), nil
}

// ShareBps returns the proportional royalty share a contributor would hold
// out of the campaign's offered pool.
func (e *Engine) ShareBps(id uint64, contributor [20]byte) (uint32, error) {
	campaign, err := e.loadCampaign(id)
	if err != nil {
		return 0, err
	}
	return e.contributorShareBps(campaign, contributor)
}

// Allocation recomputes the royalty-share vectors for a successful campaign.
func (e *Engine) Allocation(id uint64) ([]AllocationEntry, error) {
	campaign, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != StatusSuccessful {
		return nil, ErrNotSuccessful
	}
	return e.computeAllocation(campaign)
}
