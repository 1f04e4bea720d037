package royalty

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"opusledger/core/events"
	"opusledger/core/types"
	"opusledger/native/reputation"
)

type mockWork struct {
	owner  [20]byte
	active bool
}

type mockRegistry struct {
	works map[uint64]mockWork
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{works: make(map[uint64]mockWork)}
}

func (m *mockRegistry) ExistsAndActive(workID uint64) (bool, error) {
	work, ok := m.works[workID]
	return ok && work.active, nil
}

func (m *mockRegistry) OwnerOf(workID uint64) ([20]byte, error) {
	work, ok := m.works[workID]
	if !ok {
		return [20]byte{}, fmt.Errorf("registry: work %d not found", workID)
	}
	return work.owner, nil
}

type mockState struct {
	splits      map[uint64]*Split
	balances    map[uint64]*BalanceRecord
	distributed map[string]*big.Int
	accounts    map[string]*types.Account
	stats       map[[20]byte]*reputation.CreatorStats
	snapshots   []*mockState
}

func newMockState() *mockState {
	return &mockState{
		splits:      make(map[uint64]*Split),
		balances:    make(map[uint64]*BalanceRecord),
		distributed: make(map[string]*big.Int),
		accounts:    make(map[string]*types.Account),
		stats:       make(map[[20]byte]*reputation.CreatorStats),
	}
}

func distributedKey(workID uint64, beneficiary [20]byte) string {
	return fmt.Sprintf("%d/%x", workID, beneficiary)
}

func (m *mockState) copyState() *mockState {
	clone := newMockState()
	for id, split := range m.splits {
		clone.splits[id] = split.Clone()
	}
	for id, record := range m.balances {
		clone.balances[id] = record.Clone()
	}
	for key, amount := range m.distributed {
		clone.distributed[key] = new(big.Int).Set(amount)
	}
	for key, acc := range m.accounts {
		clone.accounts[key] = acc.Clone()
	}
	for key, stats := range m.stats {
		clone.stats[key] = stats.Clone()
	}
	return clone
}

func (m *mockState) Snapshot() int {
	m.snapshots = append(m.snapshots, m.copyState())
	return len(m.snapshots) - 1
}

func (m *mockState) RevertToSnapshot(revision int) {
	if revision < 0 || revision >= len(m.snapshots) {
		return
	}
	restored := m.snapshots[revision]
	m.splits = restored.splits
	m.balances = restored.balances
	m.distributed = restored.distributed
	m.accounts = restored.accounts
	m.stats = restored.stats
	m.snapshots = m.snapshots[:revision]
}

func (m *mockState) RoyaltySplitGet(workID uint64) (*Split, bool, error) {
	split, ok := m.splits[workID]
	if !ok {
		return nil, false, nil
	}
	return split.Clone(), true, nil
}

func (m *mockState) RoyaltySplitPut(split *Split) error {
	if split == nil {
		return nil
	}
	m.splits[split.WorkID] = split.Clone()
	return nil
}

func (m *mockState) RoyaltyBalanceGet(workID uint64) (*BalanceRecord, bool, error) {
	record, ok := m.balances[workID]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (m *mockState) RoyaltyBalancePut(record *BalanceRecord) error {
	if record == nil {
		return nil
	}
	m.balances[record.WorkID] = record.Clone()
	return nil
}

func (m *mockState) RoyaltyDistributedGet(workID uint64, beneficiary [20]byte) (*big.Int, error) {
	if amount, ok := m.distributed[distributedKey(workID, beneficiary)]; ok {
		return new(big.Int).Set(amount), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) RoyaltyDistributedAdd(workID uint64, beneficiary [20]byte, amount *big.Int) error {
	key := distributedKey(workID, beneficiary)
	total, ok := m.distributed[key]
	if !ok {
		total = big.NewInt(0)
	}
	m.distributed[key] = new(big.Int).Add(total, amount)
	return nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	if acc, ok := m.accounts[string(addr)]; ok {
		return acc.Clone(), nil
	}
	return nil, nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		delete(m.accounts, string(addr))
		return nil
	}
	m.accounts[string(addr)] = account.Clone()
	return nil
}

func (m *mockState) ReputationStatsGet(creator [20]byte) (*reputation.CreatorStats, bool, error) {
	stats, ok := m.stats[creator]
	if !ok {
		return nil, false, nil
	}
	return stats.Clone(), true, nil
}

func (m *mockState) ReputationStatsPut(stats *reputation.CreatorStats) error {
	if stats == nil {
		return nil
	}
	m.stats[stats.Creator] = stats.Clone()
	return nil
}

func (m *mockState) setAccount(addr [20]byte, amount int64) {
	m.accounts[string(addr[:])] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	if acc, ok := m.accounts[string(addr[:])]; ok && acc.Balance != nil {
		return new(big.Int).Set(acc.Balance)
	}
	return big.NewInt(0)
}

func sumBalances(state *mockState, addrs ...[20]byte) *big.Int {
	total := big.NewInt(0)
	for _, a := range addrs {
		total = new(big.Int).Add(total, state.balance(a))
	}
	return total
}

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func newTestEngine(state *mockState, registry *mockRegistry) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetRegistry(registry)
	engine.SetVault(addr(0xA0))
	engine.SetPlatformTreasury(addr(0xF0))
	engine.SetMinDistribution(big.NewInt(1))
	engine.SetNowFunc(func() int64 { return 1_000 })
	return engine
}

func TestReceivePaymentAccumulates(t *testing.T) {
	state := newMockState()
	registry := newMockRegistry()
	owner := addr(0x01)
	payer := addr(0x02)
	registry.works[7] = mockWork{owner: owner, active: true}
	state.setAccount(payer, 10_000)

	engine := newTestEngine(state, registry)

	record, err := engine.ReceivePayment(payer, 7, big.NewInt(1_500), "spotify", "stream")
	if err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	if record.Pending.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("unexpected pending after first payment: %s", record.Pending)
	}

	record, err = engine.ReceivePayment(payer, 7, big.NewInt(500), "bandcamp", "download")
	if err != nil {
		t.Fatalf("second payment failed: %v", err)
	}
	if record.Pending.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("pending did not accumulate: %s", record.Pending)
	}
	if record.TotalEarned.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("total earned did not accumulate: %s", record.TotalEarned)
	}
	if got := state.balance(payer); got.Cmp(big.NewInt(8_000)) != 0 {
		t.Fatalf("payer not debited: %s", got)
	}
	if got := state.balance(addr(0xA0)); got.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("vault not credited: %s", got)
	}
}

func TestReceivePaymentRejections(t *testing.T) {
	state := newMockState()
	registry := newMockRegistry()
	owner := addr(0x01)
	payer := addr(0x02)
	registry.works[1] = mockWork{owner: owner, active: true}
	registry.works[2] = mockWork{owner: owner, active: false}
	state.setAccount(payer, 100)

	engine := newTestEngine(state, registry)

	if _, err := engine.ReceivePayment(payer, 1, big.NewInt(0), "", ""); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := engine.ReceivePayment(payer, 2, big.NewInt(10), "", ""); !errors.Is(err, ErrWorkInactive) {
		t.Fatalf("expected inactive work, got %v", err)
	}
	if _, err := engine.ReceivePayment(payer, 99, big.NewInt(10), "", ""); !errors.Is(err, ErrWorkInactive) {
		t.Fatalf("expected unknown work, got %v", err)
	}
	if _, err := engine.ReceivePayment(payer, 1, big.NewInt(1_000), "", ""); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := state.balance(payer); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("failed payment mutated payer balance: %s", got)
	}
	if pending, _ := engine.Pending(1); pending.Sign() != 0 {
		t.Fatalf("failed payment left pending balance: %s", pending)
	}
}

func TestDistributeDefaultSplit(t *testing.T) {
	state := newMockState()
	registry := newMockRegistry()
	owner := addr(0x01)
	payer := addr(0x02)
	registry.works[3] = mockWork{owner: owner, active: true}
	state.setAccount(payer, 100_000)

	engine := newTestEngine(state, registry)
	log := events.NewLog()
	engine.SetEmitter(log)

	if _, err := engine.ReceivePayment(payer, 3, big.NewInt(10_000), "", ""); err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	initialTotal := sumBalances(state, payer, owner, addr(0xA0), addr(0xF0))

	payouts, err := engine.Distribute(3)
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if len(payouts) != 2 {
		t.Fatalf("expected 2 payouts, got %d", len(payouts))
	}
	if got := state.balance(owner); got.Cmp(big.NewInt(9_000)) != 0 {
		t.Fatalf("owner share wrong: %s", got)
	}
	if got := state.balance(addr(0xF0)); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("platform share wrong: %s", got)
	}
	if pending, _ := engine.Pending(3); pending.Sign() != 0 {
		t.Fatalf("pending not drained: %s", pending)
	}
	if dist, _ := engine.Distributed(3, owner); dist.Cmp(big.NewInt(9_000)) != 0 {
		t.Fatalf("distributed record wrong: %s", dist)
	}

	finalTotal := sumBalances(state, payer, owner, addr(0xA0), addr(0xF0))
	if initialTotal.Cmp(finalTotal) != 0 {
		t.Fatalf("funds not conserved: want %s got %s", initialTotal, finalTotal)
	}

	sawFee := false
	for _, evt := range log.Events() {
		if evt.EventType() == EventTypePlatformFeeCollected {
			sawFee = true
		}
	}
	if !sawFee {
		t.Fatalf("default split did not emit platform fee event")
	}
}

func TestDistributeConfiguredSplitWithDust(t *testing.T) {
	state := newMockState()
	registry := newMockRegistry()
	owner := addr(0x01)
	producer := addr(0x03)
	vocalist := addr(0x04)
	payer := addr(0x02)
	registry.works[4] = mockWork{owner: owner, active: true}
	state.setAccount(payer, 1_000_000)

	engine := newTestEngine(state, registry)

	entries := []SplitEntry{
		{Beneficiary: owner, Bps: 6_000},
		{Beneficiary: producer, Bps: 3_500},
		{Beneficiary: vocalist, Bps: 500},
	}
	if _, err := engine.ConfigureSplit(owner, 4, entries); err != nil {
		t.Fatalf("configure split failed: %v", err)
	}

	// 10_001 floor-divides unevenly across the shares.
	if _, err := engine.ReceivePayment(payer, 4, big.NewInt(10_001), "", ""); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if _, err := engine.Distribute(4); err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	if got := state.balance(owner); got.Cmp(big.NewInt(6_000)) != 0 {
		t.Fatalf("owner share wrong: %s", got)
	}
	if got := state.balance(producer); got.Cmp(big.NewInt(3_500)) != 0 {
		t.Fatalf("producer share wrong: %s", got)
	}
	if got := state.balance(vocalist); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("vocalist share wrong: %s", got)
	}

	record, err := engine.Balance(4)
	if err != nil {
		t.Fatalf("balance lookup failed: %v", err)
	}
	// TotalEarned == distributed + pending + dust must hold exactly.
	distributed := big.NewInt(6_000 + 3_500 + 500)
	reconstructed := new(big.Int).Add(distributed, record.Pending)
	reconstructed.Add(reconstructed, record.DustAccrued)
	if record.TotalEarned.Cmp(reconstructed) != 0 {
		t.Fatalf("balance identity broken: earned %s vs %s", record.TotalEarned, reconstructed)
	}
	if record.DustAccrued.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected 1 wei dust, got %s", record.DustAccrued)
	}
	// Dust stays custodied in the vault.
	if got := state.balance(addr(0xA0)); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("dust not retained in vault: %s", got)
	}
}

func TestDistributeBelowMinimum(t *testing.T) {
	state := newMockState()
	registry := newMockRegistry()
	owner := addr(0x01)
	payer := addr(0x02)
	registry.works[5] = mockWork{owner: owner, active: true}
	state.setAccount(payer, 10_000)

	engine := newTestEngine(state, registry)
	engine.SetMinDistribution(big.NewInt(5_000))

	if _, err := engine.ReceivePayment(payer, 5, big.NewInt(4_999), "", ""); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if _, err := engine.Distribute(5); !errors.Is(err, ErrBelowMinDistribution) {
		t.Fatalf("expected dust threshold rejection, got %v", err)
	}
	if pending, _ := engine.Pending(5); pending.Cmp(big.NewInt(4_999)) != 0 {
		t.Fatalf("rejected distribution mutated pending: %s", pending)
	}
}

func TestDistributeRevertsOnTransferFailure(t *testing.T) {
	state := newMockState()
	registry := newMockRegistry()
	owner := addr(0x01)
	payer := addr(0x02)
	registry.works[6] = mockWork{owner: owner, active: true}
	state.setAccount(payer, 10_000)

	engine := newTestEngine(state, registry)

	if _, err := engine.ReceivePayment(payer, 6, big.NewInt(10_000), "", ""); err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	calls := 0
	engine.SetTransferFunc(func(to [20]byte, amount *big.Int) error {
		calls++
		if calls == 2 {
			return errors.New("sink rejected transfer")
		}
		return nil
	})

	if _, err := engine.Distribute(6); err == nil {
		t.Fatalf("expected distribution failure")
	}
	if pending, _ := engine.Pending(6); pending.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("failed distribution did not restore pending: %s", pending)
	}
	if dist, _ := engine.Distributed(6, owner); dist.Sign() != 0 {
		t.Fatalf("failed distribution left distributed record: %s", dist)
	}
}

func TestDistributeBlocksReentrancy(t *testing.T) {
	state := newMockState()
	registry := newMockRegistry()
	owner := addr(0x01)
	payer := addr(0x02)
	registry.works[8] = mockWork{owner: owner, active: true}
	state.setAccount(payer, 10_000)

	engine := newTestEngine(state, registry)

	if _, err := engine.ReceivePayment(payer, 8, big.NewInt(10_000), "", ""); err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	var reentrantErr error
	engine.SetTransferFunc(func(to [20]byte, amount *big.Int) error {
		if reentrantErr == nil {
			_, reentrantErr = engine.Distribute(8)
		}
		return nil
	})

	if _, err := engine.Distribute(8); err != nil {
		t.Fatalf("outer distribution failed: %v", err)
	}
	if !errors.Is(reentrantErr, ErrReentrantCall) {
		t.Fatalf("reentrant call not blocked: %v", reentrantErr)
	}
	if pending, _ := engine.Pending(8); pending.Sign() != 0 {
		t.Fatalf("pending left after reentrancy attempt: %s", pending)
	}
}

func TestDistributeKeepsPaymentReceivedMidPayout(t *testing.T) {
	state := newMockState()
	registry := newMockRegistry()
	owner := addr(0x01)
	producer := addr(0x03)
	vocalist := addr(0x04)
	payer := addr(0x02)
	midPayer := addr(0x05)
	registry.works[11] = mockWork{owner: owner, active: true}
	state.setAccount(payer, 1_000_000)
	state.setAccount(midPayer, 1_000_000)

	engine := newTestEngine(state, registry)

	entries := []SplitEntry{
		{Beneficiary: owner, Bps: 6_000},
		{Beneficiary: producer, Bps: 3_500},
		{Beneficiary: vocalist, Bps: 500},
	}
	if _, err := engine.ConfigureSplit(owner, 11, entries); err != nil {
		t.Fatalf("configure split failed: %v", err)
	}
	// 10_001 leaves 1 wei of floor-division dust behind.
	if _, err := engine.ReceivePayment(payer, 11, big.NewInt(10_001), "", ""); err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	// A payment landing between two payouts must survive the distribution:
	// the balance record is settled, dust included, before the first transfer.
	var midErr error
	paidIn := false
	engine.SetTransferFunc(func(to [20]byte, amount *big.Int) error {
		if !paidIn {
			paidIn = true
			_, midErr = engine.ReceivePayment(midPayer, 11, big.NewInt(5_000), "radio", "broadcast")
		}
		return nil
	})

	if _, err := engine.Distribute(11); err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if midErr != nil {
		t.Fatalf("mid-distribution payment failed: %v", midErr)
	}

	record, err := engine.Balance(11)
	if err != nil {
		t.Fatalf("balance lookup failed: %v", err)
	}
	if record.Pending.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("mid-distribution payment lost: pending %s", record.Pending)
	}
	if record.TotalEarned.Cmp(big.NewInt(15_001)) != 0 {
		t.Fatalf("total earned wrong: %s", record.TotalEarned)
	}
	if record.DustAccrued.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("dust wrong: %s", record.DustAccrued)
	}
	// TotalEarned == distributed + pending + dust must still hold exactly.
	distributed := big.NewInt(6_000 + 3_500 + 500)
	reconstructed := new(big.Int).Add(distributed, record.Pending)
	reconstructed.Add(reconstructed, record.DustAccrued)
	if record.TotalEarned.Cmp(reconstructed) != 0 {
		t.Fatalf("balance identity broken: earned %s vs %s", record.TotalEarned, reconstructed)
	}
	if got := state.balance(midPayer); got.Cmp(big.NewInt(995_000)) != 0 {
		t.Fatalf("mid-distribution payer not debited: %s", got)
	}
}

func TestConfigureSplitValidation(t *testing.T) {
	state := newMockState()
	registry := newMockRegistry()
	owner := addr(0x01)
	stranger := addr(0x09)
	registry.works[9] = mockWork{owner: owner, active: true}

	engine := newTestEngine(state, registry)

	valid := []SplitEntry{{Beneficiary: owner, Bps: 10_000}}
	if _, err := engine.ConfigureSplit(stranger, 9, valid); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected owner check, got %v", err)
	}
	if _, err := engine.ConfigureSplit(owner, 9, nil); !errors.Is(err, ErrEmptySplit) {
		t.Fatalf("expected empty split rejection, got %v", err)
	}
	short := []SplitEntry{{Beneficiary: owner, Bps: 9_999}}
	if _, err := engine.ConfigureSplit(owner, 9, short); !errors.Is(err, ErrSplitSum) {
		t.Fatalf("expected sum check, got %v", err)
	}
	zeroAddr := []SplitEntry{{Beneficiary: [20]byte{}, Bps: 10_000}}
	if _, err := engine.ConfigureSplit(owner, 9, zeroAddr); !errors.Is(err, ErrZeroBeneficiary) {
		t.Fatalf("expected zero beneficiary rejection, got %v", err)
	}
	if _, err := engine.ConfigureSplit(owner, 9, valid); err != nil {
		t.Fatalf("valid split rejected: %v", err)
	}
	replacement := []SplitEntry{
		{Beneficiary: owner, Bps: 7_000},
		{Beneficiary: addr(0x0A), Bps: 3_000},
	}
	if _, err := engine.ConfigureSplit(owner, 9, replacement); err != nil {
		t.Fatalf("split replacement rejected: %v", err)
	}
	split, configured, err := engine.Split(9)
	if err != nil || !configured {
		t.Fatalf("split lookup failed: configured=%v err=%v", configured, err)
	}
	if len(split.Entries) != 2 {
		t.Fatalf("replacement did not overwrite: %d entries", len(split.Entries))
	}
}

func TestDistributeReportsEarnings(t *testing.T) {
	state := newMockState()
	registry := newMockRegistry()
	owner := addr(0x01)
	payer := addr(0x02)
	registry.works[10] = mockWork{owner: owner, active: true}
	state.setAccount(payer, 50_000)

	repEngine := reputation.NewEngine()
	repEngine.SetState(state)
	repEngine.SetNowFunc(func() int64 { return 1_000 })

	engine := newTestEngine(state, registry)
	engine.SetReputation(repEngine.NewRecorder())

	if _, err := engine.ReceivePayment(payer, 10, big.NewInt(10_000), "", ""); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if _, err := engine.Distribute(10); err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	stats, err := repEngine.Stats(owner)
	if err != nil {
		t.Fatalf("stats lookup failed: %v", err)
	}
	if stats.TotalEarnings.Cmp(big.NewInt(9_000)) != 0 {
		t.Fatalf("earnings not reported: %s", stats.TotalEarnings)
	}
}
