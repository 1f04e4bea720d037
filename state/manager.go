package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"opusledger/core/types"
	"opusledger/native/campaign"
	"opusledger/native/registry"
	"opusledger/native/reputation"
	"opusledger/native/royalty"
	"opusledger/storage"
)

const (
	accountPrefix           = "account/"
	registryWorkPrefix      = "registry/work/"
	registryFingerprintPref = "registry/fingerprint/"
	registryNextIDKey       = "registry/nextid"
	royaltySplitPrefix      = "royalty/split/"
	royaltyBalancePrefix    = "royalty/balance/"
	royaltyDistributedPref  = "royalty/distributed/"
	campaignPrefix          = "campaign/record/"
	campaignNextIDKey       = "campaign/nextid"
	campaignByWorkPrefix    = "campaign/bywork/"
	campaignContribsPrefix  = "campaign/contribs/"
	campaignTotalPrefix     = "campaign/total/"
)

type journalEntry struct {
	key     string
	prev    []byte
	existed bool
}

// Manager implements the narrow state interfaces consumed by the registry,
// royalty, campaign and reputation engines over a key-value database. Every
// write is journalled so a failing operation can revert to its entry
// snapshot, leaving state byte-for-byte identical to before the call.
type Manager struct {
	db        storage.Database
	journal   []journalEntry
	revertErr error
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Snapshot marks the current journal position. Pair with RevertToSnapshot.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot undoes every write journalled after the supplied revision.
// A replay failure means the database no longer matches the journal; the
// manager records the first such error and refuses every subsequent write,
// so a partially reverted operation cannot be built upon.
func (m *Manager) RevertToSnapshot(revision int) {
	if revision < 0 || revision > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= revision; i-- {
		entry := m.journal[i]
		if entry.existed {
			if err := m.db.Put([]byte(entry.key), entry.prev); err != nil {
				m.revertFailed(entry.key, err)
			}
		} else {
			if err := m.db.Delete([]byte(entry.key)); err != nil {
				m.revertFailed(entry.key, err)
			}
		}
	}
	m.journal = m.journal[:revision]
}

func (m *Manager) revertFailed(key string, err error) {
	if m.revertErr != nil {
		return
	}
	m.revertErr = fmt.Errorf("state: revert of %s failed: %w", key, err)
	slog.Error("state revert failed, refusing further writes", "key", key, "error", err)
}

// Err reports a revert replay failure. Once set, every write fails with it
// and the daemon must be restarted against a consistent database.
func (m *Manager) Err() error {
	return m.revertErr
}

// CommitJournal discards the undo log accumulated by completed operations.
// Callers invoke it between externally-triggered calls; an unbounded journal
// is only a memory concern, never a correctness one.
func (m *Manager) CommitJournal() {
	m.journal = m.journal[:0]
}

func (m *Manager) record(key string) error {
	prev, err := m.db.Get([]byte(key))
	if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return err
	}
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, existed: err == nil})
	return nil
}

func (m *Manager) kvPut(key string, value interface{}) error {
	if m.revertErr != nil {
		return m.revertErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: marshal %s: %w", key, err)
	}
	if err := m.record(key); err != nil {
		return err
	}
	return m.db.Put([]byte(key), raw)
}

func (m *Manager) kvGet(key string, out interface{}) (bool, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) nextID(key string) (uint64, error) {
	var current uint64
	if _, err := m.kvGet(key, &current); err != nil {
		return 0, err
	}
	next := current + 1
	if err := m.kvPut(key, next); err != nil {
		return 0, err
	}
	return next, nil
}

func addrKey(addr []byte) string {
	return accountPrefix + hex.EncodeToString(addr)
}

// --- accounts ---

// GetAccount returns the stored account for an address, or nil when the
// address has never been written.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	var acc types.Account
	ok, err := m.kvGet(addrKey(addr), &acc)
	if err != nil || !ok {
		return nil, err
	}
	return &acc, nil
}

// PutAccount stores the account for an address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account for %x", addr)
	}
	return m.kvPut(addrKey(addr), account)
}

// Credit adds funds to an address, creating the account lazily. Used to seed
// balances at genesis and in tests.
func (m *Manager) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: credit amount must be positive")
	}
	acc, err := m.GetAccount(addr[:])
	if err != nil {
		return err
	}
	if acc == nil {
		acc = &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return m.PutAccount(addr[:], acc)
}

// --- registry ---

func (m *Manager) RegistryWorkGet(id uint64) (*registry.Work, bool, error) {
	var work registry.Work
	ok, err := m.kvGet(fmt.Sprintf("%s%d", registryWorkPrefix, id), &work)
	if err != nil || !ok {
		return nil, false, err
	}
	return &work, true, nil
}

func (m *Manager) RegistryWorkPut(work *registry.Work) error {
	if work == nil {
		return fmt.Errorf("state: nil work")
	}
	return m.kvPut(fmt.Sprintf("%s%d", registryWorkPrefix, work.ID), work)
}

func (m *Manager) RegistryWorkIDByFingerprint(fingerprint [32]byte) (uint64, bool, error) {
	var id uint64
	ok, err := m.kvGet(registryFingerprintPref+hex.EncodeToString(fingerprint[:]), &id)
	if err != nil || !ok {
		return 0, false, err
	}
	return id, true, nil
}

func (m *Manager) RegistryFingerprintPut(fingerprint [32]byte, id uint64) error {
	return m.kvPut(registryFingerprintPref+hex.EncodeToString(fingerprint[:]), id)
}

func (m *Manager) RegistryNextWorkID() (uint64, error) {
	return m.nextID(registryNextIDKey)
}

// --- royalty ---

func (m *Manager) RoyaltySplitGet(workID uint64) (*royalty.Split, bool, error) {
	var split royalty.Split
	ok, err := m.kvGet(fmt.Sprintf("%s%d", royaltySplitPrefix, workID), &split)
	if err != nil || !ok {
		return nil, false, err
	}
	return &split, true, nil
}

func (m *Manager) RoyaltySplitPut(split *royalty.Split) error {
	if split == nil {
		return fmt.Errorf("state: nil split")
	}
	return m.kvPut(fmt.Sprintf("%s%d", royaltySplitPrefix, split.WorkID), split)
}

func (m *Manager) RoyaltyBalanceGet(workID uint64) (*royalty.BalanceRecord, bool, error) {
	var record royalty.BalanceRecord
	ok, err := m.kvGet(fmt.Sprintf("%s%d", royaltyBalancePrefix, workID), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &record, true, nil
}

func (m *Manager) RoyaltyBalancePut(record *royalty.BalanceRecord) error {
	if record == nil {
		return fmt.Errorf("state: nil balance record")
	}
	return m.kvPut(fmt.Sprintf("%s%d", royaltyBalancePrefix, record.WorkID), record)
}

func distributedKey(workID uint64, beneficiary [20]byte) string {
	return fmt.Sprintf("%s%d/%s", royaltyDistributedPref, workID, hex.EncodeToString(beneficiary[:]))
}

func (m *Manager) RoyaltyDistributedGet(workID uint64, beneficiary [20]byte) (*big.Int, error) {
	total := new(big.Int)
	ok, err := m.kvGet(distributedKey(workID, beneficiary), total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return total, nil
}

func (m *Manager) RoyaltyDistributedAdd(workID uint64, beneficiary [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: distributed amount must be non-negative")
	}
	total, err := m.RoyaltyDistributedGet(workID, beneficiary)
	if err != nil {
		return err
	}
	total = new(big.Int).Add(total, amount)
	return m.kvPut(distributedKey(workID, beneficiary), total)
}

// --- campaign ---

func (m *Manager) CampaignGet(id uint64) (*campaign.Campaign, bool, error) {
	var c campaign.Campaign
	ok, err := m.kvGet(fmt.Sprintf("%s%d", campaignPrefix, id), &c)
	if err != nil || !ok {
		return nil, false, err
	}
	return &c, true, nil
}

func (m *Manager) CampaignPut(c *campaign.Campaign) error {
	if c == nil {
		return fmt.Errorf("state: nil campaign")
	}
	return m.kvPut(fmt.Sprintf("%s%d", campaignPrefix, c.ID), c)
}

func (m *Manager) CampaignNextID() (uint64, error) {
	return m.nextID(campaignNextIDKey)
}

func (m *Manager) CampaignIDByWork(workID uint64) (uint64, bool, error) {
	var id uint64
	ok, err := m.kvGet(fmt.Sprintf("%s%d", campaignByWorkPrefix, workID), &id)
	if err != nil || !ok {
		return 0, false, err
	}
	return id, true, nil
}

func (m *Manager) CampaignWorkIndexPut(workID uint64, id uint64) error {
	return m.kvPut(fmt.Sprintf("%s%d", campaignByWorkPrefix, workID), id)
}

func (m *Manager) CampaignContributionsGet(id uint64) ([]campaign.Contribution, error) {
	var contributions []campaign.Contribution
	if _, err := m.kvGet(fmt.Sprintf("%s%d", campaignContribsPrefix, id), &contributions); err != nil {
		return nil, err
	}
	return contributions, nil
}

func (m *Manager) CampaignContributionAppend(id uint64, c campaign.Contribution) error {
	contributions, err := m.CampaignContributionsGet(id)
	if err != nil {
		return err
	}
	contributions = append(contributions, c)
	return m.kvPut(fmt.Sprintf("%s%d", campaignContribsPrefix, id), contributions)
}

func campaignTotalKey(id uint64, contributor [20]byte) string {
	return fmt.Sprintf("%s%d/%s", campaignTotalPrefix, id, hex.EncodeToString(contributor[:]))
}

func (m *Manager) CampaignContributorTotalGet(id uint64, contributor [20]byte) (*big.Int, error) {
	total := new(big.Int)
	ok, err := m.kvGet(campaignTotalKey(id, contributor), total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return total, nil
}

func (m *Manager) CampaignContributorTotalPut(id uint64, contributor [20]byte, total *big.Int) error {
	if total == nil || total.Sign() < 0 {
		return fmt.Errorf("state: contributor total must be non-negative")
	}
	return m.kvPut(campaignTotalKey(id, contributor), total)
}

// --- reputation ---

func (m *Manager) ReputationStatsGet(creator [20]byte) (*reputation.CreatorStats, bool, error) {
	var stats reputation.CreatorStats
	ok, err := m.kvGet("reputation/stats/"+hex.EncodeToString(creator[:]), &stats)
	if err != nil || !ok {
		return nil, false, err
	}
	return &stats, true, nil
}

func (m *Manager) ReputationStatsPut(stats *reputation.CreatorStats) error {
	if stats == nil {
		return fmt.Errorf("state: nil creator stats")
	}
	return m.kvPut("reputation/stats/"+hex.EncodeToString(stats.Creator[:]), stats)
}
