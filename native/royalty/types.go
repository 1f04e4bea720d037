package royalty

import (
	"errors"
	"fmt"
	"math/big"
)

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator = 10_000

var (
	// ErrEmptySplit marks split configurations with no beneficiaries.
	ErrEmptySplit = errors.New("royalty: split requires at least one beneficiary")
	// ErrZeroBeneficiary marks split entries naming the zero address.
	ErrZeroBeneficiary = errors.New("royalty: beneficiary is the zero address")
	// ErrZeroShare marks split entries with a zero basis-point share.
	ErrZeroShare = errors.New("royalty: beneficiary has zero share")
	// ErrSplitSum marks splits whose shares do not sum to BpsDenominator.
	ErrSplitSum = errors.New("royalty: split shares must sum to 10000")
)

// SplitEntry pairs a beneficiary with its basis-point share of every
// distribution.
type SplitEntry struct {
	Beneficiary [20]byte `json:"beneficiary"`
	Bps         uint32   `json:"bps"`
}

// Split is the ordered beneficiary configuration for a work. Replacing a
// split is a full overwrite, never a merge; an absent split means the default
// owner/platform division applies.
type Split struct {
	WorkID  uint64       `json:"workId"`
	Entries []SplitEntry `json:"entries"`
}

// Clone returns a deep copy of the split configuration.
func (s *Split) Clone() *Split {
	if s == nil {
		return nil
	}
	clone := Split{WorkID: s.WorkID}
	if len(s.Entries) > 0 {
		clone.Entries = make([]SplitEntry, len(s.Entries))
		copy(clone.Entries, s.Entries)
	}
	return &clone
}

// SanitizeSplit validates the supplied entries: non-empty, every beneficiary
// non-zero, every share positive and the shares summing to exactly
// BpsDenominator with no rounding tolerance.
func SanitizeSplit(workID uint64, entries []SplitEntry) (*Split, error) {
	if len(entries) == 0 {
		return nil, ErrEmptySplit
	}
	var sum uint64
	for i, entry := range entries {
		if entry.Beneficiary == ([20]byte{}) {
			return nil, fmt.Errorf("%w (entry %d)", ErrZeroBeneficiary, i)
		}
		if entry.Bps == 0 {
			return nil, fmt.Errorf("%w (entry %d)", ErrZeroShare, i)
		}
		sum += uint64(entry.Bps)
	}
	if sum != BpsDenominator {
		return nil, fmt.Errorf("%w: got %d", ErrSplitSum, sum)
	}
	split := &Split{WorkID: workID, Entries: make([]SplitEntry, len(entries))}
	copy(split.Entries, entries)
	return split, nil
}

// BalanceRecord tracks the per-work accounting. Pending only increases via a
// payment and only decreases to exactly zero via a distribution; TotalEarned
// and DustAccrued are monotone. The identity
//
//	TotalEarned == sum(distributed) + Pending + DustAccrued
//
// holds at every observation point.
type BalanceRecord struct {
	WorkID      uint64   `json:"workId"`
	Pending     *big.Int `json:"pending"`
	TotalEarned *big.Int `json:"totalEarned"`
	DustAccrued *big.Int `json:"dustAccrued"`
}

// Clone returns a deep copy of the balance record.
func (b *BalanceRecord) Clone() *BalanceRecord {
	if b == nil {
		return nil
	}
	clone := *b
	if b.Pending != nil {
		clone.Pending = new(big.Int).Set(b.Pending)
	}
	if b.TotalEarned != nil {
		clone.TotalEarned = new(big.Int).Set(b.TotalEarned)
	}
	if b.DustAccrued != nil {
		clone.DustAccrued = new(big.Int).Set(b.DustAccrued)
	}
	return &clone
}

func newBalance(workID uint64) *BalanceRecord {
	return &BalanceRecord{
		WorkID:      workID,
		Pending:     big.NewInt(0),
		TotalEarned: big.NewInt(0),
		DustAccrued: big.NewInt(0),
	}
}

func ensureBalance(b *BalanceRecord) *BalanceRecord {
	if b == nil {
		return nil
	}
	if b.Pending == nil {
		b.Pending = big.NewInt(0)
	}
	if b.TotalEarned == nil {
		b.TotalEarned = big.NewInt(0)
	}
	if b.DustAccrued == nil {
		b.DustAccrued = big.NewInt(0)
	}
	return b
}

// Payout reports one beneficiary settlement performed by a distribution.
type Payout struct {
	Beneficiary [20]byte `json:"beneficiary"`
	Amount      *big.Int `json:"amount"`
}
