package campaign

import "math/big"

// Status is the campaign lifecycle state. Active is the only non-terminal
// state; every transition out of it is irreversible.
type Status uint8

const (
	StatusActive Status = iota
	StatusSuccessful
	StatusFailed
	StatusCancelled
)

// String renders the status for events and RPC responses.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSuccessful:
		return "successful"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s <= StatusCancelled
}

// Campaign is a time-boxed fundraising instrument tied to one work. A work
// may have at most one campaign ever, cancelled ones included: the work index
// is set on creation and never cleared.
type Campaign struct {
	ID             uint64   `json:"id"`
	WorkID         uint64   `json:"workId"`
	Creator        [20]byte `json:"creator"`
	Goal           *big.Int `json:"goal"`
	Raised         *big.Int `json:"raised"`
	ShareBps       uint32   `json:"shareBps"`
	Deadline       int64    `json:"deadline"`
	LockupDays     uint32   `json:"lockupDays"`
	CreatedAt      int64    `json:"createdAt"`
	Status         Status   `json:"status"`
	FundsWithdrawn bool     `json:"fundsWithdrawn"`
}

// Clone returns a deep copy of the campaign.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Goal != nil {
		clone.Goal = new(big.Int).Set(c.Goal)
	}
	if c.Raised != nil {
		clone.Raised = new(big.Int).Set(c.Raised)
	}
	return &clone
}

func ensureCampaign(c *Campaign) *Campaign {
	if c == nil {
		return nil
	}
	if c.Goal == nil {
		c.Goal = big.NewInt(0)
	}
	if c.Raised == nil {
		c.Raised = big.NewInt(0)
	}
	return c
}

// Contribution is one append-only funding record. The per-contributor
// aggregate, not this list, is authoritative for refunds and shares; the list
// exists so the aggregate is always auditable as the sum of its entries.
type Contribution struct {
	Contributor [20]byte `json:"contributor"`
	Amount      *big.Int `json:"amount"`
	Timestamp   int64    `json:"timestamp"`
}

// Clone returns a deep copy of the contribution record.
func (c Contribution) Clone() Contribution {
	clone := c
	if c.Amount != nil {
		clone.Amount = new(big.Int).Set(c.Amount)
	}
	return clone
}

// AllocationEntry is one row of the royalty-share vectors computed when a
// campaign succeeds: the creator's retained share followed by each
// contributor's proportional share of the offered pool.
type AllocationEntry struct {
	Beneficiary [20]byte `json:"beneficiary"`
	Bps         uint32   `json:"bps"`
}
