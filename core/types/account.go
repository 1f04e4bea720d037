package types

import "math/big"

// Account holds the fund balance tracked for an address. Every value
// movement inside the ledger is an account-to-account transfer, so the sum
// of all balances is conserved across any sequence of operations.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Clone returns a deep copy of the account so callers can mutate the copy
// without affecting the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	} else {
		clone.Balance = big.NewInt(0)
	}
	return &clone
}
