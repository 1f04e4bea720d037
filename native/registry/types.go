package registry

// Work is the immutable identity record minted for a registered creative
// work. The fingerprint is the keccak-256 digest of the work's content and is
// unique across the registry; the active flag gates whether the royalty
// ledger accepts payments for the work.
type Work struct {
	ID           uint64   `json:"id"`
	Fingerprint  [32]byte `json:"fingerprint"`
	Creator      [20]byte `json:"creator"`
	MetadataURI  string   `json:"metadataUri"`
	Active       bool     `json:"active"`
	RegisteredAt int64    `json:"registeredAt"`
}

// Clone returns a copy of the work record.
func (w *Work) Clone() *Work {
	if w == nil {
		return nil
	}
	clone := *w
	return &clone
}
