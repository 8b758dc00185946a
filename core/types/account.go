package types

import "steadrent/crypto"

// Account is the native balance record of an identity. Balances are whole
// units; payment legs move them between identities.
type Account struct {
	Balance uint64
}

// HoldingAccount holds units of a single asset on behalf of an authority.
// Wallet holdings name the owning wallet as authority; custody accounts name
// a derived escrow identity.
type HoldingAccount struct {
	Asset     crypto.Identity
	Authority crypto.Identity
	Amount    uint64
}

// Clone returns a copy of the holding account.
func (h *HoldingAccount) Clone() *HoldingAccount {
	if h == nil {
		return nil
	}
	clone := *h
	return &clone
}
