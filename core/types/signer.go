package types

import (
	"errors"

	"steadrent/crypto"
)

var errUnsignedAuthority = errors.New("signer does not match authority")

// Signer is the authority presented for a holding-account movement. A wallet
// signer is the acting identity named by the caller of the instruction. No
// signature is checked; the RPC bearer token gates who may submit at all. A
// program signer presents the derived-address proof of its escrow identity.
type Signer struct {
	Wallet crypto.Identity
	Proof  *crypto.DerivedAddressProof
}

// WalletSigner wraps the identity acting on its own holdings.
func WalletSigner(id crypto.Identity) Signer { return Signer{Wallet: id} }

// ProgramSigner wraps a derived-address proof.
func ProgramSigner(proof crypto.DerivedAddressProof) Signer {
	p := proof
	return Signer{Proof: &p}
}

// Authorizes returns nil when the signer stands for authority.
func (s Signer) Authorizes(authority crypto.Identity) error {
	if s.Proof != nil {
		return s.Proof.Verify(authority)
	}
	if s.Wallet.IsZero() || s.Wallet != authority {
		return errUnsignedAuthority
	}
	return nil
}
