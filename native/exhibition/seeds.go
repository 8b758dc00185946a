package exhibition

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"steadrent/crypto"
)

// ProgramID owns every address derived by the exhibition program.
var ProgramID = mustIdentity(ethcrypto.Keccak256([]byte("steadrent/program/exhibition")))

var (
	labelConfig     = []byte("state")
	labelExhibition = []byte("exhibition")
	labelEscrow     = []byte("escrow")
	labelCustody    = []byte("custody")
	labelItem       = []byte("item")
)

func mustIdentity(b []byte) crypto.Identity {
	id, err := crypto.IdentityFromBytes(b)
	if err != nil {
		panic(err)
	}
	return id
}

func escrowSeeds(property crypto.Identity) [][]byte {
	return [][]byte{labelEscrow, property.Bytes()}
}

func derive(seeds [][]byte) (crypto.Identity, uint8, error) {
	addr, bump, err := crypto.FindDerivedAddress(seeds, ProgramID)
	if err != nil {
		return crypto.ZeroIdentity, 0, fmt.Errorf("exhibition: derive address: %w", err)
	}
	return addr, bump, nil
}

// ConfigAddress returns the address of the GlobalConfig singleton.
func ConfigAddress() (crypto.Identity, uint8, error) {
	return derive([][]byte{labelConfig})
}

// ExhibitionAddress returns the exhibition id bound to a rented property.
func ExhibitionAddress(property crypto.Identity) (crypto.Identity, uint8, error) {
	return derive([][]byte{labelExhibition, property.Bytes()})
}

// EscrowAuthority returns the keyless identity authorising movements out of
// the custody accounts of the exhibition bound to property.
func EscrowAuthority(property crypto.Identity) (crypto.Identity, uint8, error) {
	return derive(escrowSeeds(property))
}

// CustodyAddress returns the custody account holding asset while it is in
// escrow. The rented property and every consigned asset get one each.
func CustodyAddress(asset crypto.Identity) (crypto.Identity, uint8, error) {
	return derive([][]byte{labelCustody, asset.Bytes()})
}

// ItemAddress returns the id of the item consigning asset into exhibition.
func ItemAddress(exhibition, asset crypto.Identity) (crypto.Identity, uint8, error) {
	return derive([][]byte{labelItem, exhibition.Bytes(), asset.Bytes()})
}

// Addresses bundles the derived identities of one exhibition.
type Addresses struct {
	Exhibition      crypto.Identity
	EscrowAuthority crypto.Identity
	PropertyCustody crypto.Identity
	Bumps           ExhibitionBumps
}

// DeriveAddresses computes every address tied to property.
func DeriveAddresses(property crypto.Identity) (Addresses, error) {
	var out Addresses
	var err error
	if out.Exhibition, out.Bumps.Exhibition, err = ExhibitionAddress(property); err != nil {
		return Addresses{}, err
	}
	if out.EscrowAuthority, out.Bumps.Escrow, err = EscrowAuthority(property); err != nil {
		return Addresses{}, err
	}
	if out.PropertyCustody, out.Bumps.Custody, err = CustodyAddress(property); err != nil {
		return Addresses{}, err
	}
	return out, nil
}
