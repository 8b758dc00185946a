package exhibition

import (
	"fmt"

	"steadrent/crypto"
)

// MaxBps is 100% expressed in basis points.
const MaxBps = 10_000

// ExhibitionStatus represents the lifecycle states of an exhibition. The only
// permitted transition is Active -> Cancelled.
type ExhibitionStatus uint8

const (
	ExhibitionActive ExhibitionStatus = iota
	ExhibitionCancelled
)

// Valid reports whether the status value is within the supported range.
func (s ExhibitionStatus) Valid() bool {
	switch s {
	case ExhibitionActive, ExhibitionCancelled:
		return true
	default:
		return false
	}
}

func (s ExhibitionStatus) String() string {
	switch s {
	case ExhibitionActive:
		return "active"
	case ExhibitionCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// GlobalConfig is the singleton platform configuration.
type GlobalConfig struct {
	// Bump used to derive the config address.
	Bump uint8
	// FeeRecipient receives the platform share of every sale and is the only
	// identity allowed to update the config.
	FeeRecipient crypto.Identity
	// FeeRateBps is the platform share of every sale in basis points.
	FeeRateBps uint16
}

// Clone returns a copy of the config.
func (c *GlobalConfig) Clone() *GlobalConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ExhibitionBumps stores the bumps of every address derived for an exhibition
// so signing never repeats the bump search.
type ExhibitionBumps struct {
	Exhibition uint8
	Escrow     uint8
	Custody    uint8
}

// Exhibition is a listing held by a rented property. The renter owns it, the
// exhibitor consigns items into it.
type Exhibition struct {
	Renter         crypto.Identity
	RentedProperty crypto.Identity
	RenterFeeBps   uint16
	Exhibitor      crypto.Identity
	ItemCount      uint64
	// TotalVolume is the sum of the prices of every item sold so far.
	TotalVolume uint64
	Status      ExhibitionStatus
	Bumps       ExhibitionBumps
}

// Clone returns a copy of the exhibition.
func (e *Exhibition) Clone() *Exhibition {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// EscrowProof returns the capability that lets the program sign for the
// exhibition's escrow authority.
func (e *Exhibition) EscrowProof() crypto.DerivedAddressProof {
	return crypto.DerivedAddressProof{
		Seeds:   escrowSeeds(e.RentedProperty),
		Bump:    e.Bumps.Escrow,
		Program: ProgramID,
	}
}

// ExhibitionItem is one consigned asset waiting in custody.
type ExhibitionItem struct {
	ExhibitionRef crypto.Identity
	AssetID       crypto.Identity
	Price         uint64
	Bump          uint8
}

// Clone returns a copy of the item.
func (i *ExhibitionItem) Clone() *ExhibitionItem {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}

// Receipt summarises a completed purchase.
type Receipt struct {
	Exhibition  crypto.Identity
	Item        crypto.Identity
	Asset       crypto.Identity
	Buyer       crypto.Identity
	Destination crypto.Identity
	Price       uint64
	Split       Split
}

// SanitizeConfig validates a config before it is persisted.
func SanitizeConfig(c *GlobalConfig) (*GlobalConfig, error) {
	if c == nil {
		return nil, fmt.Errorf("nil config")
	}
	if c.FeeRateBps > MaxBps {
		return nil, fmt.Errorf("%w: fee rate %d bps", ErrFeeOutOfRange, c.FeeRateBps)
	}
	if c.FeeRecipient.IsZero() {
		return nil, fmt.Errorf("%w: fee recipient required", ErrConstraintViolation)
	}
	return c.Clone(), nil
}

// SanitizeExhibition validates an exhibition before it is persisted.
func SanitizeExhibition(e *Exhibition) (*Exhibition, error) {
	if e == nil {
		return nil, fmt.Errorf("nil exhibition")
	}
	if e.RenterFeeBps > MaxBps {
		return nil, fmt.Errorf("%w: renter fee %d bps", ErrFeeOutOfRange, e.RenterFeeBps)
	}
	if !e.Status.Valid() {
		return nil, fmt.Errorf("invalid exhibition status: %d", e.Status)
	}
	if e.Renter.IsZero() || e.Exhibitor.IsZero() || e.RentedProperty.IsZero() {
		return nil, fmt.Errorf("%w: exhibition parties must be set", ErrConstraintViolation)
	}
	return e.Clone(), nil
}

// SanitizeItem validates an item before it is persisted.
func SanitizeItem(i *ExhibitionItem) (*ExhibitionItem, error) {
	if i == nil {
		return nil, fmt.Errorf("nil exhibition item")
	}
	if i.ExhibitionRef.IsZero() || i.AssetID.IsZero() {
		return nil, fmt.Errorf("%w: item must reference an exhibition and an asset", ErrConstraintViolation)
	}
	return i.Clone(), nil
}
