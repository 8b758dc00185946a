package crypto

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxSeeds bounds the number of seeds accepted by a derivation, bump included.
	MaxSeeds = 16
	// MaxSeedLength bounds the size of every individual seed.
	MaxSeedLength = 32
)

var derivedAddressMarker = []byte("DerivedAddress")

var (
	ErrMaxSeedLength  = errors.New("crypto: derived address seed too long")
	ErrTooManySeeds   = errors.New("crypto: too many derived address seeds")
	ErrOnCurve        = errors.New("crypto: derived address lies on the ed25519 curve")
	ErrNoViableBump   = errors.New("crypto: unable to find a viable bump seed")
	ErrProofMismatch  = errors.New("crypto: derived address proof does not match authority")
	errEmptyProgramID = errors.New("crypto: program id required for derivation")
)

// CreateDerivedAddress hashes the seeds and the owning program into an
// identity. The result is rejected when it is a valid curve point, because a
// private key could then exist for it.
func CreateDerivedAddress(seeds [][]byte, program Identity) (Identity, error) {
	if program.IsZero() {
		return ZeroIdentity, errEmptyProgramID
	}
	if len(seeds) > MaxSeeds {
		return ZeroIdentity, ErrTooManySeeds
	}
	parts := make([][]byte, 0, len(seeds)+2)
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return ZeroIdentity, ErrMaxSeedLength
		}
		parts = append(parts, seed)
	}
	parts = append(parts, program[:], derivedAddressMarker)
	hash := ethcrypto.Keccak256(parts...)
	if isOnCurve(hash) {
		return ZeroIdentity, ErrOnCurve
	}
	return IdentityFromBytes(hash)
}

// FindDerivedAddress searches bumps from 255 downwards and returns the first
// off-curve address together with the bump that produced it.
func FindDerivedAddress(seeds [][]byte, program Identity) (Identity, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return ZeroIdentity, 0, ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateDerivedAddress(withBump, program)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return ZeroIdentity, 0, err
		}
	}
	return ZeroIdentity, 0, ErrNoViableBump
}

// DerivedAddressProof is the capability a program presents instead of a
// signature when moving assets out of accounts its derived identity controls.
// Anyone holding the proof can recompute the address; only the owning program
// is trusted to present it.
type DerivedAddressProof struct {
	Seeds   [][]byte
	Bump    uint8
	Program Identity
}

// Address recomputes the identity the proof stands for.
func (p DerivedAddressProof) Address() (Identity, error) {
	seeds := make([][]byte, len(p.Seeds)+1)
	copy(seeds, p.Seeds)
	seeds[len(p.Seeds)] = []byte{p.Bump}
	return CreateDerivedAddress(seeds, p.Program)
}

// Verify checks that the proof derives to expected.
func (p DerivedAddressProof) Verify(expected Identity) error {
	addr, err := p.Address()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofMismatch, err)
	}
	if addr != expected {
		return ErrProofMismatch
	}
	return nil
}

func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
