package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// IdentityPrefix is the human-readable part used when rendering identities as
// bech32 strings.
const IdentityPrefix = "stead"

// IdentityLength is the fixed width of every identity persisted by the ledger.
const IdentityLength = 32

// Identity is a 32-byte account identifier. Wallet identities are ed25519
// public keys; derived identities are hashes that deliberately fall off the
// curve so no private key can exist for them.
type Identity [IdentityLength]byte

// ZeroIdentity is the unset identity.
var ZeroIdentity Identity

var errIdentityLength = errors.New("crypto: identity must be 32 bytes")

// IdentityFromBytes copies b into an Identity.
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentityLength {
		return id, errIdentityLength
	}
	copy(id[:], b)
	return id, nil
}

// Bytes returns a copy of the identity bytes.
func (id Identity) Bytes() []byte {
	out := make([]byte, IdentityLength)
	copy(out, id[:])
	return out
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool { return id == ZeroIdentity }

// Hex returns the lowercase hex form without a 0x prefix.
func (id Identity) Hex() string { return hex.EncodeToString(id[:]) }

func (id Identity) String() string {
	conv, err := bech32.ConvertBits(id[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(IdentityPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// MarshalText renders the identity in its bech32 form.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText accepts the bech32 or 0x-hex form.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseIdentity decodes a bech32 identity carrying IdentityPrefix, or a
// 0x-prefixed 64 character hex string.
func ParseIdentity(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ZeroIdentity, errors.New("crypto: empty identity")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		decoded, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return ZeroIdentity, fmt.Errorf("crypto: invalid hex identity: %w", err)
		}
		return IdentityFromBytes(decoded)
	}
	prefix, decoded, err := bech32.Decode(trimmed)
	if err != nil {
		return ZeroIdentity, fmt.Errorf("crypto: invalid bech32 string: %w", err)
	}
	if prefix != IdentityPrefix {
		return ZeroIdentity, fmt.Errorf("crypto: unexpected identity prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return ZeroIdentity, fmt.Errorf("crypto: error converting bits: %w", err)
	}
	return IdentityFromBytes(conv)
}

// MustParseIdentity is ParseIdentity for constants and tests.
func MustParseIdentity(raw string) Identity {
	id, err := ParseIdentity(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// --- Key Management ---

// PrivateKey wraps an ed25519 signing key.
type PrivateKey struct {
	key ed25519.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromSeed rebuilds a key from its 32-byte seed.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: seed must be %d bytes", ed25519.SeedSize)
	}
	return &PrivateKey{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Seed returns the 32-byte seed of the private key.
func (k *PrivateKey) Seed() []byte {
	return k.key.Seed()
}

// Identity returns the public identity controlled by the key.
func (k *PrivateKey) Identity() Identity {
	var id Identity
	copy(id[:], k.key.Public().(ed25519.PublicKey))
	return id
}
