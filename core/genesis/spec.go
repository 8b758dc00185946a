package genesis

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"

	"steadrent/crypto"
	"steadrent/native/exhibition"
)

// Spec is the YAML genesis file seeding a fresh ledger.
type Spec struct {
	Balances []BalanceSpec `yaml:"balances"`
	Assets   []AssetSpec   `yaml:"assets"`
	Config   *ConfigSpec   `yaml:"config,omitempty"`

	raw []byte
}

// BalanceSpec credits a native balance.
type BalanceSpec struct {
	Address string `yaml:"address"`
	Amount  uint64 `yaml:"amount"`
}

// AssetSpec mints the single unit of a unique asset to its owner.
type AssetSpec struct {
	ID    string `yaml:"id"`
	Owner string `yaml:"owner"`
}

// ConfigSpec optionally initialises the platform config at genesis.
type ConfigSpec struct {
	FeeRecipient string `yaml:"fee_recipient"`
	FeeRateBps   uint16 `yaml:"fee_rate_bps"`
}

// Load reads and validates the genesis file at path.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a genesis document.
func Parse(data []byte) (*Spec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	spec := new(Spec)
	if err := dec.Decode(spec); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec.raw = append([]byte(nil), data...)
	return spec, nil
}

// Hash identifies the genesis document that seeded a ledger.
func (s *Spec) Hash() []byte {
	return ethcrypto.Keccak256(s.raw)
}

// Validate checks identities, duplicates and the fee bound.
func (s *Spec) Validate() error {
	if s == nil {
		return errors.New("genesis spec must not be nil")
	}
	seen := make(map[crypto.Identity]struct{}, len(s.Balances))
	for i, bal := range s.Balances {
		id, err := crypto.ParseIdentity(bal.Address)
		if err != nil {
			return fmt.Errorf("balances[%d]: %w", i, err)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("balances[%d]: duplicate address %s", i, id)
		}
		seen[id] = struct{}{}
	}
	assets := make(map[crypto.Identity]struct{}, len(s.Assets))
	for i, asset := range s.Assets {
		id, err := crypto.ParseIdentity(asset.ID)
		if err != nil {
			return fmt.Errorf("assets[%d].id: %w", i, err)
		}
		if _, err := crypto.ParseIdentity(asset.Owner); err != nil {
			return fmt.Errorf("assets[%d].owner: %w", i, err)
		}
		if _, dup := assets[id]; dup {
			return fmt.Errorf("assets[%d]: duplicate asset %s", i, id)
		}
		assets[id] = struct{}{}
	}
	if s.Config != nil {
		if strings.TrimSpace(s.Config.FeeRecipient) == "" {
			return errors.New("config.fee_recipient required")
		}
		if _, err := crypto.ParseIdentity(s.Config.FeeRecipient); err != nil {
			return fmt.Errorf("config.fee_recipient: %w", err)
		}
		if s.Config.FeeRateBps > exhibition.MaxBps {
			return fmt.Errorf("config.fee_rate_bps: %w", exhibition.ErrFeeOutOfRange)
		}
	}
	return nil
}

func sortedBalances(in []BalanceSpec) []BalanceSpec {
	out := append([]BalanceSpec(nil), in...)
	sort.Slice(out, func(i, j int) bool {
		return crypto.MustParseIdentity(out[i].Address).Hex() < crypto.MustParseIdentity(out[j].Address).Hex()
	})
	return out
}
