package genesis

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"steadrent/core/state"
	"steadrent/crypto"
	"steadrent/native/exhibition"
	"steadrent/storage"
)

func identity(fill byte) crypto.Identity {
	var id crypto.Identity
	copy(id[:], bytes.Repeat([]byte{fill}, crypto.IdentityLength))
	return id
}

func sampleGenesis() string {
	return fmt.Sprintf(`balances:
  - address: %s
    amount: 5000
  - address: "0x%s"
    amount: 70
assets:
  - id: %s
    owner: %s
config:
  fee_recipient: %s
  fee_rate_bps: 250
`, identity(0x01), identity(0x02).Hex(), identity(0xA1), identity(0x01), identity(0x0F))
}

func TestLoadAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	if err := os.WriteFile(path, []byte(sampleGenesis()), 0o600); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	spec, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	mgr := state.NewManager(storage.NewMemDB(), state.WithDepositRate(10))
	if err := spec.Apply(mgr); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if bal, _ := mgr.Balance(identity(0x01)); bal != 5000 {
		t.Fatalf("balance = %d, want 5000", bal)
	}
	if bal, _ := mgr.Balance(identity(0x02)); bal != 70 {
		t.Fatalf("balance = %d, want 70", bal)
	}
	addr, err := state.HoldingAddress(identity(0x01), identity(0xA1))
	if err != nil {
		t.Fatalf("holding address: %v", err)
	}
	holding, ok, err := mgr.HoldingAccount(addr)
	if err != nil || !ok || holding.Amount != 1 {
		t.Fatalf("asset not minted: %+v ok=%v err=%v", holding, ok, err)
	}
	cfgAddr, _, err := exhibition.ConfigAddress()
	if err != nil {
		t.Fatalf("config address: %v", err)
	}
	cfg, ok, err := mgr.ExhibitionConfigGet(cfgAddr)
	if err != nil || !ok {
		t.Fatalf("config missing: ok=%v err=%v", ok, err)
	}
	if cfg.FeeRecipient != identity(0x0F) || cfg.FeeRateBps != 250 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	applied, err := mgr.GenesisApplied()
	if err != nil || !applied {
		t.Fatalf("genesis marker missing: %v %v", applied, err)
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"bad address":     "balances:\n  - address: nope\n    amount: 1\n",
		"duplicate asset": fmt.Sprintf("assets:\n  - id: %s\n    owner: %s\n  - id: %s\n    owner: %s\n", identity(1), identity(2), identity(1), identity(3)),
		"unknown field":   "validators: []\n",
		"fee too high":    fmt.Sprintf("config:\n  fee_recipient: %s\n  fee_rate_bps: 10001\n", identity(1)),
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	_, err := Parse([]byte(fmt.Sprintf("config:\n  fee_recipient: %s\n  fee_rate_bps: 10001\n", identity(1))))
	if !errors.Is(err, exhibition.ErrFeeOutOfRange) {
		t.Fatalf("expected fee out of range, got %v", err)
	}
}
