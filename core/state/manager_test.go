package state

import (
	"bytes"
	"errors"
	"testing"

	ledgererrors "steadrent/core/errors"
	"steadrent/core/types"
	"steadrent/crypto"
	"steadrent/storage"
)

func testIdentity(fill byte) crypto.Identity {
	var id crypto.Identity
	copy(id[:], bytes.Repeat([]byte{fill}, crypto.IdentityLength))
	return id
}

func TestManagerStagesUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	alice := testIdentity(0x01)

	if err := mgr.Credit(alice, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got, _ := mgr.Balance(alice); got != 100 {
		t.Fatalf("staged balance = %d, want 100", got)
	}
	if len(db.Keys()) != 0 {
		t.Fatalf("expected nothing persisted before commit, got %v", db.Keys())
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	fresh := NewManager(db)
	if got, _ := fresh.Balance(alice); got != 100 {
		t.Fatalf("committed balance = %d, want 100", got)
	}
}

func TestManagerDiscardDropsWrites(t *testing.T) {
	db := storage.NewMemDB()
	alice, bob := testIdentity(0x01), testIdentity(0x02)

	seed := NewManager(db)
	if err := seed.Credit(alice, 50); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := seed.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	mgr := NewManager(db)
	if err := mgr.Transfer(alice, bob, 30); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	mgr.Discard()
	if got, _ := mgr.Balance(alice); got != 50 {
		t.Fatalf("balance after discard = %d, want 50", got)
	}
	if got, _ := mgr.Balance(bob); got != 0 {
		t.Fatalf("bob balance after discard = %d, want 0", got)
	}
}

func TestTransferErrors(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	alice, bob := testIdentity(0x01), testIdentity(0x02)

	if err := mgr.Transfer(alice, bob, 0); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
	if err := mgr.Transfer(alice, bob, 1); !errors.Is(err, ledgererrors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if err := mgr.Credit(bob, ^uint64(0)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := mgr.Credit(alice, 1); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := mgr.Transfer(alice, bob, 1); !errors.Is(err, ledgererrors.ErrBalanceOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestMintAndTransferAsset(t *testing.T) {
	mgr := NewManager(storage.NewMemDB(), WithDepositRate(1))
	alice, bob := testIdentity(0x01), testIdentity(0x02)
	asset := testIdentity(0xA0)

	src, err := mgr.MintAsset(alice, asset)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := mgr.MintAsset(bob, asset); !errors.Is(err, ledgererrors.ErrAssetExists) {
		t.Fatalf("expected asset exists, got %v", err)
	}
	if err := mgr.Credit(alice, 1_000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	dst, err := mgr.EnsureWalletHolding(bob, asset, alice)
	if err != nil {
		t.Fatalf("ensure holding: %v", err)
	}
	deposit, err := mgr.DepositOf(dst)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if deposit == 0 {
		t.Fatalf("expected a storage deposit for the new holding")
	}
	if bal, _ := mgr.Balance(alice); bal != 1_000-deposit {
		t.Fatalf("payer balance = %d, want %d", bal, 1_000-deposit)
	}

	if err := mgr.TransferAsset(types.WalletSigner(bob), src, dst, 1); !errors.Is(err, ledgererrors.ErrInvalidAuthority) {
		t.Fatalf("expected invalid authority, got %v", err)
	}
	if err := mgr.TransferAsset(types.WalletSigner(alice), src, dst, 2); !errors.Is(err, ledgererrors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient units, got %v", err)
	}
	if err := mgr.TransferAsset(types.WalletSigner(alice), src, dst, 1); err != nil {
		t.Fatalf("transfer asset: %v", err)
	}
	holding, ok, err := mgr.HoldingAccount(dst)
	if err != nil || !ok {
		t.Fatalf("load destination holding: ok=%v err=%v", ok, err)
	}
	if holding.Amount != 1 || holding.Asset != asset || holding.Authority != bob {
		t.Fatalf("unexpected destination holding: %+v", holding)
	}
}

func TestProgramSignerControlsCustody(t *testing.T) {
	mgr := NewManager(storage.NewMemDB(), WithDepositRate(2))
	owner, payer := testIdentity(0x01), testIdentity(0x02)
	asset := testIdentity(0xB0)
	program := testIdentity(0xC0)

	escrow, bump, err := crypto.FindDerivedAddress([][]byte{[]byte("escrow"), asset.Bytes()}, program)
	if err != nil {
		t.Fatalf("derive escrow: %v", err)
	}
	proof := crypto.DerivedAddressProof{Seeds: [][]byte{[]byte("escrow"), asset.Bytes()}, Bump: bump, Program: program}
	custody := testIdentity(0xD0)

	if err := mgr.Credit(payer, 10_000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	src, err := mgr.MintAsset(owner, asset)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := mgr.OpenHoldingAccount(custody, payer, asset, escrow); err != nil {
		t.Fatalf("open custody: %v", err)
	}
	if err := mgr.OpenHoldingAccount(custody, payer, asset, escrow); !errors.Is(err, ledgererrors.ErrAccountExists) {
		t.Fatalf("expected account exists, got %v", err)
	}
	if err := mgr.TransferAsset(types.WalletSigner(owner), src, custody, 1); err != nil {
		t.Fatalf("escrow asset: %v", err)
	}

	wrong := proof
	wrong.Bump = bump - 1
	if err := mgr.TransferAsset(types.ProgramSigner(wrong), custody, src, 1); !errors.Is(err, ledgererrors.ErrInvalidAuthority) {
		t.Fatalf("expected invalid authority for wrong bump, got %v", err)
	}
	if err := mgr.CloseHoldingAccount(types.ProgramSigner(proof), custody, payer); !errors.Is(err, ledgererrors.ErrHoldingNotEmpty) {
		t.Fatalf("expected holding not empty, got %v", err)
	}
	if err := mgr.TransferAsset(types.ProgramSigner(proof), custody, src, 1); err != nil {
		t.Fatalf("release asset: %v", err)
	}
	before, _ := mgr.Balance(payer)
	deposit, _ := mgr.DepositOf(custody)
	if err := mgr.CloseHoldingAccount(types.ProgramSigner(proof), custody, payer); err != nil {
		t.Fatalf("close custody: %v", err)
	}
	after, _ := mgr.Balance(payer)
	if after != before+deposit {
		t.Fatalf("deposit not refunded: before=%d after=%d deposit=%d", before, after, deposit)
	}
	if _, ok, _ := mgr.HoldingAccount(custody); ok {
		t.Fatalf("custody account still present after close")
	}
}

func TestGenesisMarker(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	applied, err := mgr.GenesisApplied()
	if err != nil || applied {
		t.Fatalf("fresh ledger: applied=%v err=%v", applied, err)
	}
	if err := mgr.MarkGenesisApplied([]byte{0x01}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	applied, err = mgr.GenesisApplied()
	if err != nil || !applied {
		t.Fatalf("after mark: applied=%v err=%v", applied, err)
	}
}
