package state

import (
	"errors"
	"testing"

	ledgererrors "steadrent/core/errors"
	"steadrent/crypto"
	"steadrent/native/exhibition"
	"steadrent/storage"
)

func TestExhibitionRecordLifecycle(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db, WithDepositRate(3))
	renter, exhibitor := testIdentity(0x01), testIdentity(0x02)
	property := testIdentity(0xAA)
	id := testIdentity(0x10)

	if err := mgr.Credit(renter, 5_000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	ex := &exhibition.Exhibition{
		Renter:         renter,
		RentedProperty: property,
		RenterFeeBps:   500,
		Exhibitor:      exhibitor,
		Status:         exhibition.ExhibitionActive,
		Bumps:          exhibition.ExhibitionBumps{Exhibition: 254, Escrow: 253, Custody: 252},
	}
	if err := mgr.ExhibitionCreate(id, renter, ex); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mgr.ExhibitionCreate(id, renter, ex); !errors.Is(err, ledgererrors.ErrAccountExists) {
		t.Fatalf("expected account exists, got %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	loaded, ok, err := NewManager(db).ExhibitionGet(id)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if *loaded != *ex {
		t.Fatalf("round trip mismatch: got %+v want %+v", loaded, ex)
	}

	balance, _ := mgr.Balance(renter)
	deposit, _ := mgr.DepositOf(id)
	if deposit == 0 || balance+deposit != 5_000 {
		t.Fatalf("unexpected deposit accounting: balance=%d deposit=%d", balance, deposit)
	}
	if err := mgr.ExhibitionClose(id, renter); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got, _ := mgr.Balance(renter); got != 5_000 {
		t.Fatalf("balance after close = %d, want 5000", got)
	}
	if _, ok, _ := mgr.ExhibitionGet(id); ok {
		t.Fatalf("exhibition still present after close")
	}
}

func TestExhibitionItemIndex(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	exhibitionID := testIdentity(0x10)
	items := []crypto.Identity{testIdentity(0x21), testIdentity(0x22), testIdentity(0x23)}

	for i, itemID := range items {
		item := &exhibition.ExhibitionItem{ExhibitionRef: exhibitionID, AssetID: testIdentity(byte(0x30 + i)), Price: uint64(i)}
		if err := mgr.ExhibitionItemCreate(itemID, crypto.ZeroIdentity, item); err != nil {
			t.Fatalf("create item %d: %v", i, err)
		}
	}
	ids, err := mgr.ExhibitionItems(exhibitionID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(ids) != 3 || ids[0] != items[0] || ids[2] != items[2] {
		t.Fatalf("unexpected index: %v", ids)
	}
	if err := mgr.ExhibitionItemClose(items[1], crypto.ZeroIdentity); err != nil {
		t.Fatalf("close item: %v", err)
	}
	ids, _ = mgr.ExhibitionItems(exhibitionID)
	if len(ids) != 2 || ids[0] != items[0] || ids[1] != items[2] {
		t.Fatalf("unexpected index after close: %v", ids)
	}
	if err := mgr.ExhibitionItemClose(items[1], crypto.ZeroIdentity); !errors.Is(err, ledgererrors.ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfigRecordRejectsCrossTypeDecode(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	addr := testIdentity(0x40)
	cfg := &exhibition.GlobalConfig{Bump: 255, FeeRecipient: testIdentity(0x05), FeeRateBps: 250}
	if err := mgr.ExhibitionConfigCreate(addr, crypto.ZeroIdentity, cfg); err != nil {
		t.Fatalf("create config: %v", err)
	}
	if _, _, err := mgr.ExhibitionGet(addr); !errors.Is(err, exhibition.ErrRecordType) {
		t.Fatalf("expected record type mismatch when reading config as exhibition, got %v", err)
	}
	if !errors.Is(exhibition.ErrRecordType, exhibition.ErrConstraintViolation) {
		t.Fatalf("record type mismatch must be a constraint violation")
	}
	loaded, ok, err := mgr.ExhibitionConfigGet(addr)
	if err != nil || !ok || *loaded != *cfg {
		t.Fatalf("config round trip: %+v ok=%v err=%v", loaded, ok, err)
	}
}
