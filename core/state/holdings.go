package state

import (
	"bytes"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	bin "github.com/gagliardetto/binary"
	"github.com/holiman/uint256"

	ledgererrors "steadrent/core/errors"
	"steadrent/core/types"
	"steadrent/crypto"
)

// TokenProgramID owns the derived addresses of wallet holding accounts.
var TokenProgramID = func() crypto.Identity {
	id, err := crypto.IdentityFromBytes(ethcrypto.Keccak256([]byte("steadrent/program/token")))
	if err != nil {
		panic(err)
	}
	return id
}()

const (
	holdingPrefix = "holding/"
	assetPrefix   = "asset/"
)

var holdingLabel = []byte("holding")

func holdingKey(addr crypto.Identity) []byte {
	return append([]byte(holdingPrefix), addr[:]...)
}

func assetKey(asset crypto.Identity) []byte {
	return append([]byte(assetPrefix), asset[:]...)
}

func encodeHolding(h *types.HoldingAccount) ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(h); err != nil {
		return nil, fmt.Errorf("state: encode holding: %w", err)
	}
	return buf.Bytes(), nil
}

// WalletHoldingAddress returns the holding account of owner for asset.
func (m *Manager) WalletHoldingAddress(owner, asset crypto.Identity) (crypto.Identity, error) {
	return HoldingAddress(owner, asset)
}

// HoldingAddress derives the wallet holding account of owner for asset.
func HoldingAddress(owner, asset crypto.Identity) (crypto.Identity, error) {
	addr, _, err := crypto.FindDerivedAddress([][]byte{holdingLabel, owner.Bytes(), asset.Bytes()}, TokenProgramID)
	if err != nil {
		return crypto.ZeroIdentity, fmt.Errorf("state: derive holding: %w", err)
	}
	return addr, nil
}

// HoldingAccount loads the holding account stored at addr.
func (m *Manager) HoldingAccount(addr crypto.Identity) (*types.HoldingAccount, bool, error) {
	data, ok, err := m.get(holdingKey(addr))
	if err != nil || !ok {
		return nil, false, err
	}
	h := new(types.HoldingAccount)
	if err := bin.NewBorshDecoder(data).Decode(h); err != nil {
		return nil, false, fmt.Errorf("state: decode holding: %w", err)
	}
	return h, true, nil
}

func (m *Manager) putHolding(addr crypto.Identity, h *types.HoldingAccount) error {
	encoded, err := encodeHolding(h)
	if err != nil {
		return err
	}
	m.put(holdingKey(addr), encoded)
	return nil
}

// OpenHoldingAccount creates an empty holding account for asset controlled by
// authority. The payer funds the storage deposit.
func (m *Manager) OpenHoldingAccount(addr, payer, asset, authority crypto.Identity) error {
	if _, exists, err := m.HoldingAccount(addr); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: holding %s", ledgererrors.ErrAccountExists, addr)
	}
	h := &types.HoldingAccount{Asset: asset, Authority: authority}
	encoded, err := encodeHolding(h)
	if err != nil {
		return err
	}
	if err := m.chargeDeposit(payer, addr, len(encoded)); err != nil {
		return err
	}
	m.put(holdingKey(addr), encoded)
	return nil
}

// EnsureWalletHolding returns the holding account of owner for asset,
// creating it at payer's expense when missing.
func (m *Manager) EnsureWalletHolding(owner, asset, payer crypto.Identity) (crypto.Identity, error) {
	addr, err := HoldingAddress(owner, asset)
	if err != nil {
		return crypto.ZeroIdentity, err
	}
	existing, ok, err := m.HoldingAccount(addr)
	if err != nil {
		return crypto.ZeroIdentity, err
	}
	if ok {
		if existing.Asset != asset || existing.Authority != owner {
			return crypto.ZeroIdentity, fmt.Errorf("%w: holding %s", ledgererrors.ErrAssetMismatch, addr)
		}
		return addr, nil
	}
	if err := m.OpenHoldingAccount(addr, payer, asset, owner); err != nil {
		return crypto.ZeroIdentity, err
	}
	return addr, nil
}

// TransferAsset moves amount units between two holding accounts of the same
// asset. The signer must stand for the source account's authority.
func (m *Manager) TransferAsset(signer types.Signer, from, to crypto.Identity, amount uint64) error {
	src, ok, err := m.HoldingAccount(from)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: holding %s", ledgererrors.ErrAccountNotFound, from)
	}
	if err := signer.Authorizes(src.Authority); err != nil {
		return fmt.Errorf("%w: %v", ledgererrors.ErrInvalidAuthority, err)
	}
	dst, ok, err := m.HoldingAccount(to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: holding %s", ledgererrors.ErrAccountNotFound, to)
	}
	if src.Asset != dst.Asset {
		return ledgererrors.ErrAssetMismatch
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: holding %s has %d units", ledgererrors.ErrInsufficientFunds, from, src.Amount)
	}
	if from == to || amount == 0 {
		return nil
	}
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(dst.Amount), uint256.NewInt(amount))
	if overflow || !sum.IsUint64() {
		return ledgererrors.ErrBalanceOverflow
	}
	src.Amount -= amount
	dst.Amount = sum.Uint64()
	if err := m.putHolding(from, src); err != nil {
		return err
	}
	return m.putHolding(to, dst)
}

// CloseHoldingAccount destroys an empty holding account and returns its
// deposit to recipient.
func (m *Manager) CloseHoldingAccount(signer types.Signer, addr, recipient crypto.Identity) error {
	h, ok, err := m.HoldingAccount(addr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: holding %s", ledgererrors.ErrAccountNotFound, addr)
	}
	if err := signer.Authorizes(h.Authority); err != nil {
		return fmt.Errorf("%w: %v", ledgererrors.ErrInvalidAuthority, err)
	}
	if h.Amount != 0 {
		return fmt.Errorf("%w: holding %s has %d units", ledgererrors.ErrHoldingNotEmpty, addr, h.Amount)
	}
	m.delete(holdingKey(addr))
	return m.refundDeposit(addr, recipient)
}

// MintAsset creates the single unit of asset in owner's wallet holding.
// Assets are unique; minting an existing asset fails.
func (m *Manager) MintAsset(owner, asset crypto.Identity) (crypto.Identity, error) {
	var minted bool
	if ok, err := m.KVGet(assetKey(asset), &minted); err != nil {
		return crypto.ZeroIdentity, err
	} else if ok {
		return crypto.ZeroIdentity, fmt.Errorf("%w: %s", ledgererrors.ErrAssetExists, asset)
	}
	addr, err := m.EnsureWalletHolding(owner, asset, crypto.ZeroIdentity)
	if err != nil {
		return crypto.ZeroIdentity, err
	}
	h, _, err := m.HoldingAccount(addr)
	if err != nil {
		return crypto.ZeroIdentity, err
	}
	h.Amount = 1
	if err := m.putHolding(addr, h); err != nil {
		return crypto.ZeroIdentity, err
	}
	if err := m.KVPut(assetKey(asset), true); err != nil {
		return crypto.ZeroIdentity, err
	}
	return addr, nil
}
