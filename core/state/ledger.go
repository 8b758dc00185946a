package state

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/holiman/uint256"

	ledgererrors "steadrent/core/errors"
	"steadrent/core/types"
	"steadrent/crypto"
)

const (
	balancePrefix = "balance/"
	depositPrefix = "deposit/"
)

func balanceKey(id crypto.Identity) []byte {
	return append([]byte(balancePrefix), id[:]...)
}

func depositKey(addr crypto.Identity) []byte {
	return append([]byte(depositPrefix), addr[:]...)
}

func (m *Manager) account(id crypto.Identity) (*types.Account, error) {
	data, ok, err := m.get(balanceKey(id))
	if err != nil {
		return nil, err
	}
	acc := new(types.Account)
	if !ok {
		return acc, nil
	}
	if err := bin.NewBorshDecoder(data).Decode(acc); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	return acc, nil
}

func (m *Manager) putAccount(id crypto.Identity, acc *types.Account) error {
	if acc.Balance == 0 {
		m.delete(balanceKey(id))
		return nil
	}
	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(acc); err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	m.put(balanceKey(id), buf.Bytes())
	return nil
}

// Balance returns the native balance of id.
func (m *Manager) Balance(id crypto.Identity) (uint64, error) {
	acc, err := m.account(id)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Credit adds amount to the balance of id.
func (m *Manager) Credit(id crypto.Identity, amount uint64) error {
	if amount == 0 {
		return nil
	}
	acc, err := m.account(id)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(acc.Balance), uint256.NewInt(amount))
	if overflow || !sum.IsUint64() {
		return fmt.Errorf("%w: crediting %d to %s", ledgererrors.ErrBalanceOverflow, amount, id)
	}
	acc.Balance = sum.Uint64()
	return m.putAccount(id, acc)
}

// Debit removes amount from the balance of id.
func (m *Manager) Debit(id crypto.Identity, amount uint64) error {
	if amount == 0 {
		return nil
	}
	acc, err := m.account(id)
	if err != nil {
		return err
	}
	if acc.Balance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ledgererrors.ErrInsufficientFunds, id, acc.Balance, amount)
	}
	acc.Balance -= amount
	return m.putAccount(id, acc)
}

// Transfer moves amount of the native balance from one identity to another.
// Zero-amount transfers succeed without touching state.
func (m *Manager) Transfer(from, to crypto.Identity, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := m.Debit(from, amount); err != nil {
		return err
	}
	return m.Credit(to, amount)
}

// DepositOf returns the storage deposit held for addr.
func (m *Manager) DepositOf(addr crypto.Identity) (uint64, error) {
	var amount uint64
	if _, err := m.KVGet(depositKey(addr), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// chargeDeposit debits size*rate from payer and records it against addr. A
// zero payer marks a bootstrap allocation that carries no deposit.
func (m *Manager) chargeDeposit(payer, addr crypto.Identity, size int) error {
	if payer.IsZero() || m.depositPerByte == 0 || size <= 0 {
		return nil
	}
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(uint64(size)), uint256.NewInt(m.depositPerByte))
	if overflow || !product.IsUint64() {
		return fmt.Errorf("%w: storage deposit for %d bytes", ledgererrors.ErrBalanceOverflow, size)
	}
	amount := product.Uint64()
	if err := m.Debit(payer, amount); err != nil {
		return err
	}
	return m.KVPut(depositKey(addr), amount)
}

// refundDeposit releases the deposit recorded against addr to recipient.
func (m *Manager) refundDeposit(addr, recipient crypto.Identity) error {
	amount, err := m.DepositOf(addr)
	if err != nil {
		return err
	}
	m.KVDelete(depositKey(addr))
	return m.Credit(recipient, amount)
}
