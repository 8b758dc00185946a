package core

import (
	"errors"

	"steadrent/core/state"
	"steadrent/core/types"
	"steadrent/crypto"
	"steadrent/native/exhibition"
)

var ErrHoldingNotFound = errors.New("core: holding account not found")

// ExhibitionView is an exhibition with its derived addresses and the ids of
// its consigned items.
type ExhibitionView struct {
	ID              crypto.Identity
	EscrowAuthority crypto.Identity
	PropertyCustody crypto.Identity
	Exhibition      *exhibition.Exhibition
	Items           []crypto.Identity
}

// Config returns the platform config.
func (n *Node) Config() (*exhibition.GlobalConfig, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	addr, _, err := exhibition.ConfigAddress()
	if err != nil {
		return nil, err
	}
	cfg, ok, err := n.newManager().ExhibitionConfigGet(addr)
	if errors.Is(err, exhibition.ErrRecordType) {
		return nil, exhibition.ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, exhibition.ErrConfigNotFound
	}
	return cfg, nil
}

// Exhibition returns the exhibition stored at id.
func (n *Node) Exhibition(id crypto.Identity) (*ExhibitionView, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := n.newManager()
	ex, ok, err := manager.ExhibitionGet(id)
	if errors.Is(err, exhibition.ErrRecordType) {
		return nil, exhibition.ErrExhibitionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, exhibition.ErrExhibitionNotFound
	}
	items, err := manager.ExhibitionItems(id)
	if err != nil {
		return nil, err
	}
	addrs, err := exhibition.DeriveAddresses(ex.RentedProperty)
	if err != nil {
		return nil, err
	}
	return &ExhibitionView{
		ID:              id,
		EscrowAuthority: addrs.EscrowAuthority,
		PropertyCustody: addrs.PropertyCustody,
		Exhibition:      ex,
		Items:           items,
	}, nil
}

// Item returns the consigned item stored at id.
func (n *Node) Item(id crypto.Identity) (*exhibition.ExhibitionItem, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	item, ok, err := n.newManager().ExhibitionItemGet(id)
	if errors.Is(err, exhibition.ErrRecordType) {
		return nil, exhibition.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, exhibition.ErrItemNotFound
	}
	return item, nil
}

// Balance returns the native balance of id.
func (n *Node) Balance(id crypto.Identity) (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.newManager().Balance(id)
}

// Holding returns the wallet holding account of owner for asset.
func (n *Node) Holding(owner, asset crypto.Identity) (crypto.Identity, *types.HoldingAccount, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	addr, err := state.HoldingAddress(owner, asset)
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	holding, ok, err := n.newManager().HoldingAccount(addr)
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	if !ok {
		return addr, nil, ErrHoldingNotFound
	}
	return addr, holding, nil
}
