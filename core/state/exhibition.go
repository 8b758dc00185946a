package state

import (
	"fmt"

	ledgererrors "steadrent/core/errors"
	"steadrent/crypto"
	"steadrent/native/exhibition"
)

const (
	recordPrefix    = "record/"
	itemIndexPrefix = "exhibition/items/"
)

func recordKey(addr crypto.Identity) []byte {
	return append([]byte(recordPrefix), addr[:]...)
}

func itemIndexKey(exhibitionID crypto.Identity) []byte {
	return append([]byte(itemIndexPrefix), exhibitionID[:]...)
}

// createRecord stores a new program record at addr. Each address can be
// created once until it is closed again.
func (m *Manager) createRecord(addr, payer crypto.Identity, data []byte) error {
	if _, exists, err := m.get(recordKey(addr)); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: record %s", ledgererrors.ErrAccountExists, addr)
	}
	if err := m.chargeDeposit(payer, addr, len(data)); err != nil {
		return err
	}
	m.put(recordKey(addr), data)
	return nil
}

func (m *Manager) updateRecord(addr crypto.Identity, data []byte) error {
	if _, exists, err := m.get(recordKey(addr)); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("%w: record %s", ledgererrors.ErrAccountNotFound, addr)
	}
	m.put(recordKey(addr), data)
	return nil
}

func (m *Manager) closeRecord(addr, recipient crypto.Identity) error {
	if _, exists, err := m.get(recordKey(addr)); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("%w: record %s", ledgererrors.ErrAccountNotFound, addr)
	}
	m.delete(recordKey(addr))
	return m.refundDeposit(addr, recipient)
}

// ExhibitionConfigGet loads the config stored at addr.
func (m *Manager) ExhibitionConfigGet(addr crypto.Identity) (*exhibition.GlobalConfig, bool, error) {
	data, ok, err := m.get(recordKey(addr))
	if err != nil || !ok {
		return nil, false, err
	}
	cfg, err := exhibition.DecodeConfig(data)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// ExhibitionConfigCreate stores the config singleton.
func (m *Manager) ExhibitionConfigCreate(addr, payer crypto.Identity, cfg *exhibition.GlobalConfig) error {
	data, err := exhibition.EncodeConfig(cfg)
	if err != nil {
		return err
	}
	return m.createRecord(addr, payer, data)
}

// ExhibitionConfigPut overwrites the stored config.
func (m *Manager) ExhibitionConfigPut(addr crypto.Identity, cfg *exhibition.GlobalConfig) error {
	data, err := exhibition.EncodeConfig(cfg)
	if err != nil {
		return err
	}
	return m.updateRecord(addr, data)
}

// ExhibitionGet loads the exhibition stored at addr.
func (m *Manager) ExhibitionGet(addr crypto.Identity) (*exhibition.Exhibition, bool, error) {
	data, ok, err := m.get(recordKey(addr))
	if err != nil || !ok {
		return nil, false, err
	}
	ex, err := exhibition.DecodeExhibition(data)
	if err != nil {
		return nil, false, err
	}
	return ex, true, nil
}

// ExhibitionCreate stores a new exhibition.
func (m *Manager) ExhibitionCreate(addr, payer crypto.Identity, ex *exhibition.Exhibition) error {
	data, err := exhibition.EncodeExhibition(ex)
	if err != nil {
		return err
	}
	return m.createRecord(addr, payer, data)
}

// ExhibitionPut overwrites a stored exhibition.
func (m *Manager) ExhibitionPut(addr crypto.Identity, ex *exhibition.Exhibition) error {
	data, err := exhibition.EncodeExhibition(ex)
	if err != nil {
		return err
	}
	return m.updateRecord(addr, data)
}

// ExhibitionClose destroys the exhibition and its item index.
func (m *Manager) ExhibitionClose(addr, recipient crypto.Identity) error {
	if err := m.closeRecord(addr, recipient); err != nil {
		return err
	}
	m.KVDelete(itemIndexKey(addr))
	return nil
}

// ExhibitionItemGet loads the item stored at addr.
func (m *Manager) ExhibitionItemGet(addr crypto.Identity) (*exhibition.ExhibitionItem, bool, error) {
	data, ok, err := m.get(recordKey(addr))
	if err != nil || !ok {
		return nil, false, err
	}
	item, err := exhibition.DecodeItem(data)
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

// ExhibitionItemCreate stores a new item and adds it to its exhibition's
// index.
func (m *Manager) ExhibitionItemCreate(addr, payer crypto.Identity, item *exhibition.ExhibitionItem) error {
	data, err := exhibition.EncodeItem(item)
	if err != nil {
		return err
	}
	if err := m.createRecord(addr, payer, data); err != nil {
		return err
	}
	ids, err := m.ExhibitionItems(item.ExhibitionRef)
	if err != nil {
		return err
	}
	return m.KVPut(itemIndexKey(item.ExhibitionRef), append(ids, addr))
}

// ExhibitionItemClose destroys an item and drops it from the index.
func (m *Manager) ExhibitionItemClose(addr, recipient crypto.Identity) error {
	item, ok, err := m.ExhibitionItemGet(addr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: item %s", ledgererrors.ErrAccountNotFound, addr)
	}
	if err := m.closeRecord(addr, recipient); err != nil {
		return err
	}
	ids, err := m.ExhibitionItems(item.ExhibitionRef)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, id := range ids {
		if id != addr {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		m.KVDelete(itemIndexKey(item.ExhibitionRef))
		return nil
	}
	return m.KVPut(itemIndexKey(item.ExhibitionRef), kept)
}

// ExhibitionItems lists the ids of the items currently consigned to the
// exhibition, in deposit order.
func (m *Manager) ExhibitionItems(exhibitionID crypto.Identity) ([]crypto.Identity, error) {
	var ids []crypto.Identity
	if _, err := m.KVGet(itemIndexKey(exhibitionID), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
