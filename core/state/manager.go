package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"steadrent/storage"
)

// Manager is the ledger view used while executing one instruction. Writes are
// staged in memory and reads see staged values first; Commit persists the
// whole set through a single batch and Discard drops it.
type Manager struct {
	db             storage.Database
	staged         map[string]stagedValue
	depositPerByte uint64
}

type stagedValue struct {
	value   []byte
	deleted bool
}

// Option customises a Manager.
type Option func(*Manager)

// WithDepositRate sets the storage deposit charged per stored byte when a
// record or holding account is created.
func WithDepositRate(perByte uint64) Option {
	return func(m *Manager) { m.depositPerByte = perByte }
}

// NewManager creates a state manager staging writes on top of db.
func NewManager(db storage.Database, opts ...Option) *Manager {
	m := &Manager{db: db, staged: make(map[string]stagedValue)}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// DepositRate returns the configured storage deposit per byte.
func (m *Manager) DepositRate() uint64 { return m.depositPerByte }

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	if staged, ok := m.staged[string(key)]; ok {
		if staged.deleted {
			return nil, false, nil
		}
		return append([]byte(nil), staged.value...), true, nil
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) put(key, value []byte) {
	m.staged[string(key)] = stagedValue{value: append([]byte(nil), value...)}
}

func (m *Manager) delete(key []byte) {
	m.staged[string(key)] = stagedValue{deleted: true}
}

// Pending returns the number of staged keys.
func (m *Manager) Pending() int { return len(m.staged) }

// Commit writes every staged change in one batch. The manager is empty
// afterwards and can be reused.
func (m *Manager) Commit() error {
	if len(m.staged) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.staged))
	for k := range m.staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := new(storage.Batch)
	for _, k := range keys {
		staged := m.staged[k]
		if staged.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), staged.value)
	}
	if err := m.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.staged = make(map[string]stagedValue)
	return nil
}

// Discard drops every staged change.
func (m *Manager) Discard() {
	m.staged = make(map[string]stagedValue)
}

// KVPut stores an RLP encoded value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.put(key, encoded)
	return nil
}

// KVGet decodes the value stored under key into out. It reports false when
// the key is absent.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	data, ok, err := m.get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes key.
func (m *Manager) KVDelete(key []byte) {
	m.delete(key)
}

var genesisKey = []byte("meta/genesis")

// GenesisApplied reports whether a genesis file has already been loaded.
func (m *Manager) GenesisApplied() (bool, error) {
	var marker []byte
	return m.KVGet(genesisKey, &marker)
}

// MarkGenesisApplied records the hash of the applied genesis file.
func (m *Manager) MarkGenesisApplied(hash []byte) error {
	return m.KVPut(genesisKey, hash)
}
