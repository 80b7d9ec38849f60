package state

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nhbenergy/storage"
)

type journalEntry struct {
	value   []byte
	deleted bool
}

// Manager exposes typed ledger state on top of a key-value store. Writes are
// journaled in memory until Commit flushes them as one atomic batch; Discard
// drops them.
type Manager struct {
	db storage.Database

	mu      sync.RWMutex
	journal map[string]journalEntry
}

// NewManager creates a state manager over db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, journal: make(map[string]journalEntry)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) read(hashed []byte) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.journal[string(hashed)]
	m.mu.RUnlock()
	if ok {
		if entry.deleted {
			return nil, false, nil
		}
		return entry.value, true, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (m *Manager) write(hashed []byte, value []byte) {
	m.mu.Lock()
	m.journal[string(hashed)] = journalEntry{value: value}
	m.mu.Unlock()
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches storage.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.write(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.read(kvKey(key))
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.mu.Lock()
	m.journal[string(kvKey(key))] = journalEntry{deleted: true}
	m.mu.Unlock()
	return nil
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("kv: destination must be a non-nil pointer")
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must point to a slice")
	}
	ok, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok {
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
	}
	return nil
}

// Dirty reports how many keys are staged.
func (m *Manager) Dirty() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.journal)
}

// Commit writes every staged change in a single storage batch. On failure
// the journal is kept so the caller can Discard it.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.journal) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.journal))
	for key := range m.journal {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := storage.NewBatch()
	for _, key := range keys {
		entry := m.journal[key]
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	if err := m.db.Write(batch); err != nil {
		return fmt.Errorf("state commit: %w", err)
	}
	m.journal = make(map[string]journalEntry)
	return nil
}

// Discard drops every staged change.
func (m *Manager) Discard() {
	m.mu.Lock()
	m.journal = make(map[string]journalEntry)
	m.mu.Unlock()
}
