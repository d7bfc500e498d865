package repository

import (
	"fmt"
)

// State is the key-value world state a ledger operation reads and writes.
// The Fabric chaincode stub satisfies it directly.
type State interface {
	GetState(key string) ([]byte, error)
	PutState(key string, value []byte) error
	DelState(key string) error
}

// BatchWriter is implemented by backends that can apply a write set atomically
type BatchWriter interface {
	WriteBatch(puts map[string][]byte, deletes []string) error
}

type pendingWrite struct {
	value   []byte
	deleted bool
}

// Tx buffers writes over a State until Commit. Reads observe the
// transaction's own pending writes. A discarded Tx leaves the base untouched.
type Tx struct {
	base   State
	writes map[string]*pendingWrite
	order  []string
	done   bool
}

// NewTx opens a buffered transaction over base
func NewTx(base State) *Tx {
	return &Tx{
		base:   base,
		writes: make(map[string]*pendingWrite),
	}
}

// GetState returns the pending value for key if any, otherwise the base value
func (t *Tx) GetState(key string) ([]byte, error) {
	if w, ok := t.writes[key]; ok {
		if w.deleted {
			return nil, nil
		}
		return copyBytes(w.value), nil
	}
	return t.base.GetState(key)
}

// PutState records a pending write
func (t *Tx) PutState(key string, value []byte) error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	if value == nil {
		return fmt.Errorf("nil value for key %q", key)
	}
	t.record(key, &pendingWrite{value: copyBytes(value)})
	return nil
}

// DelState records a pending delete
func (t *Tx) DelState(key string) error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	t.record(key, &pendingWrite{deleted: true})
	return nil
}

func (t *Tx) record(key string, w *pendingWrite) {
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = w
}

// Pending returns the number of keys touched by the transaction
func (t *Tx) Pending() int {
	return len(t.writes)
}

// Commit flushes the write set to the base state
func (t *Tx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	t.done = true

	if bw, ok := t.base.(BatchWriter); ok {
		puts := make(map[string][]byte)
		var deletes []string
		for _, key := range t.order {
			w := t.writes[key]
			if w.deleted {
				deletes = append(deletes, key)
			} else {
				puts[key] = w.value
			}
		}
		return bw.WriteBatch(puts, deletes)
	}

	for _, key := range t.order {
		w := t.writes[key]
		var err error
		if w.deleted {
			err = t.base.DelState(key)
		} else {
			err = t.base.PutState(key, w.value)
		}
		if err != nil {
			return fmt.Errorf("failed to write %q: %w", key, err)
		}
	}
	return nil
}

// Discard drops all pending writes
func (t *Tx) Discard() {
	t.done = true
	t.writes = nil
	t.order = nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
