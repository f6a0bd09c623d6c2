// Package memory provides an in-process storage.Store used by tests and the
// default daemon configuration.
package memory

import (
	"context"
	"sync"

	xerrors "Attest-Resolver/internal/errors"
	"Attest-Resolver/internal/storage"
)

// Store keeps committed state in a map. Each committed key carries a version
// so that transactions which read a key later overwritten by someone else
// fail at commit with CONFLICT.
type Store struct {
	mu       sync.RWMutex
	data     map[string][]byte
	versions map[string]uint64
	closed   bool
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		data:     make(map[string][]byte),
		versions: make(map[string]uint64),
	}
}

var _ storage.Store = (*Store)(nil)

// Begin implements storage.Store.
func (s *Store) Begin(_ context.Context) (storage.Txn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, xerrors.New(xerrors.CodeStorageFailure, "内存存储已关闭")
	}
	return &txn{
		store:  s,
		reads:  make(map[string]uint64),
		writes: make(map[string][]byte),
	}, nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of committed keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

type txn struct {
	store  *Store
	reads  map[string]uint64
	writes map[string][]byte
	done   bool
}

func (t *txn) Get(_ context.Context, key string) ([]byte, bool, error) {
	if t.done {
		return nil, false, xerrors.New(xerrors.CodeStorageFailure, "事务已结束")
	}
	if value, ok := t.writes[key]; ok {
		return clone(value), true, nil
	}
	t.store.mu.RLock()
	value, ok := t.store.data[key]
	version := t.store.versions[key]
	t.store.mu.RUnlock()
	if _, seen := t.reads[key]; !seen {
		t.reads[key] = version
	}
	if !ok {
		return nil, false, nil
	}
	return clone(value), true, nil
}

func (t *txn) Put(_ context.Context, key string, value []byte) error {
	if t.done {
		return xerrors.New(xerrors.CodeStorageFailure, "事务已结束")
	}
	t.writes[key] = clone(value)
	return nil
}

func (t *txn) Commit(_ context.Context) error {
	if t.done {
		return xerrors.New(xerrors.CodeStorageFailure, "事务已结束")
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.closed {
		return xerrors.New(xerrors.CodeStorageFailure, "内存存储已关闭")
	}
	for key, version := range t.reads {
		if t.store.versions[key] != version {
			return xerrors.New(xerrors.CodeConflict, "键 "+key+" 已被并发修改")
		}
	}
	for key, value := range t.writes {
		t.store.data[key] = value
		t.store.versions[key]++
	}
	return nil
}

func (t *txn) Rollback() error {
	t.done = true
	t.writes = nil
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
