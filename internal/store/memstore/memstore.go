// Package memstore is an in-memory Store used by tests and single-node
// development runs. Records are kept as marshalled JSON so that readers
// always get an independent copy and a caller mutating a read record can
// never leak the change past a failed compare-and-swap.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ordmarket/sale-service/internal/core"
)

// Store implements core.Store for one item kind.
type Store[T core.Record] struct {
	newRecord func() T

	mu       sync.Mutex
	records  map[string][]byte
	versions map[string]int64
	order    []string
}

// New builds an empty store. newRecord allocates a zero record for
// unmarshalling reads into.
func New[T core.Record](newRecord func() T) *Store[T] {
	return &Store[T]{
		newRecord: newRecord,
		records:   map[string][]byte{},
		versions:  map[string]int64{},
	}
}

func (s *Store[T]) Create(_ context.Context, rec T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := rec.Base()
	if _, exists := s.records[base.ID]; exists {
		return core.Errf(core.CodeInvalidSpec, "id %s already exists", base.ID)
	}
	for _, id := range s.order {
		other := s.newRecord()
		if err := json.Unmarshal(s.records[id], other); err != nil {
			return fmt.Errorf("corrupt record %s: %w", id, err)
		}
		ob := other.Base()
		if ob.AssetID == base.AssetID && !ob.Status.Terminal() {
			return core.Errf(core.CodeInvalidSpec, "asset %s already has an open listing", base.AssetID)
		}
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	s.records[base.ID] = raw
	s.versions[base.ID] = base.Version
	s.order = append(s.order, base.ID)
	return nil
}

func (s *Store[T]) Read(_ context.Context, id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	raw, ok := s.records[id]
	if !ok {
		return zero, core.Errf(core.CodeNotFound, "item %s not found", id)
	}
	rec := s.newRecord()
	if err := json.Unmarshal(raw, rec); err != nil {
		return zero, fmt.Errorf("corrupt record %s: %w", id, err)
	}
	return rec, nil
}

func (s *Store[T]) CompareAndSwap(_ context.Context, rec T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := rec.Base()
	stored, ok := s.versions[base.ID]
	if !ok {
		return core.Errf(core.CodeNotFound, "item %s not found", base.ID)
	}
	if stored != base.Version {
		return core.Errf(core.CodeConflict, "version %d is stale, stored is %d", base.Version, stored)
	}

	base.Version++
	raw, err := json.Marshal(rec)
	if err != nil {
		base.Version--
		return fmt.Errorf("marshal record: %w", err)
	}
	s.records[base.ID] = raw
	s.versions[base.ID] = base.Version
	return nil
}

func (s *Store[T]) ListByStatus(_ context.Context, status core.Status) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []T
	for _, id := range s.order {
		rec := s.newRecord()
		if err := json.Unmarshal(s.records[id], rec); err != nil {
			return nil, fmt.Errorf("corrupt record %s: %w", id, err)
		}
		if rec.Base().Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}
