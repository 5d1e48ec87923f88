package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alimasry/go-collab-tree/ot"
)

type docRecord struct {
	info DocumentInfo
	// firstVersion is the version the log starts at: history[i] produced
	// version firstVersion+i+1.
	firstVersion int
	history      []ot.Operation
}

// MemoryStore is an in-memory implementation of DocumentStore. Snapshots and
// operations are copied on the way in and out.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*docRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*docRecord)}
}

func (s *MemoryStore) Create(_ context.Context, id string, snapshot ot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; exists {
		return fmt.Errorf("document %q: %w", id, ErrDocumentExists)
	}
	now := time.Now()
	s.docs[id] = &docRecord{
		info: DocumentInfo{
			ID:        id,
			Snapshot:  snapshot.Clone(),
			Version:   snapshot.Version,
			CreatedAt: now,
			UpdatedAt: now,
		},
		firstVersion: snapshot.Version,
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return nil, notFound(id)
	}
	info := rec.info
	info.Snapshot = rec.info.Snapshot.Clone()
	return &info, nil
}

func (s *MemoryStore) List(_ context.Context) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]DocumentInfo, 0, len(s.docs))
	for _, rec := range s.docs {
		info := rec.info
		info.Snapshot = rec.info.Snapshot.Clone()
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) UpdateSnapshot(_ context.Context, id string, snapshot ot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[id]
	if !ok {
		return notFound(id)
	}
	if snapshot.Version < rec.firstVersion || snapshot.Version > rec.info.Version {
		return fmt.Errorf("snapshot v%d of %q outside log v%d..v%d: %w", snapshot.Version, id, rec.firstVersion, rec.info.Version, ErrInvalidVersion)
	}
	rec.info.Snapshot = snapshot.Clone()
	rec.info.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AppendOperation(_ context.Context, id string, op ot.Operation, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[id]
	if !ok {
		return notFound(id)
	}
	if version != rec.info.Version+1 {
		return fmt.Errorf("append v%d to %q at v%d: %w", version, id, rec.info.Version, ErrInvalidVersion)
	}
	rec.history = append(rec.history, cloneOperation(op))
	rec.info.Version = version
	rec.info.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetOperations(_ context.Context, id string, fromVersion int) ([]ot.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return nil, notFound(id)
	}
	if fromVersion < rec.firstVersion || fromVersion > rec.info.Version {
		return nil, fmt.Errorf("operations of %q from v%d: %w", id, fromVersion, ErrInvalidVersion)
	}
	src := rec.history[fromVersion-rec.firstVersion:]
	ops := make([]ot.Operation, len(src))
	for i, op := range src {
		ops[i] = cloneOperation(op)
	}
	return ops, nil
}

// cloneOperation copies op together with its undone flag.
func cloneOperation(op ot.Operation) ot.Operation {
	c := op.Clone()
	c.SetWasUndone(op.WasUndone())
	return c
}
