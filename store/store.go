package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alimasry/go-collab-tree/ot"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists")

	// ErrInvalidVersion indicates an operation log read or write that does not
	// line up with the versions already stored.
	ErrInvalidVersion = errors.New("invalid version")
)

// DocumentInfo holds document metadata and its latest snapshot. Version is
// the version after the last appended operation; it is never behind
// Snapshot.Version.
type DocumentInfo struct {
	ID        string
	Snapshot  ot.Snapshot
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentStore abstracts document persistence: one snapshot per document
// plus the log of operations applied to it. The operation that produced
// version v is stored under v, so GetOperations(from) returns the operations
// based on from and later.
type DocumentStore interface {
	Create(ctx context.Context, id string, snapshot ot.Snapshot) error
	Get(ctx context.Context, id string) (*DocumentInfo, error)
	List(ctx context.Context) ([]DocumentInfo, error)
	UpdateSnapshot(ctx context.Context, id string, snapshot ot.Snapshot) error
	AppendOperation(ctx context.Context, id string, op ot.Operation, version int) error
	GetOperations(ctx context.Context, id string, fromVersion int) ([]ot.Operation, error)
}

// Load rebuilds the latest state of a document from its snapshot and the
// operations logged after it.
func Load(ctx context.Context, s DocumentStore, id string) (*ot.Document, error) {
	info, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := ot.LoadDocument(info.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("load document %q: %w", id, err)
	}
	ops, err := s.GetOperations(ctx, id, info.Snapshot.Version)
	if err != nil {
		return nil, fmt.Errorf("load document %q: %w", id, err)
	}
	for _, op := range ops {
		if _, err := doc.Apply(op.Clone()); err != nil {
			return nil, fmt.Errorf("load document %q: replay v%d: %w", id, op.BaseVersion(), err)
		}
	}
	return doc, nil
}

func notFound(id string) error {
	return fmt.Errorf("document %q: %w", id, ErrDocumentNotFound)
}
