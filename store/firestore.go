package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alimasry/go-collab-tree/ot"
)

// FirestoreStore is a Firestore-backed implementation of DocumentStore.
//
// Each document lives in documents/{id} with its snapshot encoded as JSON.
// Operations live in documents/{id}/operations, keyed by the zero-padded
// version they were based on so that ordering by ID orders by version.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a new FirestoreStore using the given Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client:     client,
		collection: "documents",
	}
}

func (s *FirestoreStore) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) opsCollection(docID string) *firestore.CollectionRef {
	return s.docRef(docID).Collection("operations")
}

func zeroPad(version int) string {
	return fmt.Sprintf("%010d", version)
}

func (s *FirestoreStore) Create(ctx context.Context, id string, snapshot ot.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot of %q: %w", id, err)
	}
	now := time.Now()
	_, err = s.docRef(id).Create(ctx, map[string]interface{}{
		"snapshot":  string(data),
		"version":   snapshot.Version,
		"createdAt": now,
		"updatedAt": now,
	})
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("document %q: %w", id, ErrDocumentExists)
	}
	return err
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*DocumentInfo, error) {
	snap, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return snapshotToDocInfo(id, snap)
}

func snapshotToDocInfo(id string, snap *firestore.DocumentSnapshot) (*DocumentInfo, error) {
	data := snap.Data()
	raw, _ := data["snapshot"].(string)
	version, _ := data["version"].(int64)
	createdAt, _ := data["createdAt"].(time.Time)
	updatedAt, _ := data["updatedAt"].(time.Time)

	var s ot.Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode snapshot of %q: %w", id, err)
	}
	return &DocumentInfo{
		ID:        id,
		Snapshot:  s,
		Version:   int(version),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (s *FirestoreStore) List(ctx context.Context) ([]DocumentInfo, error) {
	iter := s.client.Collection(s.collection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var result []DocumentInfo
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		info, err := snapshotToDocInfo(snap.Ref.ID, snap)
		if err != nil {
			return nil, err
		}
		result = append(result, *info)
	}
	return result, nil
}

func (s *FirestoreStore) UpdateSnapshot(ctx context.Context, id string, snapshot ot.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot of %q: %w", id, err)
	}
	_, err = s.docRef(id).Update(ctx, []firestore.Update{
		{Path: "snapshot", Value: string(data)},
		{Path: "updatedAt", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return notFound(id)
	}
	return err
}

// AppendOperation stores op and bumps the document version in one
// transaction.
func (s *FirestoreStore) AppendOperation(ctx context.Context, id string, op ot.Operation, version int) error {
	data, err := ot.EncodeOperation(op)
	if err != nil {
		return fmt.Errorf("encode operation v%d of %q: %w", version, id, err)
	}

	// Version 1 is stored at index 0, so GetOperations(from) starts at
	// index from.
	index := version - 1
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(s.opsCollection(id).Doc(zeroPad(index)), map[string]interface{}{
			"op":      string(data),
			"version": version,
		}); err != nil {
			return err
		}
		return tx.Update(s.docRef(id), []firestore.Update{
			{Path: "version", Value: version},
			{Path: "updatedAt", Value: time.Now()},
		})
	})
	if status.Code(err) == codes.NotFound {
		return notFound(id)
	}
	return err
}

func (s *FirestoreStore) GetOperations(ctx context.Context, id string, fromVersion int) ([]ot.Operation, error) {
	// Verify document exists.
	_, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}

	iter := s.opsCollection(id).
		OrderBy(firestore.DocumentID, firestore.Asc).
		StartAt(zeroPad(fromVersion)).
		Documents(ctx)
	defer iter.Stop()

	var ops []ot.Operation
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		op, err := snapshotToOperation(snap)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func snapshotToOperation(snap *firestore.DocumentSnapshot) (ot.Operation, error) {
	raw, ok := snap.Data()["op"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid op field in operation %s", snap.Ref.ID)
	}
	op, err := ot.DecodeOperation([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("operation %s: %w", snap.Ref.ID, err)
	}
	return op, nil
}
