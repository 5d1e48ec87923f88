package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
)

func testFirestoreClient(t *testing.T) *firestore.Client {
	t.Helper()
	projectID := os.Getenv("FIRESTORE_PROJECT")
	if projectID == "" {
		t.Skip("FIRESTORE_PROJECT not set, skipping Firestore tests")
	}
	client, err := firestore.NewClient(context.Background(), projectID)
	if err != nil {
		t.Fatalf("failed to create Firestore client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// uniqueDocID returns a unique document ID for test isolation.
func uniqueDocID(t *testing.T) string {
	return fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
}

// cleanupDoc deletes a document and its operations subcollection.
func cleanupDoc(t *testing.T, s *FirestoreStore, docID string) {
	t.Helper()
	ctx := context.Background()

	ops := s.opsCollection(docID).Documents(ctx)
	for {
		snap, err := ops.Next()
		if err != nil {
			break
		}
		snap.Ref.Delete(ctx)
	}
	s.docRef(docID).Delete(ctx)
}

func TestFirestoreStore_CreateAndGet(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	docID := uniqueDocID(t)
	t.Cleanup(func() { cleanupDoc(t, s, docID) })

	if err := s.Create(ctx, docID, seed(t, "<paragraph>hello</paragraph>").Snapshot()); err != nil {
		t.Fatal(err)
	}

	info, err := s.Get(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != 0 || info.ID != docID {
		t.Errorf("unexpected info: %+v", info)
	}
	if got := content(t, info.Snapshot); got != "<paragraph>hello</paragraph>" {
		t.Errorf("content = %s", got)
	}
}

func TestFirestoreStore_CreateDuplicate(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	docID := uniqueDocID(t)
	t.Cleanup(func() { cleanupDoc(t, s, docID) })

	s.Create(ctx, docID, seed(t, "").Snapshot())
	if err := s.Create(ctx, docID, seed(t, "").Snapshot()); !errors.Is(err, ErrDocumentExists) {
		t.Errorf("err = %v, want ErrDocumentExists", err)
	}
}

func TestFirestoreStore_GetNotFound(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	_, err := s.Get(context.Background(), "nonexistent-doc-xyz")
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestFirestoreStore_List(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = uniqueDocID(t) + fmt.Sprintf("-%d", i)
		t.Cleanup(func() { cleanupDoc(t, s, ids[i]) })
		s.Create(ctx, ids[i], seed(t, "").Snapshot())
	}

	docs, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// At least our 3 docs should be present (there may be others from parallel tests).
	found := 0
	for _, d := range docs {
		for _, id := range ids {
			if d.ID == id {
				found++
			}
		}
	}
	if found != 3 {
		t.Errorf("found %d of our 3 docs in list", found)
	}
}

func TestFirestoreStore_OperationsAndLoad(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	docID := uniqueDocID(t)
	t.Cleanup(func() { cleanupDoc(t, s, docID) })

	doc := seed(t, "<paragraph>hello</paragraph>")
	s.Create(ctx, docID, doc.Snapshot())
	appendAll(t, s, docID, typeText(t, doc, 5, " world"))
	if err := s.UpdateSnapshot(ctx, docID, doc.Snapshot()); err != nil {
		t.Fatal(err)
	}
	appendAll(t, s, docID, typeText(t, doc, 11, "!"))

	ops, err := s.GetOperations(ctx, docID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d ops, want 2", len(ops))
	}

	// Get ops from version 1 (skip first op).
	ops, err = s.GetOperations(ctx, docID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d ops, want 1", len(ops))
	}

	loaded, err := Load(ctx, s, docID)
	if err != nil {
		t.Fatal(err)
	}
	if got := loaded.Stringify("main"); got != "<paragraph>hello world!</paragraph>" {
		t.Errorf("content = %s", got)
	}
}

func TestFirestoreStore_OperationsNotFound(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	_, err := s.GetOperations(context.Background(), "nonexistent-doc-xyz", 0)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("err = %v, want ErrDocumentNotFound", err)
	}
}
