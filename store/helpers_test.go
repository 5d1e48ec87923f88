package store

import (
	"context"
	"testing"

	"github.com/alimasry/go-collab-tree/model"
	"github.com/alimasry/go-collab-tree/ot"
)

func seed(t *testing.T, markup string) *ot.Document {
	t.Helper()
	doc, err := ot.SeedDocument("main", markup)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

// typeText inserts text at offset of the first paragraph and returns the
// operations it produced.
func typeText(t *testing.T, doc *ot.Document, offset int, text string) []ot.Operation {
	t.Helper()
	b, err := doc.Change(func(w *ot.Writer) error {
		return w.InsertText(model.NewPosition("main", 0, offset), text, nil)
	})
	if err != nil {
		t.Fatal(err)
	}
	return b.Operations
}

func appendAll(t *testing.T, s DocumentStore, id string, ops []ot.Operation) {
	t.Helper()
	for _, op := range ops {
		if err := s.AppendOperation(context.Background(), id, op, op.BaseVersion()+1); err != nil {
			t.Fatal(err)
		}
	}
}

func content(t *testing.T, s ot.Snapshot) string {
	t.Helper()
	doc, err := ot.LoadDocument(s)
	if err != nil {
		t.Fatal(err)
	}
	return doc.Stringify("main")
}
