package ot

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/alimasry/go-collab-tree/model"
)

func TestCodec_EveryKind(t *testing.T) {
	gy := graveyardStart()
	old := r(p(0, 0), p(0, 1))
	split := NewSplitOperation(p(0, 1), 2, p(1), &gy, 4)

	ops := []Operation{
		NewNoOperation(1),
		NewInsertOperation(p(0, 1), model.MustParseMarkup(`<paragraph align="left">a<text bold="true">b</text></paragraph>`), 2),
		NewMoveOperation(p(1), 2, gy, 3),
		split,
		NewSplitOperation(p(0, 1), 2, p(1), nil, 4),
		NewMergeOperation(p(1, 0), 3, p(0, 3), gy, 5),
		NewRenameOperation(p(1), "paragraph", "heading1", 6),
		NewAttributeOperation(r(p(0, 0), p(0, 3)), "style", model.Null(), model.Map(map[string]model.Value{"size": model.Number(12)}), 7),
		NewRootAttributeOperation(mainRoot, "lang", model.String("en"), model.Null(), 8),
		NewMarkerOperation("comment:1", &old, nil, true, 9),
		NewRootOperation("aside", "section", true, 10),
		NewRootOperation("aside", "section", false, 11),
	}
	for _, op := range ops {
		t.Run(op.Type(), func(t *testing.T) {
			op.SetWasUndone(true)
			data, err := EncodeOperation(op)
			if err != nil {
				t.Fatal(err)
			}
			got, err := DecodeOperation(data)
			if err != nil {
				t.Fatalf("decode %s: %v", data, err)
			}
			if got.Type() != op.Type() || got.BaseVersion() != op.BaseVersion() || !got.WasUndone() {
				t.Errorf("decoded %s v%d undone=%v, want %s v%d undone=true",
					got.Type(), got.BaseVersion(), got.WasUndone(), op.Type(), op.BaseVersion())
			}
			again, err := EncodeOperation(got)
			if err != nil {
				t.Fatal(err)
			}
			if string(again) != string(data) {
				t.Errorf("re-encoded differently:\n  %s\n  %s", data, again)
			}
		})
	}
}

func TestCodec_KeepsStickiness(t *testing.T) {
	op := NewSplitOperation(p(0, 1), 2, SplitInsertionPosition(p(0, 1)), nil, 0)
	data, err := EncodeOperation(op)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeOperation(data)
	if err != nil {
		t.Fatal(err)
	}
	s := got.(*SplitOperation)
	if s.SplitPosition.Stickiness != model.StickToNext {
		t.Errorf("split position stickiness = %s, want toNext", s.SplitPosition.Stickiness)
	}
	if s.InsertionPosition.Stickiness != model.StickToPrevious {
		t.Errorf("insertion position stickiness = %s, want toPrevious", s.InsertionPosition.Stickiness)
	}
	if s.GraveyardPosition != nil {
		t.Errorf("graveyard position = %s, want nil", s.GraveyardPosition)
	}
}

func TestCodec_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"unknown type", `{"type":"teleport","baseVersion":0}`, ErrUnknownOperation},
		{"malformed", `{"type":`, nil},
		{"insert without position", `{"type":"insert","baseVersion":0}`, nil},
		{"move without howMany", `{"type":"move","baseVersion":0,"sourcePosition":{"root":"main","path":[0]},"targetPosition":{"root":"main","path":[1]}}`, nil},
		{"marker without name", `{"type":"marker","baseVersion":0}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOperation([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOperations_JSON(t *testing.T) {
	doc := newTestDoc(t, twoParagraphs)
	ops := collect(t, doc, func(w *Writer) error {
		if err := w.InsertText(p(0, 3), "!", nil); err != nil {
			return err
		}
		return w.Merge(p(1))
	})

	data, err := json.Marshal(Operations(ops))
	if err != nil {
		t.Fatal(err)
	}
	var decoded Operations
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	// Replaying the decoded operations on a fresh copy gives the same tree.
	replica := newTestDoc(t, twoParagraphs)
	applyAll(t, replica, decoded)
	if got, want := replica.Stringify(mainRoot), doc.Stringify(mainRoot); got != want {
		t.Errorf("replayed %s, want %s", got, want)
	}
}
