package ot

import (
	"testing"

	"github.com/alimasry/go-collab-tree/model"
)

func TestTransformSets_EmptySide(t *testing.T) {
	a := []Operation{NewInsertOperation(p(0, 0), []*model.Node{model.NewText("x", nil)}, 3)}
	res := TransformSets(a, nil, TransformOptions{PadWithNoOps: true})
	if len(res.OperationsA) != 1 || res.OperationsA[0] != a[0] {
		t.Errorf("OperationsA = %v, want input unchanged", res.OperationsA)
	}
	if len(res.OperationsB) != 0 {
		t.Errorf("OperationsB = %v, want empty", res.OperationsB)
	}
	if res.OperationsA[0].BaseVersion() != 3 {
		t.Errorf("base version = %d, want 3", res.OperationsA[0].BaseVersion())
	}
}

func TestTransformSets_PaddingAndVersions(t *testing.T) {
	// The attribute range is broken in two by an insert that does not
	// receive attributes.
	a := []Operation{NewAttributeOperation(r(p(0, 0), p(0, 3)), "bold", model.Null(), model.Bool(true), 0)}
	b := []Operation{NewInsertOperation(p(0, 1), []*model.Node{model.NewText("x", nil)}, 0)}

	tests := []struct {
		name       string
		pad        bool
		wantA      int
		wantB      int
		wantBKinds []Kind
	}{
		{"without padding", false, 2, 1, []Kind{KindInsert}},
		{"with padding", true, 2, 2, []Kind{KindInsert, KindNoOp}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := TransformSets(a, b, TransformOptions{PadWithNoOps: tt.pad})
			if len(res.OperationsA) != tt.wantA || len(res.OperationsB) != tt.wantB {
				t.Fatalf("lengths = %d/%d, want %d/%d", len(res.OperationsA), len(res.OperationsB), tt.wantA, tt.wantB)
			}
			for i, op := range res.OperationsA {
				if op.BaseVersion() != 1+i {
					t.Errorf("A[%d] base version = %d, want %d", i, op.BaseVersion(), 1+i)
				}
				if res.OriginalOperations[op] != a[0] {
					t.Errorf("A[%d] original not tracked", i)
				}
			}
			for i, op := range res.OperationsB {
				if op.BaseVersion() != 1+i {
					t.Errorf("B[%d] base version = %d, want %d", i, op.BaseVersion(), 1+i)
				}
				if op.Kind() != tt.wantBKinds[i] {
					t.Errorf("B[%d] kind = %s, want %s", i, op.Kind(), tt.wantBKinds[i])
				}
			}
		})
	}

	if a[0].(*AttributeOperation).Range.End.Offset() != 3 {
		t.Error("input operation modified")
	}
}

func TestTransformSets_MultipleOperations(t *testing.T) {
	got := verifyConvergence(t, twoParagraphs,
		func(w *Writer) error {
			if err := w.InsertText(p(0, 3), "1", nil); err != nil {
				return err
			}
			if err := w.InsertText(p(1, 0), "2", nil); err != nil {
				return err
			}
			return w.Rename(p(1), "heading1")
		},
		func(w *Writer) error {
			if err := w.InsertElement(p(0), "image", nil); err != nil {
				return err
			}
			return w.Remove(r(p(1, 0), p(1, 1)))
		},
	)
	if want := "<image></image><paragraph>oo1</paragraph><heading1>2Bar</heading1>"; got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestTransformSets_UndoneRemoveIsWeak(t *testing.T) {
	// a moves a letter into the second paragraph while b removes it.
	newA := func() Operation { return NewMoveOperation(p(0, 0), 1, p(1, 0), 0) }
	newB := func() Operation { return NewMoveOperation(p(0, 0), 1, graveyardStart(), 0) }

	t.Run("remove wins", func(t *testing.T) {
		res := TransformSets([]Operation{newA()}, []Operation{newB()}, TransformOptions{})
		if k := res.OperationsA[0].Kind(); k != KindNoOp {
			t.Errorf("a' kind = %s, want noop", k)
		}
	})

	t.Run("undone remove loses", func(t *testing.T) {
		b := newB()
		b.SetWasUndone(true)
		res := TransformSets([]Operation{newA()}, []Operation{b}, TransformOptions{})
		mv, ok := res.OperationsA[0].(*MoveOperation)
		if !ok {
			t.Fatalf("a' = %T, want a move", res.OperationsA[0])
		}
		if mv.SourcePosition.Root != model.GraveyardRoot {
			t.Errorf("a' source = %s, want the graveyard", mv.SourcePosition)
		}
	})
}
