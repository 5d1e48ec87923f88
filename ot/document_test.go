package ot

import (
	"errors"
	"testing"

	"github.com/alimasry/go-collab-tree/model"
)

func TestDocument_Apply(t *testing.T) {
	doc := newTestDoc(t, "<paragraph>hello</paragraph>")
	if doc.Version() != 0 {
		t.Fatalf("initial version = %d", doc.Version())
	}

	// Insert " world"
	if _, err := doc.Apply(NewInsertOperation(p(0, 5), []*model.Node{model.NewText(" world", nil)}, 0)); err != nil {
		t.Fatal(err)
	}
	if got := doc.Stringify(mainRoot); got != "<paragraph>hello world</paragraph>" {
		t.Errorf("after insert: %s", got)
	}
	if doc.Version() != 1 {
		t.Errorf("version = %d, want 1", doc.Version())
	}

	// Remove "world"
	ch, err := doc.Apply(NewMoveOperation(p(0, 6), 5, graveyardStart(), 1))
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Stringify(mainRoot); got != "<paragraph>hello </paragraph>" {
		t.Errorf("after remove: %s", got)
	}
	if ch.Type != TypeRemove || ch.Version != 2 {
		t.Errorf("change = %s v%d, want remove v2", ch.Type, ch.Version)
	}
	if got := model.Stringify(doc.Root(model.GraveyardRoot).Children()); got != "world" {
		t.Errorf("graveyard = %q, want %q", got, "world")
	}

	if n := len(doc.History().Operations(0, -1)); n != 2 {
		t.Errorf("history length = %d, want 2", n)
	}
}

func TestDocument_VersionMonotonic(t *testing.T) {
	doc := newTestDoc(t, "<paragraph>Foo</paragraph>")
	ops := []Operation{
		NewNoOperation(0),
		NewAttributeOperation(r(p(0, 0), p(0, 0)), "bold", model.Null(), model.Bool(true), 1),
		NewRenameOperation(p(0), "paragraph", "heading1", 2),
		NewMarkerOperation("m", nil, &model.Range{Start: p(0, 1), End: p(0, 2)}, false, 3),
		NewRootAttributeOperation(mainRoot, "lang", model.Null(), model.String("en"), 4),
		NewRootOperation("aside", "", true, 5),
	}
	for i, op := range ops {
		if _, err := doc.Apply(op); err != nil {
			t.Fatalf("op %d (%s): %v", i, op.Type(), err)
		}
		if doc.Version() != i+1 {
			t.Errorf("after %s: version = %d, want %d", op.Type(), doc.Version(), i+1)
		}
	}
}

func TestDocument_VersionMismatch(t *testing.T) {
	doc := newTestDoc(t, "<paragraph>hi</paragraph>")
	_, err := doc.Apply(NewInsertOperation(p(0, 0), []*model.Node{model.NewText("x", nil)}, 4))
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("err = %v, want ErrVersionMismatch", err)
	}
	// A stale version is not fatal.
	if doc.Corrupted() != nil {
		t.Errorf("document corrupted by version mismatch: %v", doc.Corrupted())
	}
	if got := doc.Stringify(mainRoot); got != "<paragraph>hi</paragraph>" || doc.Version() != 0 {
		t.Errorf("document changed: %s v%d", got, doc.Version())
	}
}

func TestDocument_PreconditionCorrupts(t *testing.T) {
	doc := newTestDoc(t, "<paragraph>hi</paragraph>")
	snap := doc.Snapshot()

	_, err := doc.Apply(NewMoveOperation(p(0, 1), 5, p(1), 0))
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("err = %v, want ErrPrecondition", err)
	}
	if doc.Corrupted() == nil {
		t.Fatal("document not flagged as corrupted")
	}

	_, err = doc.Apply(NewNoOperation(0))
	if !errors.Is(err, ErrNeedsResync) {
		t.Fatalf("err = %v, want ErrNeedsResync", err)
	}

	if err := doc.Reset(snap); err != nil {
		t.Fatal(err)
	}
	if doc.Corrupted() != nil {
		t.Errorf("still corrupted after reset")
	}
	if _, err := doc.Apply(NewNoOperation(0)); err != nil {
		t.Errorf("apply after reset: %v", err)
	}
}

func TestDocument_InvalidOperations(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
	}{
		{"insert past end", NewInsertOperation(p(0, 9), []*model.Node{model.NewText("x", nil)}, 0)},
		{"insert into text", NewInsertOperation(p(0, 1, 0), []*model.Node{model.NewText("x", nil)}, 0)},
		{"move into itself", NewMoveOperation(p(0), 1, p(0, 1), 0)},
		{"rename text", NewRenameOperation(p(0, 0), "a", "b", 0)},
		{"rename wrong old name", NewRenameOperation(p(0), "heading1", "heading2", 0)},
		{"attribute with wrong old value", NewAttributeOperation(r(p(0, 0), p(0, 2)), "bold", model.Bool(true), model.Null(), 0)},
		{"attribute on non-flat range", NewAttributeOperation(r(p(0, 0), p(1)), "bold", model.Null(), model.Bool(true), 0)},
		{"split root", NewSplitOperation(p(0), 1, p(1), nil, 0)},
		{"merge with wrong size", NewMergeOperation(p(1, 0), 5, p(0, 2), graveyardStart(), 0)},
		{"root attribute on unknown root", NewRootAttributeOperation("nope", "k", model.Null(), model.Bool(true), 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newTestDoc(t, "<paragraph>hi</paragraph><paragraph>yo</paragraph>")
			if _, err := doc.Apply(tt.op); !errors.Is(err, ErrPrecondition) {
				t.Errorf("err = %v, want ErrPrecondition", err)
			}
		})
	}
}

func TestDocument_OnChange(t *testing.T) {
	doc := newTestDoc(t, "<paragraph>Foo</paragraph>")
	var changes []Change
	doc.OnChange(func(ch Change) { changes = append(changes, ch) })

	collect(t, doc, func(w *Writer) error {
		if err := w.InsertText(p(0, 3), "Bar", nil); err != nil {
			return err
		}
		return w.Rename(p(0), "heading1")
	})

	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}
	if changes[0].Type != TypeInsert || !changes[0].Range.IsEqual(r(p(0, 3), p(0, 6))) {
		t.Errorf("change 0 = %s %s", changes[0].Type, changes[0].Range)
	}
	if changes[1].Type != TypeRename || changes[1].Version != 2 {
		t.Errorf("change 1 = %s v%d", changes[1].Type, changes[1].Version)
	}
}

func TestDocument_MarkerContainment(t *testing.T) {
	const doc = "<paragraph>Foo</paragraph><paragraph>Bar</paragraph>"

	t.Run("whole range removed", func(t *testing.T) {
		d := newTestDoc(t, doc)
		collect(t, d, func(w *Writer) error { return w.AddMarker("c", r(p(1, 0), p(1, 3)), true) })
		collect(t, d, func(w *Writer) error { return w.Remove(r(p(1), p(2))) })
		if d.Markers().Has("c") {
			m, _ := d.Markers().Get("c")
			t.Errorf("marker survived at %s", m.Range)
		}
	})

	t.Run("partially removed", func(t *testing.T) {
		d := newTestDoc(t, doc)
		collect(t, d, func(w *Writer) error { return w.AddMarker("c", r(p(0, 1), p(0, 3)), true) })
		collect(t, d, func(w *Writer) error { return w.Remove(r(p(0, 2), p(0, 3))) })
		m, ok := d.Markers().Get("c")
		if !ok {
			t.Fatal("marker removed")
		}
		if want := r(p(0, 1), p(0, 2)); !m.Range.IsEqual(want) {
			t.Errorf("marker range = %s, want %s", m.Range, want)
		}
	})

	t.Run("shifted by insertion", func(t *testing.T) {
		d := newTestDoc(t, doc)
		collect(t, d, func(w *Writer) error { return w.AddMarker("c", r(p(1, 0), p(1, 3)), false) })
		collect(t, d, func(w *Writer) error { return w.InsertElement(p(0), "paragraph", nil) })
		m, _ := d.Markers().Get("c")
		if want := r(p(2, 0), p(2, 3)); !m.Range.IsEqual(want) {
			t.Errorf("marker range = %s, want %s", m.Range, want)
		}
	})

	t.Run("change events", func(t *testing.T) {
		d := newTestDoc(t, doc)
		var events []MarkerChange
		d.Markers().OnChange(func(ch MarkerChange) { events = append(events, ch) })
		collect(t, d, func(w *Writer) error { return w.AddMarker("c", r(p(0, 0), p(0, 1)), false) })
		collect(t, d, func(w *Writer) error { return w.RemoveMarker("c") })
		if len(events) != 2 {
			t.Fatalf("got %d events, want 2", len(events))
		}
		if events[0].OldRange != nil || events[0].NewRange == nil {
			t.Errorf("add event = %+v", events[0])
		}
		if events[1].OldRange == nil || events[1].NewRange != nil {
			t.Errorf("remove event = %+v", events[1])
		}
	})
}

func TestDocument_SnapshotRoundTrip(t *testing.T) {
	doc := newTestDoc(t, `<paragraph align="left">Foo <text bold="true">Bar</text></paragraph>`)
	collect(t, doc, func(w *Writer) error {
		if err := w.AddMarker("c", r(p(0, 1), p(0, 5)), true); err != nil {
			return err
		}
		if err := w.Remove(r(p(0, 0), p(0, 1))); err != nil {
			return err
		}
		return w.AddRoot("aside", "section")
	})
	collect(t, doc, func(w *Writer) error { return w.DetachRoot("aside") })

	loaded, err := LoadDocument(doc.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Version() != doc.Version() {
		t.Errorf("version = %d, want %d", loaded.Version(), doc.Version())
	}
	if got, want := loaded.Stringify(mainRoot), doc.Stringify(mainRoot); got != want {
		t.Errorf("content = %s, want %s", got, want)
	}
	if got := model.Stringify(loaded.Root(model.GraveyardRoot).Children()); got != "F" {
		t.Errorf("graveyard = %q, want %q", got, "F")
	}
	if loaded.Tree().IsAttached("aside") || loaded.Root("aside") == nil {
		t.Error("detached root not restored")
	}
	m, ok := loaded.Markers().Get("c")
	if !ok || !m.Range.IsEqual(r(p(0, 0), p(0, 4))) || !m.AffectsData {
		t.Errorf("marker = %+v, %v", m, ok)
	}
}

func TestSeedDocument(t *testing.T) {
	doc, err := SeedDocument(mainRoot, "<paragraph>Foo</paragraph><image></image>")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version() != 0 {
		t.Errorf("version = %d, want 0", doc.Version())
	}
	if got := doc.Stringify(mainRoot); got != "<paragraph>Foo</paragraph><image></image>" {
		t.Errorf("content = %s", got)
	}
	if _, err := SeedDocument(mainRoot, "<paragraph>Foo"); !errors.Is(err, model.ErrMarkup) {
		t.Errorf("unclosed markup: err = %v", err)
	}
}
