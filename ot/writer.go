package ot

import (
	"fmt"

	"github.com/alimasry/go-collab-tree/model"
)

// Writer turns editing intents into operations, applies them and records
// them in its batch. Get one from Document.Change.
//
// Invalid intents are rejected with an error before anything is applied, so
// they never corrupt the document.
type Writer struct {
	doc   *Document
	batch *Batch
}

func (w *Writer) Batch() *Batch { return w.batch }

func (w *Writer) version() int { return w.doc.Version() }

// apply validates op, applies it and adds it to the batch.
func (w *Writer) apply(op Operation) error {
	if err := op.validate(w.doc.tree); err != nil {
		return fmt.Errorf("writer %s: %w", op.Type(), err)
	}
	return w.applyOperation(op)
}

// applyOperation applies op without pre-validation. A failure here is a
// transformation bug and corrupts the document.
func (w *Writer) applyOperation(op Operation) error {
	if _, err := w.doc.Apply(op); err != nil {
		return err
	}
	w.batch.Operations = append(w.batch.Operations, op)
	return nil
}

// Insert puts nodes at pos. Text-only inserts pick up attributes set
// concurrently around them.
func (w *Writer) Insert(pos model.Position, nodes ...*model.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	op := NewInsertOperation(pos, nodes, w.version())
	op.ShouldReceiveAttributes = true
	for _, n := range nodes {
		if !n.IsText() {
			op.ShouldReceiveAttributes = false
			break
		}
	}
	return w.apply(op)
}

func (w *Writer) InsertText(pos model.Position, text string, attrs map[string]model.Value) error {
	if text == "" {
		return nil
	}
	return w.Insert(pos, model.NewText(text, attrs))
}

func (w *Writer) InsertElement(pos model.Position, name string, attrs map[string]model.Value) error {
	return w.Insert(pos, model.NewElement(name, attrs))
}

// Remove moves the content of r to the graveyard. Non-flat ranges are
// removed piece by piece, last piece first.
func (w *Writer) Remove(r model.Range) error {
	flat, err := w.doc.tree.MinimalFlatRanges(r)
	if err != nil {
		return fmt.Errorf("writer remove %s: %w", r, err)
	}
	for i := len(flat) - 1; i >= 0; i-- {
		f := flat[i]
		op := NewMoveOperation(f.Start, f.End.Offset()-f.Start.Offset(), graveyardStart(), w.version())
		if err := w.apply(op); err != nil {
			return err
		}
	}
	return nil
}

// Move moves the content of a flat range to target.
func (w *Writer) Move(r model.Range, target model.Position) error {
	if !r.IsFlat() {
		return fmt.Errorf("writer move %s: %w", r, model.ErrNotFlat)
	}
	return w.apply(NewMoveOperation(r.Start, r.End.Offset()-r.Start.Offset(), target, w.version()))
}

// Split splits the parent of pos in two and returns the position between
// the two parts.
func (w *Writer) Split(pos model.Position) (model.Position, error) {
	if len(pos.Path) < 2 {
		return model.Position{}, fmt.Errorf("writer split %s: cannot split a root", pos)
	}
	parent, err := w.doc.tree.Parent(pos)
	if err != nil {
		return model.Position{}, fmt.Errorf("writer split %s: %w", pos, err)
	}
	insertion := SplitInsertionPosition(pos)
	op := NewSplitOperation(pos, parent.MaxOffset()-pos.Offset(), insertion, nil, w.version())
	if err := w.apply(op); err != nil {
		return model.Position{}, err
	}
	return insertion.WithStickiness(model.StickToNone), nil
}

// Merge joins the elements before and after pos.
func (w *Writer) Merge(pos model.Position) error {
	before := w.doc.tree.NodeBefore(pos)
	after := w.doc.tree.NodeAfter(pos)
	if before == nil || !before.IsElement() {
		return fmt.Errorf("writer merge at %s: no element before", pos)
	}
	if after == nil || !after.IsElement() {
		return fmt.Errorf("writer merge at %s: no element after", pos)
	}
	source := pos.ChildPosition(0)
	target := pos.ShiftedBy(-1).ChildPosition(before.MaxOffset())
	op := NewMergeOperation(source, after.MaxOffset(), target, graveyardStart(), w.version())
	return w.apply(op)
}

// Rename renames the element after pos.
func (w *Writer) Rename(pos model.Position, newName string) error {
	el := w.doc.tree.NodeAfter(pos)
	if el == nil || !el.IsElement() {
		return fmt.Errorf("writer rename at %s: no element", pos)
	}
	if el.Name() == newName {
		return nil
	}
	return w.apply(NewRenameOperation(pos, el.Name(), newName, w.version()))
}

// SetAttribute sets key on every node of r. Runs that already hold value are
// skipped. A Null value removes the attribute.
func (w *Writer) SetAttribute(r model.Range, key string, value model.Value) error {
	flat, err := w.doc.tree.MinimalFlatRanges(r)
	if err != nil {
		return fmt.Errorf("writer attribute %q on %s: %w", key, r, err)
	}
	type group struct {
		from, to int
		old      model.Value
	}
	for _, f := range flat {
		items, err := w.doc.tree.Items(f)
		if err != nil {
			return fmt.Errorf("writer attribute %q on %s: %w", key, f, err)
		}
		var groups []group
		offset := f.Start.Offset()
		for _, it := range items {
			cur := it.Node.Attr(key)
			if n := len(groups); n > 0 && groups[n-1].old.Equal(cur) {
				groups[n-1].to += it.Size
			} else {
				groups = append(groups, group{from: offset, to: offset + it.Size, old: cur})
			}
			offset += it.Size
		}
		for _, g := range groups {
			if g.old.Equal(value) {
				continue
			}
			gr := model.NewRange(f.Start.WithOffset(g.from), f.Start.WithOffset(g.to))
			if err := w.apply(NewAttributeOperation(gr, key, g.old, value, w.version())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) RemoveAttribute(r model.Range, key string) error {
	return w.SetAttribute(r, key, model.Null())
}

func (w *Writer) SetRootAttribute(root, key string, value model.Value) error {
	el := w.doc.tree.Root(root)
	if el == nil {
		return fmt.Errorf("writer root attribute %q: %w", root, model.ErrUnknownRoot)
	}
	old := el.Attr(key)
	if old.Equal(value) {
		return nil
	}
	return w.apply(NewRootAttributeOperation(root, key, old, value, w.version()))
}

func (w *Writer) AddMarker(name string, r model.Range, affectsData bool) error {
	if w.doc.markers.Has(name) {
		return fmt.Errorf("writer add marker %q: %w", name, ErrMarkerExists)
	}
	return w.apply(NewMarkerOperation(name, nil, &r, affectsData, w.version()))
}

func (w *Writer) UpdateMarker(name string, r model.Range) error {
	m, ok := w.doc.markers.Get(name)
	if !ok {
		return fmt.Errorf("writer update marker %q: %w", name, ErrMarkerNotFound)
	}
	return w.apply(NewMarkerOperation(name, &m.Range, &r, m.AffectsData, w.version()))
}

func (w *Writer) RemoveMarker(name string) error {
	m, ok := w.doc.markers.Get(name)
	if !ok {
		return fmt.Errorf("writer remove marker %q: %w", name, ErrMarkerNotFound)
	}
	return w.apply(NewMarkerOperation(name, &m.Range, nil, m.AffectsData, w.version()))
}

// Wrap puts the content of a flat range inside el, which must be an empty
// element.
func (w *Writer) Wrap(r model.Range, el *model.Node) error {
	if !r.IsFlat() {
		return fmt.Errorf("writer wrap %s: %w", r, model.ErrNotFlat)
	}
	if !el.IsElement() || el.ChildCount() > 0 {
		return fmt.Errorf("writer wrap %s: wrapper must be an empty element", r)
	}
	if err := w.Insert(r.Start, el); err != nil {
		return err
	}
	shifted := model.NewRange(r.Start.ShiftedBy(1), r.End.ShiftedBy(1))
	if shifted.IsCollapsed() {
		return nil
	}
	return w.Move(shifted, r.Start.ChildPosition(0))
}

// Unwrap replaces the element after pos with its content.
func (w *Writer) Unwrap(pos model.Position) error {
	el := w.doc.tree.NodeAfter(pos)
	if el == nil || !el.IsElement() {
		return fmt.Errorf("writer unwrap at %s: no element", pos)
	}
	if size := el.MaxOffset(); size > 0 {
		in := model.NewRange(pos.ChildPosition(0), pos.ChildPosition(size))
		if err := w.Move(in, pos.ShiftedBy(1)); err != nil {
			return err
		}
	}
	return w.Remove(model.RangeFromShift(pos, 1))
}

func (w *Writer) AddRoot(name, elementName string) error {
	if elementName == "" {
		elementName = model.RootElementName
	}
	return w.apply(NewRootOperation(name, elementName, true, w.version()))
}

func (w *Writer) DetachRoot(name string) error {
	el := w.doc.tree.Root(name)
	if el == nil {
		return fmt.Errorf("writer detach root %q: %w", name, model.ErrUnknownRoot)
	}
	return w.apply(NewRootOperation(name, el.Name(), false, w.version()))
}
