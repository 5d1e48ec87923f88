package ot

import (
	"fmt"

	"github.com/alimasry/go-collab-tree/model"
)

func (op *InsertOperation) validate(t *model.Tree) error {
	if err := t.CheckPosition(op.Position); err != nil {
		return fmt.Errorf("insert at %s: %w", op.Position, err)
	}
	return nil
}

func (op *InsertOperation) execute(d *Document) (model.Range, error) {
	return d.tree.Insert(op.Position, cloneNodes(op.Nodes))
}

func (op *MoveOperation) validate(t *model.Tree) error {
	src := model.RangeFromShift(op.SourcePosition, op.HowMany)
	items, err := t.Items(src)
	if err != nil {
		return fmt.Errorf("move from %s: %w", op.SourcePosition, err)
	}
	if op.HowMany < 0 || sumItems(items) != op.HowMany {
		return fmt.Errorf("move %d offsets from %s: nodes missing", op.HowMany, op.SourcePosition)
	}
	if err := t.CheckPosition(op.TargetPosition); err != nil {
		return fmt.Errorf("move to %s: %w", op.TargetPosition, err)
	}
	if op.SourcePosition.Root == op.TargetPosition.Root {
		rel, _ := model.ComparePaths(op.SourcePosition.ParentPath(), op.TargetPosition.ParentPath())
		switch rel {
		case model.PathSame:
			so, to := op.SourcePosition.Offset(), op.TargetPosition.Offset()
			if so < to && so+op.HowMany > to {
				return fmt.Errorf("move %s into itself at %s", src, op.TargetPosition)
			}
		case model.PathPrefix:
			i := len(op.SourcePosition.Path) - 1
			at := op.TargetPosition.Path[i]
			if at >= op.SourcePosition.Offset() && at < op.SourcePosition.Offset()+op.HowMany {
				return fmt.Errorf("move %s into its own descendant at %s", src, op.TargetPosition)
			}
		}
	}
	return nil
}

func sumItems(items []model.Item) int {
	total := 0
	for _, it := range items {
		total += it.Size
	}
	return total
}

func (op *MoveOperation) execute(d *Document) (model.Range, error) {
	return d.tree.Move(model.RangeFromShift(op.SourcePosition, op.HowMany), op.TargetPosition)
}

func (op *SplitOperation) validate(t *model.Tree) error {
	if len(op.SplitPosition.Path) < 2 {
		return fmt.Errorf("split at %s: cannot split a root", op.SplitPosition)
	}
	parent, err := t.Parent(op.SplitPosition)
	if err != nil {
		return fmt.Errorf("split at %s: %w", op.SplitPosition, err)
	}
	if err := t.CheckPosition(op.SplitPosition); err != nil {
		return fmt.Errorf("split at %s: %w", op.SplitPosition, err)
	}
	if op.HowMany != parent.MaxOffset()-op.SplitPosition.Offset() {
		return fmt.Errorf("split at %s: howMany %d, want %d", op.SplitPosition, op.HowMany, parent.MaxOffset()-op.SplitPosition.Offset())
	}
	if op.GraveyardPosition != nil {
		if n := t.NodeAfter(*op.GraveyardPosition); n == nil || !n.IsElement() {
			return fmt.Errorf("split at %s: no element at %s", op.SplitPosition, *op.GraveyardPosition)
		}
	}
	return nil
}

func (op *SplitOperation) execute(d *Document) (model.Range, error) {
	splitElement, err := d.tree.Parent(op.SplitPosition)
	if err != nil {
		return model.Range{}, err
	}
	if op.GraveyardPosition != nil {
		if _, err := d.tree.Move(model.RangeFromShift(*op.GraveyardPosition, 1), op.InsertionPosition); err != nil {
			return model.Range{}, err
		}
	} else {
		if _, err := d.tree.Insert(op.InsertionPosition, []*model.Node{splitElement.ShallowClone()}); err != nil {
			return model.Range{}, err
		}
	}
	start, err := d.tree.PositionAt(splitElement, op.SplitPosition.Offset())
	if err != nil {
		return model.Range{}, err
	}
	src := model.NewRange(start, start.WithOffset(splitElement.MaxOffset()))
	if _, err := d.tree.Move(src, op.MoveTargetPosition()); err != nil {
		return model.Range{}, err
	}
	return model.RangeFromShift(op.InsertionPosition, 1), nil
}

func (op *MergeOperation) validate(t *model.Tree) error {
	if len(op.SourcePosition.Path) < 2 {
		return fmt.Errorf("merge from %s: source is a root", op.SourcePosition)
	}
	if len(op.TargetPosition.Path) < 2 {
		return fmt.Errorf("merge into %s: target is a root", op.TargetPosition)
	}
	source, err := t.Parent(op.SourcePosition)
	if err != nil {
		return fmt.Errorf("merge from %s: %w", op.SourcePosition, err)
	}
	if err := t.CheckPosition(op.TargetPosition); err != nil {
		return fmt.Errorf("merge into %s: %w", op.TargetPosition, err)
	}
	if op.HowMany != source.MaxOffset() {
		return fmt.Errorf("merge from %s: howMany %d, want %d", op.SourcePosition, op.HowMany, source.MaxOffset())
	}
	if err := t.CheckPosition(op.GraveyardPosition); err != nil {
		return fmt.Errorf("merge graveyard %s: %w", op.GraveyardPosition, err)
	}
	return nil
}

func (op *MergeOperation) execute(d *Document) (model.Range, error) {
	merged, err := d.tree.Parent(op.SourcePosition)
	if err != nil {
		return model.Range{}, err
	}
	in, err := d.tree.RangeIn(merged)
	if err != nil {
		return model.Range{}, err
	}
	if _, err := d.tree.Move(in, op.TargetPosition); err != nil {
		return model.Range{}, err
	}
	on, err := d.tree.RangeOn(merged)
	if err != nil {
		return model.Range{}, err
	}
	if _, err := d.tree.Move(on, op.GraveyardPosition); err != nil {
		return model.Range{}, err
	}
	return model.CollapsedRange(positionByMerge(op.TargetPosition, op)), nil
}

func (op *RenameOperation) validate(t *model.Tree) error {
	n := t.NodeAfter(op.Position)
	if n == nil || !n.IsElement() {
		return fmt.Errorf("rename at %s: no element", op.Position)
	}
	if n.Name() != op.OldName {
		return fmt.Errorf("rename at %s: element is %q, want %q", op.Position, n.Name(), op.OldName)
	}
	return nil
}

func (op *RenameOperation) execute(d *Document) (model.Range, error) {
	n := d.tree.NodeAfter(op.Position)
	d.tree.Rename(n, op.NewName)
	return model.RangeFromShift(op.Position, 1), nil
}

func (op *AttributeOperation) validate(t *model.Tree) error {
	items, err := t.Items(op.Range)
	if err != nil {
		return fmt.Errorf("attribute %q on %s: %w", op.Key, op.Range, err)
	}
	for _, it := range items {
		cur := it.Node.Attr(op.Key)
		if !op.OldValue.IsNull() && !cur.Equal(op.OldValue) {
			return fmt.Errorf("attribute %q on %s: value is %s, want %s", op.Key, op.Range, cur, op.OldValue)
		}
		if op.OldValue.IsNull() && !op.NewValue.IsNull() && it.Node.HasAttr(op.Key) {
			return fmt.Errorf("attribute %q on %s: already set", op.Key, op.Range)
		}
	}
	return nil
}

func (op *AttributeOperation) execute(d *Document) (model.Range, error) {
	if !op.OldValue.Equal(op.NewValue) {
		if err := d.tree.SetAttribute(op.Range, op.Key, op.NewValue); err != nil {
			return model.Range{}, err
		}
	}
	return op.Range.Clone(), nil
}

func (op *RootAttributeOperation) validate(t *model.Tree) error {
	root := t.Root(op.Root)
	if root == nil || op.Root == model.GraveyardRoot {
		return fmt.Errorf("root attribute %q: %w", op.Key, model.ErrUnknownRoot)
	}
	cur := root.Attr(op.Key)
	if !op.OldValue.IsNull() && !cur.Equal(op.OldValue) {
		return fmt.Errorf("root attribute %q on %s: value is %s, want %s", op.Key, op.Root, cur, op.OldValue)
	}
	if op.OldValue.IsNull() && !op.NewValue.IsNull() && root.HasAttr(op.Key) {
		return fmt.Errorf("root attribute %q on %s: already set", op.Key, op.Root)
	}
	return nil
}

func (op *RootAttributeOperation) execute(d *Document) (model.Range, error) {
	root := d.tree.Root(op.Root)
	d.tree.SetNodeAttribute(root, op.Key, op.NewValue)
	return d.tree.RangeIn(root)
}

func (op *MarkerOperation) validate(t *model.Tree) error { return nil }

func (op *MarkerOperation) execute(d *Document) (model.Range, error) {
	if op.NewRange == nil {
		d.markers.remove(op.Name)
		if op.OldRange != nil {
			return op.OldRange.Clone(), nil
		}
		return model.Range{}, nil
	}
	d.markers.set(op.Name, *op.NewRange, op.AffectsData)
	return op.NewRange.Clone(), nil
}

func (op *RootOperation) validate(t *model.Tree) error {
	if op.RootName == model.GraveyardRoot {
		return fmt.Errorf("root %q: graveyard cannot be attached or detached", op.RootName)
	}
	exists := t.Root(op.RootName) != nil
	switch {
	case op.IsAdd && t.IsAttached(op.RootName):
		return fmt.Errorf("add root %q: %w", op.RootName, model.ErrRootExists)
	case !op.IsAdd && !exists:
		return fmt.Errorf("detach root %q: %w", op.RootName, model.ErrUnknownRoot)
	case !op.IsAdd && !t.IsAttached(op.RootName):
		return fmt.Errorf("detach root %q: already detached", op.RootName)
	}
	return nil
}

func (op *RootOperation) execute(d *Document) (model.Range, error) {
	root := d.tree.Root(op.RootName)
	if root == nil {
		var err error
		if root, err = d.tree.AddRoot(op.RootName, op.ElementName); err != nil {
			return model.Range{}, err
		}
	}
	d.tree.SetAttached(op.RootName, op.IsAdd)
	return d.tree.RangeIn(root)
}

func (op *NoOperation) validate(t *model.Tree) error { return nil }

func (op *NoOperation) execute(d *Document) (model.Range, error) { return model.Range{}, nil }
