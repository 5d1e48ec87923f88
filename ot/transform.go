package ot

import (
	"fmt"

	"github.com/alimasry/go-collab-tree/model"
)

// RelationKind names a hint recorded between two operations while they were
// transformed. Undo uses these hints to restore content exactly where it was.
type RelationKind uint8

const (
	RelationNone RelationKind = iota
	RelationInsertAtSource
	RelationInsertBetween
	RelationMoveTargetAfter
	RelationInsertBefore
	RelationInsertAfter
	RelationSplitBefore
	RelationSplitInsideMove
	RelationMergeTargetNotMoved
	RelationMergeSourceNotMoved
	RelationMergeSameElement
	RelationSplitAtSource
	RelationMarkerBoundary
	RelationMarkerMerge
)

// MarkerSide tells which marker boundary touched a move.
type MarkerSide uint8

const (
	SideNone MarkerSide = iota
	SideLeft
	SideRight
)

// Relation is a recorded hint. Only the fields of its Kind are set.
type Relation struct {
	Kind RelationKind

	// RelationSplitInsideMove
	HowMany int
	Offset  int

	// RelationMarkerBoundary
	Side MarkerSide
	Path []int

	// RelationMarkerMerge
	WasInLeftElement            bool
	WasStartBeforeMergedElement bool
	WasEndBeforeMergedElement   bool
	WasInRightElement           bool
}

func (r *Relation) is(k RelationKind) bool { return r != nil && r.Kind == k }

// Context carries tie-break and history information into Transform.
type Context struct {
	AIsStrong       bool
	AWasUndone      bool
	BWasUndone      bool
	ForceWeakRemove bool
	ABRelation      *Relation
	BARelation      *Relation
}

// Transform takes two concurrent operations a and b (both created against the
// same document state) and returns a rewritten so that it can be applied
// after b. The result may hold several operations, or a single NoOperation.
// Every result keeps a's base version; a itself is never modified.
func Transform(a, b Operation, ctx Context) []Operation {
	a = a.Clone()
	out := transformPair(a, b, ctx)
	for _, op := range out {
		op.SetBaseVersion(a.BaseVersion())
	}
	return out
}

func one(op Operation) []Operation { return []Operation{op} }

func noop() []Operation { return []Operation{NewNoOperation(0)} }

func transformPair(a, b Operation, ctx Context) []Operation {
	switch a := a.(type) {
	case *AttributeOperation:
		switch b := b.(type) {
		case *AttributeOperation:
			return transformAttributeAttribute(a, b, ctx)
		case *InsertOperation:
			return transformAttributeInsert(a, b)
		case *MergeOperation:
			return transformAttributeMerge(a, b)
		case *MoveOperation:
			return transformAttributeMove(a, b)
		case *SplitOperation:
			return transformAttributeSplit(a, b)
		case *RenameOperation, *RootAttributeOperation, *MarkerOperation, *RootOperation, *NoOperation:
			return one(a)
		}

	case *InsertOperation:
		switch b := b.(type) {
		case *AttributeOperation:
			return transformInsertAttribute(a, b)
		case *InsertOperation:
			return transformInsertInsert(a, b, ctx)
		case *MoveOperation:
			a.Position = a.Position.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
			return one(a)
		case *SplitOperation:
			a.Position = positionBySplit(a.Position, b)
			return one(a)
		case *MergeOperation:
			a.Position = positionByMerge(a.Position, b)
			return one(a)
		case *RenameOperation, *RootAttributeOperation, *MarkerOperation, *RootOperation, *NoOperation:
			return one(a)
		}

	case *MarkerOperation:
		switch b := b.(type) {
		case *InsertOperation:
			return transformMarkerInsert(a, b)
		case *MarkerOperation:
			return transformMarkerMarker(a, b, ctx)
		case *MergeOperation:
			return transformMarkerMerge(a, b)
		case *MoveOperation:
			return transformMarkerMove(a, b, ctx)
		case *SplitOperation:
			return transformMarkerSplit(a, b, ctx)
		case *AttributeOperation, *RenameOperation, *RootAttributeOperation, *RootOperation, *NoOperation:
			return one(a)
		}

	case *MergeOperation:
		switch b := b.(type) {
		case *InsertOperation:
			return transformMergeInsert(a, b)
		case *MergeOperation:
			return transformMergeMerge(a, b, ctx)
		case *MoveOperation:
			return transformMergeMove(a, b, ctx)
		case *SplitOperation:
			return transformMergeSplit(a, b, ctx)
		case *AttributeOperation, *RenameOperation, *RootAttributeOperation, *MarkerOperation, *RootOperation, *NoOperation:
			return one(a)
		}

	case *MoveOperation:
		switch b := b.(type) {
		case *InsertOperation:
			return transformMoveInsert(a, b)
		case *MoveOperation:
			return transformMoveMove(a, b, ctx)
		case *SplitOperation:
			return transformMoveSplit(a, b, ctx)
		case *MergeOperation:
			return transformMoveMerge(a, b, ctx)
		case *AttributeOperation, *RenameOperation, *RootAttributeOperation, *MarkerOperation, *RootOperation, *NoOperation:
			return one(a)
		}

	case *RenameOperation:
		switch b := b.(type) {
		case *InsertOperation:
			a.Position = a.Position.TransformedByInsertion(b.Position, b.HowMany())
			return one(a)
		case *MergeOperation:
			return transformRenameMerge(a, b)
		case *MoveOperation:
			a.Position = a.Position.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
			return one(a)
		case *RenameOperation:
			return transformRenameRename(a, b, ctx)
		case *SplitOperation:
			return transformRenameSplit(a, b)
		case *AttributeOperation, *RootAttributeOperation, *MarkerOperation, *RootOperation, *NoOperation:
			return one(a)
		}

	case *RootAttributeOperation:
		switch b := b.(type) {
		case *RootAttributeOperation:
			return transformRootAttributeRootAttribute(a, b, ctx)
		case *AttributeOperation, *InsertOperation, *MergeOperation, *MoveOperation, *RenameOperation,
			*SplitOperation, *MarkerOperation, *RootOperation, *NoOperation:
			return one(a)
		}

	case *RootOperation:
		switch b := b.(type) {
		case *RootOperation:
			if a.RootName == b.RootName && a.IsAdd == b.IsAdd {
				return noop()
			}
			return one(a)
		case *AttributeOperation, *InsertOperation, *MergeOperation, *MoveOperation, *RenameOperation,
			*SplitOperation, *MarkerOperation, *RootAttributeOperation, *NoOperation:
			return one(a)
		}

	case *SplitOperation:
		switch b := b.(type) {
		case *InsertOperation:
			return transformSplitInsert(a, b)
		case *MergeOperation:
			return transformSplitMerge(a, b, ctx)
		case *MoveOperation:
			return transformSplitMove(a, b, ctx)
		case *SplitOperation:
			return transformSplitSplit(a, b, ctx)
		case *AttributeOperation, *RenameOperation, *RootAttributeOperation, *MarkerOperation, *RootOperation, *NoOperation:
			return one(a)
		}

	case *NoOperation:
		return one(a)
	}
	panic(fmt.Sprintf("ot: no transformation for %s by %s", a.Kind(), b.Kind()))
}

// Attribute.

func transformAttributeAttribute(a, b *AttributeOperation, ctx Context) []Operation {
	if a.Key != b.Key || !a.Range.Start.HasSameParentAs(b.Range.Start) {
		return one(a)
	}
	var ops []Operation
	for _, r := range a.Range.Difference(b.Range) {
		ops = append(ops, NewAttributeOperation(r, a.Key, a.OldValue, a.NewValue, 0))
	}
	if common, ok := a.Range.Intersection(b.Range); ok && ctx.AIsStrong {
		ops = append(ops, NewAttributeOperation(common, b.Key, b.NewValue, a.NewValue, 0))
	}
	if len(ops) == 0 {
		return noop()
	}
	return ops
}

func transformAttributeInsert(a *AttributeOperation, b *InsertOperation) []Operation {
	if a.Range.Start.HasSameParentAs(b.Position) && a.Range.ContainsPosition(b.Position) {
		ranges := a.Range.TransformedByInsertion(b.Position, b.HowMany(), !b.ShouldReceiveAttributes)
		var out []Operation
		if b.ShouldReceiveAttributes {
			if op := complementaryAttributeOperation(b, a.Key, a.OldValue); op != nil {
				out = append(out, op)
			}
		}
		for _, r := range ranges {
			out = append(out, NewAttributeOperation(r, a.Key, a.OldValue, a.NewValue, 0))
		}
		return out
	}
	a.Range = a.Range.TransformedByInsertion(b.Position, b.HowMany(), false)[0]
	return one(a)
}

// complementaryAttributeOperation sets key to newValue on inserted nodes
// that do not have it yet.
func complementaryAttributeOperation(ins *InsertOperation, key string, newValue model.Value) Operation {
	if len(ins.Nodes) == 0 {
		return nil
	}
	insertValue := ins.Nodes[0].Attr(key)
	if insertValue.Equal(newValue) {
		return nil
	}
	r := model.NewRange(ins.Position, ins.Position.ShiftedBy(ins.HowMany()))
	return NewAttributeOperation(r, key, insertValue, newValue, 0)
}

func transformAttributeMerge(a *AttributeOperation, b *MergeOperation) []Operation {
	var ranges []model.Range
	deletion := b.DeletionPosition()
	if a.Range.Start.HasSameParentAs(deletion) {
		if a.Range.ContainsPosition(deletion) || a.Range.Start.IsEqual(deletion) {
			ranges = append(ranges, model.RangeFromShift(b.GraveyardPosition, 1))
		}
	}
	r := rangeByMerge(a.Range, b)
	if !r.IsCollapsed() {
		ranges = append(ranges, r)
	}
	out := make([]Operation, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, NewAttributeOperation(r, a.Key, a.OldValue, a.NewValue, a.BaseVersion()))
	}
	return out
}

func transformAttributeMove(a *AttributeOperation, b *MoveOperation) []Operation {
	ranges := breakRangeByMove(a.Range, b)
	out := make([]Operation, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, NewAttributeOperation(r, a.Key, a.OldValue, a.NewValue, a.BaseVersion()))
	}
	return out
}

// breakRangeByMove transforms a flat range by a move and keeps every piece
// flat.
func breakRangeByMove(r model.Range, mv *MoveOperation) []model.Range {
	moveRange := model.RangeFromShift(mv.SourcePosition, mv.HowMany)
	var common *model.Range
	var difference []model.Range
	switch {
	case moveRange.ContainsRange(r, true):
		c := r
		common = &c
	case r.Start.HasSameParentAs(moveRange.Start):
		difference = r.Difference(moveRange)
		if c, ok := r.Intersection(moveRange); ok {
			common = &c
		}
	default:
		difference = []model.Range{r}
	}

	var result []model.Range
	target := mv.MovedRangeStart()
	for _, diff := range difference {
		d, ok := diff.TransformedByDeletion(mv.SourcePosition, mv.HowMany)
		if !ok {
			continue
		}
		spread := d.Start.HasSameParentAs(target)
		result = append(result, d.TransformedByInsertion(target, mv.HowMany, spread)...)
	}
	if common != nil {
		result = append(result, common.TransformedByMove(mv.SourcePosition, mv.TargetPosition, mv.HowMany, false)[0])
	}
	return result
}

func transformAttributeSplit(a *AttributeOperation, b *SplitOperation) []Operation {
	if a.Range.End.IsEqual(b.InsertionPosition) {
		if b.GraveyardPosition == nil {
			a.Range.End = a.Range.End.ShiftedBy(1)
		}
		return one(a)
	}
	if a.Range.Start.HasSameParentAs(b.SplitPosition) && a.Range.ContainsPosition(b.SplitPosition) {
		second := a.Clone().(*AttributeOperation)
		second.Range = model.NewRange(b.MoveTargetPosition(), a.Range.End.Combined(b.SplitPosition, b.MoveTargetPosition()))
		a.Range.End = b.SplitPosition.WithStickiness(model.StickToPrevious)
		return []Operation{a, second}
	}
	a.Range = rangeBySplit(a.Range, b)
	return one(a)
}

// Insert.

func transformInsertAttribute(a *InsertOperation, b *AttributeOperation) []Operation {
	out := one(a)
	if a.ShouldReceiveAttributes && a.Position.HasSameParentAs(b.Range.Start) && b.Range.ContainsPosition(a.Position) {
		if op := complementaryAttributeOperation(a, b.Key, b.NewValue); op != nil {
			out = append(out, op)
		}
	}
	return out
}

func transformInsertInsert(a, b *InsertOperation, ctx Context) []Operation {
	if a.Position.IsEqual(b.Position) && ctx.AIsStrong {
		return one(a)
	}
	a.Position = a.Position.TransformedByInsertion(b.Position, b.HowMany())
	return one(a)
}

// Marker.

func transformMarkerInsert(a *MarkerOperation, b *InsertOperation) []Operation {
	if a.OldRange != nil {
		r := a.OldRange.TransformedByInsertion(b.Position, b.HowMany(), false)[0]
		a.OldRange = &r
	}
	if a.NewRange != nil {
		r := a.NewRange.TransformedByInsertion(b.Position, b.HowMany(), false)[0]
		a.NewRange = &r
	}
	return one(a)
}

func transformMarkerMarker(a, b *MarkerOperation, ctx Context) []Operation {
	if a.Name != b.Name {
		return one(a)
	}
	if !ctx.AIsStrong {
		return noop()
	}
	a.OldRange = cloneRangePtr(b.NewRange)
	return one(a)
}

func transformMarkerMerge(a *MarkerOperation, b *MergeOperation) []Operation {
	if a.OldRange != nil {
		r := rangeByMerge(*a.OldRange, b)
		a.OldRange = &r
	}
	if a.NewRange != nil {
		r := rangeByMerge(*a.NewRange, b)
		a.NewRange = &r
	}
	return one(a)
}

func transformMarkerMove(a *MarkerOperation, b *MoveOperation, ctx Context) []Operation {
	if a.OldRange != nil {
		r := model.JoinRanges(a.OldRange.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany, false))
		a.OldRange = &r
	}
	if a.NewRange == nil {
		return one(a)
	}
	if rel := ctx.ABRelation; rel != nil {
		moved := model.JoinRanges(a.NewRange.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany, false))
		switch {
		case rel.Side == SideLeft && b.TargetPosition.IsEqual(a.NewRange.Start):
			a.NewRange.End = moved.End
			a.NewRange.Start.Path = append([]int(nil), rel.Path...)
			return one(a)
		case rel.Side == SideRight && b.TargetPosition.IsEqual(a.NewRange.End):
			a.NewRange.Start = moved.Start
			a.NewRange.End.Path = append([]int(nil), rel.Path...)
			return one(a)
		}
	}
	r := model.JoinRanges(a.NewRange.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany, false))
	a.NewRange = &r
	return one(a)
}

func transformMarkerSplit(a *MarkerOperation, b *SplitOperation, ctx Context) []Operation {
	if a.OldRange != nil {
		r := rangeBySplit(*a.OldRange, b)
		a.OldRange = &r
	}
	if a.NewRange == nil {
		return one(a)
	}
	rel := ctx.ABRelation
	if rel == nil {
		r := rangeBySplit(*a.NewRange, b)
		a.NewRange = &r
		return one(a)
	}
	split := rangeBySplit(*a.NewRange, b)
	if a.NewRange.Start.IsEqual(b.SplitPosition) && rel.WasStartBeforeMergedElement {
		a.NewRange.Start = b.InsertionPosition.Clone()
	} else if a.NewRange.Start.IsEqual(b.SplitPosition) && !rel.WasInLeftElement {
		a.NewRange.Start = b.MoveTargetPosition()
	}
	switch {
	case a.NewRange.End.IsEqual(b.SplitPosition) && rel.WasInRightElement:
		a.NewRange.End = b.MoveTargetPosition()
	case a.NewRange.End.IsEqual(b.SplitPosition) && rel.WasEndBeforeMergedElement:
		a.NewRange.End = b.InsertionPosition.Clone()
	default:
		a.NewRange.End = split.End
	}
	return one(a)
}

// Merge.

func transformMergeInsert(a *MergeOperation, b *InsertOperation) []Operation {
	if a.SourcePosition.HasSameParentAs(b.Position) {
		a.HowMany += b.HowMany()
	}
	a.SourcePosition = a.SourcePosition.TransformedByInsertion(b.Position, b.HowMany())
	a.TargetPosition = a.TargetPosition.TransformedByInsertion(b.Position, b.HowMany())
	return one(a)
}

func transformMergeMerge(a, b *MergeOperation, ctx Context) []Operation {
	if a.SourcePosition.IsEqual(b.SourcePosition) && a.TargetPosition.IsEqual(b.TargetPosition) {
		// Same merge on both sides. Only an undone b leaves work to do: a
		// then merges the element b sent to the graveyard.
		if !ctx.BWasUndone {
			return noop()
		}
		path := append(append([]int(nil), b.GraveyardPosition.Path...), 0)
		a.SourcePosition = model.Position{Root: b.GraveyardPosition.Root, Path: path}
		a.HowMany = 0
		return one(a)
	}

	if a.SourcePosition.IsEqual(b.SourcePosition) && !a.TargetPosition.IsEqual(b.TargetPosition) &&
		!ctx.BWasUndone && !ctx.ABRelation.is(RelationSplitAtSource) {
		aToGraveyard := a.TargetPosition.Root == model.GraveyardRoot
		bToGraveyard := b.TargetPosition.Root == model.GraveyardRoot
		aIsWeak := aToGraveyard && !bToGraveyard
		bIsWeak := bToGraveyard && !aToGraveyard
		if bIsWeak || (!aIsWeak && ctx.AIsStrong) {
			source := positionByMerge(b.TargetPosition, b)
			target := positionByMerge(a.TargetPosition, b)
			return one(NewMoveOperation(source, a.HowMany, target, 0))
		}
		return noop()
	}

	if a.SourcePosition.HasSameParentAs(b.TargetPosition) {
		a.HowMany += b.HowMany
	}
	a.SourcePosition = positionByMerge(a.SourcePosition, b)
	a.TargetPosition = positionByMerge(a.TargetPosition, b)
	if !a.GraveyardPosition.IsEqual(b.GraveyardPosition) || !ctx.AIsStrong {
		a.GraveyardPosition = positionByMerge(a.GraveyardPosition, b)
	}
	return one(a)
}

func transformMergeMove(a *MergeOperation, b *MoveOperation, ctx Context) []Operation {
	// b moves the merge target element into the merged one. Both cannot
	// happen; the merge wins and b is reverted first.
	if moveTargetIntoMovedRangeOfMerge(a, b) {
		return []Operation{b.Reversed(), a}
	}
	removed := model.RangeFromShift(b.SourcePosition, b.HowMany)
	if b.Type() == TypeRemove && !ctx.BWasUndone && !ctx.ForceWeakRemove {
		if a.DeletionPosition().HasSameParentAs(b.SourcePosition) && removed.ContainsPosition(a.SourcePosition) {
			return noop()
		}
	}
	if a.SourcePosition.HasSameParentAs(b.TargetPosition) {
		a.HowMany += b.HowMany
	}
	if a.SourcePosition.HasSameParentAs(b.SourcePosition) {
		a.HowMany -= b.HowMany
	}
	a.SourcePosition = a.SourcePosition.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
	a.TargetPosition = a.TargetPosition.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
	if !a.GraveyardPosition.IsEqual(b.TargetPosition) {
		a.GraveyardPosition = a.GraveyardPosition.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
	}
	return one(a)
}

func transformMergeSplit(a *MergeOperation, b *SplitOperation, ctx Context) []Operation {
	if b.GraveyardPosition != nil {
		if gp, ok := a.GraveyardPosition.TransformedByDeletion(*b.GraveyardPosition, 1); ok {
			a.GraveyardPosition = gp
		}
		if a.DeletionPosition().IsEqual(*b.GraveyardPosition) {
			a.HowMany = b.HowMany
		}
	}

	if a.TargetPosition.IsEqual(b.SplitPosition) {
		mergeInside := b.HowMany != 0
		mergeSplittingElement := b.GraveyardPosition != nil && a.DeletionPosition().IsEqual(*b.GraveyardPosition)
		if mergeInside || mergeSplittingElement {
			source := positionBySplit(a.SourcePosition, b)
			target := positionBySplit(a.TargetPosition, b)
			return one(NewMoveOperation(source, a.HowMany, target, 0))
		}
	}

	if a.SourcePosition.IsEqual(b.SplitPosition) {
		if ctx.ABRelation.is(RelationMergeSourceNotMoved) {
			a.HowMany = 0
			a.TargetPosition = positionBySplit(a.TargetPosition, b)
			return one(a)
		}
		if ctx.ABRelation.is(RelationMergeSameElement) || a.SourcePosition.Offset() > 0 {
			a.SourcePosition = b.MoveTargetPosition()
			a.TargetPosition = positionBySplit(a.TargetPosition, b)
			return one(a)
		}
	}

	if a.SourcePosition.HasSameParentAs(b.SplitPosition) {
		a.HowMany = b.SplitPosition.Offset()
	}
	a.SourcePosition = positionBySplit(a.SourcePosition, b)
	a.TargetPosition = positionBySplit(a.TargetPosition, b)
	return one(a)
}

// Move.

func transformMoveInsert(a *MoveOperation, b *InsertOperation) []Operation {
	// An insert at the source would turn a no-op move into a real one.
	if a.keepsContentInPlace() {
		return noop()
	}
	moveRange := model.RangeFromShift(a.SourcePosition, a.HowMany)
	t := moveRange.TransformedByInsertion(b.Position, b.HowMany(), false)[0]
	a.SourcePosition = t.Start
	a.HowMany = t.End.Offset() - t.Start.Offset()
	if !a.TargetPosition.IsEqual(b.Position) {
		a.TargetPosition = a.TargetPosition.TransformedByInsertion(b.Position, b.HowMany())
	}
	return one(a)
}

// moveTargetIntoMovedRange reports whether a's target lies inside what b
// moves.
func moveTargetIntoMovedRange(a, b *MoveOperation) bool {
	_, ok := a.TargetPosition.TransformedByDeletion(b.SourcePosition, b.HowMany)
	return !ok
}

func transformMoveMove(a, b *MoveOperation, ctx Context) []Operation {
	rangeA := model.RangeFromShift(a.SourcePosition, a.HowMany)
	rangeB := model.RangeFromShift(b.SourcePosition, b.HowMany)
	aIsStrong := ctx.AIsStrong

	insertBefore := !ctx.AIsStrong
	switch {
	case ctx.ABRelation.is(RelationInsertBefore) || ctx.BARelation.is(RelationInsertAfter):
		insertBefore = true
	case ctx.ABRelation.is(RelationInsertAfter) || ctx.BARelation.is(RelationInsertBefore):
		insertBefore = false
	}

	var newTarget model.Position
	if a.TargetPosition.IsEqual(b.TargetPosition) && insertBefore {
		if t, ok := a.TargetPosition.TransformedByDeletion(b.SourcePosition, b.HowMany); ok {
			newTarget = t
		} else {
			newTarget = a.TargetPosition.Clone()
		}
	} else {
		newTarget = a.TargetPosition.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
	}

	// Each moves into the other: undo b, keep a's effect.
	if moveTargetIntoMovedRange(a, b) && moveTargetIntoMovedRange(b, a) {
		return one(b.Reversed())
	}

	// b reorders content inside rangeA: a still moves all of it.
	if rangeA.ContainsPosition(b.TargetPosition) && rangeA.ContainsRange(rangeB, true) {
		return makeMoveOperationsFromRanges([]model.Range{rangeAroundMove(rangeA, b)}, newTarget)
	}

	if rangeB.ContainsPosition(a.TargetPosition) && rangeB.ContainsRange(rangeA, true) {
		rangeA.Start = rangeA.Start.Combined(b.SourcePosition, b.MovedRangeStart())
		rangeA.End = rangeA.End.Combined(b.SourcePosition, b.MovedRangeStart())
		return makeMoveOperationsFromRanges([]model.Range{rangeA}, newTarget)
	}

	if rel, _ := model.ComparePaths(a.SourcePosition.ParentPath(), b.SourcePosition.ParentPath()); rel == model.PathPrefix || rel == model.PathExtension {
		rangeA.Start = rangeA.Start.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
		rangeA.End = rangeA.End.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
		return makeMoveOperationsFromRanges([]model.Range{rangeA}, newTarget)
	}

	// Removing wins over moving unless the remove was undone.
	if a.Type() == TypeRemove && b.Type() != TypeRemove && !ctx.AWasUndone && !ctx.ForceWeakRemove {
		aIsStrong = true
	} else if a.Type() != TypeRemove && b.Type() == TypeRemove && !ctx.BWasUndone && !ctx.ForceWeakRemove {
		aIsStrong = false
	}

	// Content b drops inside rangeA travels with a. Positions inside rangeA
	// follow a when transformed by it, so both sides agree.
	var ranges []model.Range
	movedStart := b.MovedRangeStart()
	for _, r := range rangeA.Difference(rangeB) {
		if s, ok := r.Start.TransformedByDeletion(b.SourcePosition, b.HowMany); ok {
			r.Start = s
		}
		if e, ok := r.End.TransformedByDeletion(b.SourcePosition, b.HowMany); ok {
			r.End = e
		}
		ranges = append(ranges, r.TransformedByInsertion(movedStart, b.HowMany, false)...)
	}

	if common, ok := rangeA.Intersection(rangeB); ok && aIsStrong {
		common.Start = common.Start.Combined(b.SourcePosition, movedStart)
		common.End = common.End.Combined(b.SourcePosition, movedStart)
		switch len(ranges) {
		case 0:
			ranges = append(ranges, common)
		case 1:
			if rangeB.Start.IsBefore(rangeA.Start) || rangeB.Start.IsEqual(rangeA.Start) {
				ranges = append([]model.Range{common}, ranges...)
			} else {
				ranges = append(ranges, common)
			}
		default:
			ranges = append(ranges[:1], append([]model.Range{common}, ranges[1:]...)...)
		}
	}

	if len(ranges) == 0 {
		return noop()
	}
	return makeMoveOperationsFromRanges(ranges, newTarget)
}

// rangeAroundMove returns r after b moved content from inside r to another
// place inside r. The boundaries keep hugging the same content.
func rangeAroundMove(r model.Range, b *MoveOperation) model.Range {
	start, ok := r.Start.TransformedByDeletion(b.SourcePosition, b.HowMany)
	if !ok {
		start = r.Start
	}
	end, ok := r.End.TransformedByDeletion(b.SourcePosition, b.HowMany)
	if !ok {
		end = r.End
	}
	movedStart := b.MovedRangeStart()
	start = start.WithStickiness(model.StickToPrevious).TransformedByInsertion(movedStart, b.HowMany)
	end = end.WithStickiness(model.StickToNext).TransformedByInsertion(movedStart, b.HowMany)
	return model.NewRange(start, end)
}

// makeMoveOperationsFromRanges moves every range to target in order, keeping
// later ranges and the target in step with earlier moves. Empty ranges and
// moves that leave their content in place are dropped; a NoOperation stands
// in when nothing is left.
func makeMoveOperationsFromRanges(ranges []model.Range, target model.Position) []Operation {
	ranges = append([]model.Range(nil), ranges...)
	ops := make([]Operation, 0, len(ranges))
	for i := 0; i < len(ranges); i++ {
		r := ranges[i]
		howMany := r.End.Offset() - r.Start.Offset()
		if !r.IsFlat() || howMany <= 0 {
			continue
		}
		op := NewMoveOperation(r.Start, howMany, target, 0)
		for j := i + 1; j < len(ranges); j++ {
			ranges[j] = ranges[j].TransformedByMove(op.SourcePosition, op.TargetPosition, op.HowMany, false)[0]
		}
		target = target.TransformedByMove(op.SourcePosition, op.TargetPosition, op.HowMany)
		if !op.keepsContentInPlace() {
			ops = append(ops, op)
		}
	}
	if len(ops) == 0 {
		return noop()
	}
	return ops
}

func transformMoveSplit(a *MoveOperation, b *SplitOperation, ctx Context) []Operation {
	newTarget := a.TargetPosition.Clone()
	if !a.TargetPosition.IsEqual(b.InsertionPosition) || b.GraveyardPosition == nil || ctx.ABRelation.is(RelationMoveTargetAfter) {
		newTarget = positionBySplit(a.TargetPosition, b)
	}

	moveRange := model.RangeFromShift(a.SourcePosition, a.HowMany)
	if moveRange.End.IsEqual(b.InsertionPosition) {
		if b.GraveyardPosition == nil {
			a.HowMany++
		}
		a.TargetPosition = newTarget
		return one(a)
	}

	if moveRange.Start.HasSameParentAs(b.SplitPosition) && moveRange.ContainsPosition(b.SplitPosition) {
		right := rangeBySplit(model.NewRange(b.SplitPosition, moveRange.End), b)
		ranges := []model.Range{model.NewRange(moveRange.Start, b.SplitPosition), right}
		return makeMoveOperationsFromRanges(ranges, newTarget)
	}

	if a.TargetPosition.IsEqual(b.SplitPosition) && ctx.ABRelation.is(RelationInsertAtSource) {
		newTarget = b.MoveTargetPosition()
	}
	if a.TargetPosition.IsEqual(b.InsertionPosition) && ctx.ABRelation.is(RelationInsertBetween) {
		newTarget = a.TargetPosition.Clone()
	}

	ranges := []model.Range{rangeBySplit(moveRange, b)}
	if b.GraveyardPosition != nil {
		movesGraveyardElement := moveRange.Start.IsEqual(*b.GraveyardPosition) || moveRange.ContainsPosition(*b.GraveyardPosition)
		if a.HowMany > 1 && movesGraveyardElement && !ctx.AWasUndone {
			ranges = append(ranges, model.RangeFromShift(b.InsertionPosition, 1))
		}
	}
	return makeMoveOperationsFromRanges(ranges, newTarget)
}

// moveTargetIntoMovedRangeOfMerge reports whether mv puts the element merge
// merges into inside the element merge empties.
func moveTargetIntoMovedRangeOfMerge(merge *MergeOperation, mv *MoveOperation) bool {
	if _, ok := merge.TargetPosition.TransformedByDeletion(mv.SourcePosition, mv.HowMany); ok {
		return false
	}
	merged := merge.MovedRange()
	return merged.ContainsPosition(mv.TargetPosition) || merged.Start.IsEqual(mv.TargetPosition)
}

func transformMoveMerge(a *MoveOperation, b *MergeOperation, ctx Context) []Operation {
	if moveTargetIntoMovedRangeOfMerge(b, a) {
		return noop()
	}
	movedRange := model.RangeFromShift(a.SourcePosition, a.HowMany)
	if b.DeletionPosition().HasSameParentAs(a.SourcePosition) && movedRange.ContainsPosition(b.SourcePosition) {
		if a.Type() == TypeRemove && !ctx.ForceWeakRemove {
			// a removes the merged element together with its neighbours.
			// Remove the merge target element too, after pulling the merged
			// content back out of it.
			if !ctx.AWasUndone {
				var results []Operation
				gySource := b.GraveyardPosition.Clone()
				splitSource := positionByMerge(b.TargetPosition, b)
				if a.HowMany > 1 {
					results = append(results, NewMoveOperation(a.SourcePosition, a.HowMany-1, a.TargetPosition, 0))
					gySource = gySource.TransformedByMove(a.SourcePosition, a.TargetPosition, a.HowMany-1)
					splitSource = splitSource.TransformedByMove(a.SourcePosition, a.TargetPosition, a.HowMany-1)
				}
				gyTarget := b.DeletionPosition().Combined(a.SourcePosition, a.TargetPosition)
				gyMove := NewMoveOperation(gySource, 1, gyTarget, 0)
				splitTarget := gyMove.MovedRangeStart().ChildPosition(0)
				splitSource = splitSource.TransformedByMove(gySource, gyTarget, 1)
				splitMove := NewMoveOperation(splitSource, b.HowMany, splitTarget, 0)
				return append(results, gyMove, splitMove)
			}
		} else if a.HowMany == 1 {
			if !ctx.BWasUndone {
				return noop()
			}
			a.SourcePosition = b.GraveyardPosition.Clone()
			a.TargetPosition = positionByMerge(a.TargetPosition, b)
			return one(a)
		}
	}

	t := rangeByMerge(model.RangeFromShift(a.SourcePosition, a.HowMany), b)
	a.SourcePosition = t.Start
	a.HowMany = t.End.Offset() - t.Start.Offset()
	a.TargetPosition = positionByMerge(a.TargetPosition, b)
	return one(a)
}

// Rename.

func transformRenameMerge(a *RenameOperation, b *MergeOperation) []Operation {
	if a.Position.IsEqual(b.DeletionPosition()) {
		a.Position = b.GraveyardPosition.WithStickiness(model.StickToNext)
		return one(a)
	}
	a.Position = positionByMerge(a.Position, b)
	return one(a)
}

func transformRenameRename(a, b *RenameOperation, ctx Context) []Operation {
	if !a.Position.IsEqual(b.Position) {
		return one(a)
	}
	if !ctx.AIsStrong {
		return noop()
	}
	a.OldName = b.NewName
	return one(a)
}

func transformRenameSplit(a *RenameOperation, b *SplitOperation) []Operation {
	// Splitting the renamed element creates a copy that must be renamed too.
	if rel, _ := model.ComparePaths(a.Position.Path, b.SplitPosition.ParentPath()); rel == model.PathSame && b.GraveyardPosition == nil {
		extra := NewRenameOperation(a.Position.ShiftedBy(1), a.OldName, a.NewName, 0)
		return []Operation{a, extra}
	}
	a.Position = positionBySplit(a.Position, b)
	return one(a)
}

// RootAttribute.

func transformRootAttributeRootAttribute(a, b *RootAttributeOperation, ctx Context) []Operation {
	if a.Root != b.Root || a.Key != b.Key {
		return one(a)
	}
	if !ctx.AIsStrong || a.NewValue.Equal(b.NewValue) {
		return noop()
	}
	a.OldValue = b.NewValue
	return one(a)
}

// Split.

func transformSplitInsert(a *SplitOperation, b *InsertOperation) []Operation {
	if a.SplitPosition.HasSameParentAs(b.Position) && a.SplitPosition.Offset() < b.Position.Offset() {
		a.HowMany += b.HowMany()
	}
	a.SplitPosition = a.SplitPosition.TransformedByInsertion(b.Position, b.HowMany())
	a.InsertionPosition = a.InsertionPosition.TransformedByInsertion(b.Position, b.HowMany())
	return one(a)
}

func transformSplitMerge(a *SplitOperation, b *MergeOperation, ctx Context) []Operation {
	// The element a splits was merged away by b. Recreate it with an empty
	// split of the merged element in the graveyard so that a can reuse it.
	if a.GraveyardPosition == nil && !ctx.BWasUndone && a.SplitPosition.HasSameParentAs(b.SourcePosition) {
		splitPath := append(append([]int(nil), b.GraveyardPosition.Path...), 0)
		splitPos := model.Position{Root: b.GraveyardPosition.Root, Path: splitPath}
		additional := NewSplitOperation(splitPos, 0, SplitInsertionPosition(splitPos), nil, 0)

		a.SplitPosition = positionByMerge(a.SplitPosition, b)
		a.InsertionPosition = SplitInsertionPosition(a.SplitPosition)
		gp := additional.InsertionPosition.WithStickiness(model.StickToNext)
		a.GraveyardPosition = &gp
		return []Operation{additional, a}
	}

	if a.SplitPosition.HasSameParentAs(b.DeletionPosition()) && !a.SplitPosition.IsAfter(b.DeletionPosition()) {
		a.HowMany--
	}
	if a.SplitPosition.HasSameParentAs(b.TargetPosition) {
		a.HowMany += b.HowMany
	}
	a.SplitPosition = positionByMerge(a.SplitPosition, b)
	a.InsertionPosition = SplitInsertionPosition(a.SplitPosition)
	if a.GraveyardPosition != nil {
		gp := positionByMerge(*a.GraveyardPosition, b)
		a.GraveyardPosition = &gp
	}
	return one(a)
}

func transformSplitMove(a *SplitOperation, b *MoveOperation, ctx Context) []Operation {
	rangeToMove := model.RangeFromShift(b.SourcePosition, b.HowMany)

	if a.GraveyardPosition != nil {
		// b took the element a wanted to reuse; move the split content there
		// instead.
		gyMoved := rangeToMove.Start.IsEqual(*a.GraveyardPosition) || rangeToMove.ContainsPosition(*a.GraveyardPosition)
		if !ctx.BWasUndone && gyMoved {
			source := a.SplitPosition.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
			newParent := a.GraveyardPosition.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
			return one(NewMoveOperation(source, a.HowMany, newParent.ChildPosition(0), 0))
		}
		gp := a.GraveyardPosition.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
		a.GraveyardPosition = &gp
	}

	splitAtTarget := a.SplitPosition.IsEqual(b.TargetPosition)
	if splitAtTarget && (ctx.BARelation.is(RelationInsertAtSource) || ctx.ABRelation.is(RelationSplitBefore)) {
		a.HowMany += b.HowMany
		if sp, ok := a.SplitPosition.TransformedByDeletion(b.SourcePosition, b.HowMany); ok {
			a.SplitPosition = sp
		}
		a.InsertionPosition = SplitInsertionPosition(a.SplitPosition)
		return one(a)
	}
	if rel := ctx.ABRelation; splitAtTarget && rel.is(RelationSplitInsideMove) && rel.HowMany != 0 {
		a.HowMany += rel.HowMany
		a.SplitPosition = a.SplitPosition.ShiftedBy(rel.Offset)
		return one(a)
	}

	if a.SplitPosition.HasSameParentAs(b.SourcePosition) && rangeToMove.ContainsPosition(a.SplitPosition) {
		removed := b.HowMany - (a.SplitPosition.Offset() - b.SourcePosition.Offset())
		a.HowMany -= removed
		if a.SplitPosition.HasSameParentAs(b.TargetPosition) && a.SplitPosition.Offset() < b.TargetPosition.Offset() {
			a.HowMany += b.HowMany
		}
		a.SplitPosition = b.SourcePosition.Clone()
		a.InsertionPosition = SplitInsertionPosition(a.SplitPosition)
		return one(a)
	}

	if !b.SourcePosition.IsEqual(b.TargetPosition) {
		if a.SplitPosition.HasSameParentAs(b.SourcePosition) && a.SplitPosition.Offset() <= b.SourcePosition.Offset() {
			a.HowMany -= b.HowMany
		}
		if a.SplitPosition.HasSameParentAs(b.TargetPosition) && a.SplitPosition.Offset() < b.TargetPosition.Offset() {
			a.HowMany += b.HowMany
		}
	}

	sp := a.SplitPosition.WithStickiness(model.StickToNone).TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
	sp.Stickiness = model.StickToNext
	a.SplitPosition = sp
	if a.GraveyardPosition != nil {
		a.InsertionPosition = a.InsertionPosition.TransformedByMove(b.SourcePosition, b.TargetPosition, b.HowMany)
	} else {
		a.InsertionPosition = SplitInsertionPosition(a.SplitPosition)
	}
	return one(a)
}

func transformSplitSplit(a, b *SplitOperation, ctx Context) []Operation {
	if a.SplitPosition.IsEqual(b.SplitPosition) {
		if a.GraveyardPosition == nil && b.GraveyardPosition == nil {
			return noop()
		}
		if a.GraveyardPosition != nil && b.GraveyardPosition != nil && a.GraveyardPosition.IsEqual(*b.GraveyardPosition) {
			return noop()
		}
		if ctx.ABRelation.is(RelationSplitBefore) {
			a.HowMany = 0
			if a.GraveyardPosition != nil {
				gp := positionBySplit(*a.GraveyardPosition, b)
				a.GraveyardPosition = &gp
			}
			return one(a)
		}
	}

	// Both reuse the same graveyard element: only one of them can.
	if a.GraveyardPosition != nil && b.GraveyardPosition != nil && a.GraveyardPosition.IsEqual(*b.GraveyardPosition) {
		aInGraveyard := a.SplitPosition.Root == model.GraveyardRoot
		bInGraveyard := b.SplitPosition.Root == model.GraveyardRoot
		aIsWeak := aInGraveyard && !bInGraveyard
		bIsWeak := bInGraveyard && !aInGraveyard
		if bIsWeak || (!aIsWeak && ctx.AIsStrong) {
			var out []Operation
			if b.HowMany != 0 {
				out = append(out, NewMoveOperation(b.MoveTargetPosition(), b.HowMany, b.SplitPosition, 0))
			}
			if a.HowMany != 0 {
				out = append(out, NewMoveOperation(a.SplitPosition, a.HowMany, a.MoveTargetPosition(), 0))
			}
			return out
		}
		return noop()
	}

	if a.GraveyardPosition != nil {
		gp := positionBySplit(*a.GraveyardPosition, b)
		a.GraveyardPosition = &gp
	}

	if a.SplitPosition.IsEqual(b.InsertionPosition) && ctx.ABRelation.is(RelationSplitBefore) {
		a.HowMany++
		return one(a)
	}
	if b.SplitPosition.IsEqual(a.InsertionPosition) && ctx.BARelation.is(RelationSplitBefore) {
		newParentPosition := b.InsertionPosition.ChildPosition(0)
		mv := NewMoveOperation(a.InsertionPosition, 1, newParentPosition, 0)
		return []Operation{a, mv}
	}

	if a.SplitPosition.HasSameParentAs(b.SplitPosition) && a.SplitPosition.Offset() < b.SplitPosition.Offset() {
		a.HowMany -= b.HowMany
	}
	a.SplitPosition = positionBySplit(a.SplitPosition, b)
	a.InsertionPosition = SplitInsertionPosition(a.SplitPosition)
	return one(a)
}
