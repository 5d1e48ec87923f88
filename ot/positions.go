package ot

import "github.com/alimasry/go-collab-tree/model"

// TransformPosition returns p as it is after op was applied.
func TransformPosition(p model.Position, op Operation) model.Position {
	switch o := op.(type) {
	case *InsertOperation:
		return p.TransformedByInsertion(o.Position, o.HowMany())
	case *MoveOperation:
		return p.TransformedByMove(o.SourcePosition, o.TargetPosition, o.HowMany)
	case *SplitOperation:
		return positionBySplit(p, o)
	case *MergeOperation:
		return positionByMerge(p, o)
	}
	return p.Clone()
}

func positionBySplit(p model.Position, op *SplitOperation) model.Position {
	moved := op.MovedRange()
	if moved.ContainsPosition(p) || (moved.Start.IsEqual(p) && p.Stickiness == model.StickToNext) {
		return p.Combined(op.SplitPosition, op.MoveTargetPosition())
	}
	if op.GraveyardPosition != nil {
		return p.TransformedByMove(*op.GraveyardPosition, op.InsertionPosition, 1)
	}
	return p.TransformedByInsertion(op.InsertionPosition, 1)
}

func positionByMerge(p model.Position, op *MergeOperation) model.Position {
	moved := op.MovedRange()
	deletion := op.DeletionPosition()
	if moved.ContainsPosition(p) || moved.Start.IsEqual(p) {
		pos := p.Combined(op.SourcePosition, op.TargetPosition)
		if op.SourcePosition.IsBefore(op.TargetPosition) {
			if t, ok := pos.TransformedByDeletion(deletion, 1); ok {
				pos = t
			}
		}
		return pos
	}
	if p.IsEqual(deletion) {
		return deletion
	}
	return p.TransformedByMove(deletion, op.GraveyardPosition, 1)
}

// TransformRange returns r as it is after op was applied. Moves may break r
// into several ranges.
func TransformRange(r model.Range, op Operation) []model.Range {
	switch o := op.(type) {
	case *InsertOperation:
		return r.TransformedByInsertion(o.Position, o.HowMany(), false)
	case *MoveOperation:
		return r.TransformedByMove(o.SourcePosition, o.TargetPosition, o.HowMany, false)
	case *SplitOperation:
		return []model.Range{rangeBySplit(r, o)}
	case *MergeOperation:
		return []model.Range{rangeByMerge(r, o)}
	}
	return []model.Range{model.NewRange(r.Start, r.End)}
}

// TransformRangeByOperations transforms r by ops in order. Pieces that end
// up inside another piece are dropped: they were moved into it.
func TransformRangeByOperations(r model.Range, ops []Operation) []model.Range {
	ranges := []model.Range{r.Clone()}
	for _, op := range ops {
		var next []model.Range
		for _, cur := range ranges {
			next = append(next, TransformRange(cur, op)...)
		}
		ranges = next
	}
	for i := 0; i < len(ranges); i++ {
		for j := i + 1; j < len(ranges); j++ {
			a, b := ranges[i], ranges[j]
			if a.ContainsRange(b, false) || b.ContainsRange(a, false) || a.IsEqual(b) {
				ranges = append(ranges[:j], ranges[j+1:]...)
				j--
			}
		}
	}
	return ranges
}

func rangeBySplit(r model.Range, op *SplitOperation) model.Range {
	start := positionBySplit(r.Start, op)
	end := positionBySplit(r.End, op)
	if r.End.IsEqual(op.InsertionPosition) {
		end = r.End.ShiftedBy(1)
	}
	if start.Root != end.Root {
		end = r.End.ShiftedBy(-1)
	}
	return model.NewRange(start, end)
}

func rangeByMerge(r model.Range, op *MergeOperation) model.Range {
	deletion := op.DeletionPosition()
	if r.Start.IsEqual(op.TargetPosition) && r.End.IsEqual(deletion) {
		return model.NewRange(r.Start, r.Start)
	}
	start := positionByMerge(r.Start, op)
	end := positionByMerge(r.End, op)
	if start.Root != end.Root {
		end = r.End.ShiftedBy(-1)
	}
	if start.IsAfter(end) {
		if op.SourcePosition.IsBefore(op.TargetPosition) {
			// Merged element was before the range end; end landed inside it.
			start = end.WithOffset(0)
		} else {
			if !deletion.IsEqual(start) {
				end = deletion
			}
			start = op.TargetPosition.Clone()
		}
	}
	return model.NewRange(start, end)
}
