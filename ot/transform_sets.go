package ot

import "github.com/alimasry/go-collab-tree/model"

// TransformOptions configures TransformSets.
type TransformOptions struct {
	// Document supplies undo history; it may be nil.
	Document *Document

	// UseRelations turns on the hints that make undo restore content in
	// place. Only undo needs them.
	UseRelations bool

	// PadWithNoOps appends NoOperations so that both sides advance the
	// version by the same amount. Collaboration needs it.
	PadWithNoOps bool

	// ForceWeakRemove makes removals lose against moves.
	ForceWeakRemove bool
}

// TransformResult holds both transformed lists and, for every operation in
// them, the operation of the input it came from.
type TransformResult struct {
	OperationsA        []Operation
	OperationsB        []Operation
	OriginalOperations map[Operation]Operation
}

// TransformSets transforms two lists of concurrent operations against each
// other. Operations in A are strong and win ties. Applying B then the
// returned A gives the same tree as applying A then the returned B.
//
// Returned A operations get base versions starting after the last input B
// operation and vice versa. Input lists are not modified.
func TransformSets(operationsA, operationsB []Operation, opts TransformOptions) TransformResult {
	opsA := append([]Operation(nil), operationsA...)
	opsB := append([]Operation(nil), operationsB...)

	cf := newContextFactory(opts)
	cf.setOriginalOperations(opsA, nil)
	cf.setOriginalOperations(opsB, nil)

	if len(opsA) == 0 || len(opsB) == 0 {
		return TransformResult{OperationsA: opsA, OperationsB: opsB, OriginalOperations: cf.original}
	}

	nextBaseVersionA := opsA[len(opsA)-1].BaseVersion() + 1
	nextBaseVersionB := opsB[len(opsB)-1].BaseVersion() + 1
	originalCountA, originalCountB := len(opsA), len(opsB)

	// nextIndex[op] is the first B operation op was not transformed by yet.
	nextIndex := make(map[Operation]int, len(opsA))
	for _, op := range opsA {
		nextIndex[op] = 0
	}

	for i := 0; i < len(opsA); {
		opA := opsA[i]
		indexB := nextIndex[opA]
		if indexB == len(opsB) {
			i++
			continue
		}
		opB := opsB[indexB]

		newOpsA := Transform(opA, opB, cf.context(opA, opB, true))
		newOpsB := Transform(opB, opA, cf.context(opB, opA, false))

		cf.updateRelation(opA, opB)
		cf.setOriginalOperations(newOpsA, opA)
		cf.setOriginalOperations(newOpsB, opB)

		for _, op := range newOpsA {
			nextIndex[op] = indexB + len(newOpsB)
		}
		opsA = splice(opsA, i, newOpsA)
		opsB = splice(opsB, indexB, newOpsB)
	}

	if opts.PadWithNoOps {
		brokenA := len(opsA) - originalCountA
		brokenB := len(opsB) - originalCountB
		opsA = padWithNoOps(opsA, brokenB-brokenA)
		opsB = padWithNoOps(opsB, brokenA-brokenB)
	}

	updateBaseVersions(opsA, nextBaseVersionB)
	updateBaseVersions(opsB, nextBaseVersionA)

	return TransformResult{OperationsA: opsA, OperationsB: opsB, OriginalOperations: cf.original}
}

// splice replaces ops[i] with repl.
func splice(ops []Operation, i int, repl []Operation) []Operation {
	out := make([]Operation, 0, len(ops)-1+len(repl))
	out = append(out, ops[:i]...)
	out = append(out, repl...)
	return append(out, ops[i+1:]...)
}

func padWithNoOps(ops []Operation, howMany int) []Operation {
	for i := 0; i < howMany; i++ {
		ops = append(ops, NewNoOperation(0))
	}
	return ops
}

func updateBaseVersions(ops []Operation, baseVersion int) {
	for i, op := range ops {
		op.SetBaseVersion(baseVersion + i)
	}
}

// contextFactory tracks where every transformed operation came from and the
// relations observed between originals during one TransformSets call.
type contextFactory struct {
	history         *History
	useRelations    bool
	forceWeakRemove bool
	original        map[Operation]Operation
	relations       map[Operation]map[Operation]*Relation
}

func newContextFactory(opts TransformOptions) *contextFactory {
	cf := &contextFactory{
		useRelations:    opts.UseRelations,
		forceWeakRemove: opts.ForceWeakRemove,
		original:        make(map[Operation]Operation),
		relations:       make(map[Operation]map[Operation]*Relation),
	}
	if opts.Document != nil {
		cf.history = opts.Document.History()
	}
	return cf
}

// setOriginalOperations maps ops to the original of takeFrom, or to
// themselves when takeFrom is nil.
func (cf *contextFactory) setOriginalOperations(ops []Operation, takeFrom Operation) {
	var orig Operation
	if takeFrom != nil {
		orig = cf.original[takeFrom]
	}
	for _, op := range ops {
		if orig != nil {
			cf.original[op] = orig
		} else {
			cf.original[op] = op
		}
	}
}

func (cf *contextFactory) context(opA, opB Operation, aIsStrong bool) Context {
	ctx := Context{
		AIsStrong:       aIsStrong,
		AWasUndone:      cf.wasUndone(opA),
		BWasUndone:      cf.wasUndone(opB),
		ForceWeakRemove: cf.forceWeakRemove,
	}
	if cf.useRelations {
		ctx.ABRelation = cf.relation(opA, opB)
		ctx.BARelation = cf.relation(opB, opA)
	}
	return ctx
}

func (cf *contextFactory) wasUndone(op Operation) bool {
	orig := cf.original[op]
	if orig.WasUndone() {
		return true
	}
	return cf.history != nil && cf.history.IsUndoneOperation(orig)
}

// relation returns what was recorded between opA and the operation that
// opB undid, if any.
func (cf *contextFactory) relation(opA, opB Operation) *Relation {
	if cf.history == nil {
		return nil
	}
	undoneB := cf.history.UndoneOperation(cf.original[opB])
	if undoneB == nil {
		return nil
	}
	if rels, ok := cf.relations[cf.original[opA]]; ok {
		return rels[undoneB]
	}
	return nil
}

func (cf *contextFactory) setRelation(opA, opB Operation, rel *Relation) {
	origA, origB := cf.original[opA], cf.original[opB]
	rels, ok := cf.relations[origA]
	if !ok {
		rels = make(map[Operation]*Relation)
		cf.relations[origA] = rels
	}
	rels[origB] = rel
}

func (cf *contextFactory) updateRelation(opA, opB Operation) {
	switch a := opA.(type) {
	case *MoveOperation:
		switch b := opB.(type) {
		case *MergeOperation:
			switch {
			case a.TargetPosition.IsEqual(b.SourcePosition) || b.MovedRange().ContainsPosition(a.TargetPosition):
				cf.setRelation(a, b, &Relation{Kind: RelationInsertAtSource})
			case a.TargetPosition.IsEqual(b.DeletionPosition()):
				cf.setRelation(a, b, &Relation{Kind: RelationInsertBetween})
			case a.TargetPosition.IsAfter(b.SourcePosition):
				cf.setRelation(a, b, &Relation{Kind: RelationMoveTargetAfter})
			}
		case *MoveOperation:
			if a.TargetPosition.IsEqual(b.SourcePosition) || a.TargetPosition.IsBefore(b.SourcePosition) {
				cf.setRelation(a, b, &Relation{Kind: RelationInsertBefore})
			} else {
				cf.setRelation(a, b, &Relation{Kind: RelationInsertAfter})
			}
		}

	case *SplitOperation:
		switch b := opB.(type) {
		case *MergeOperation:
			if a.SplitPosition.IsBefore(b.SourcePosition) {
				cf.setRelation(a, b, &Relation{Kind: RelationSplitBefore})
			}
		case *MoveOperation:
			if a.SplitPosition.IsEqual(b.SourcePosition) || a.SplitPosition.IsBefore(b.SourcePosition) {
				cf.setRelation(a, b, &Relation{Kind: RelationSplitBefore})
				return
			}
			r := model.RangeFromShift(b.SourcePosition, b.HowMany)
			if a.SplitPosition.HasSameParentAs(b.SourcePosition) && r.ContainsPosition(a.SplitPosition) {
				cf.setRelation(a, b, &Relation{
					Kind:    RelationSplitInsideMove,
					HowMany: r.End.Offset() - a.SplitPosition.Offset(),
					Offset:  a.SplitPosition.Offset() - r.Start.Offset(),
				})
			}
		}

	case *MergeOperation:
		switch b := opB.(type) {
		case *MergeOperation:
			if !a.TargetPosition.IsEqual(b.SourcePosition) {
				cf.setRelation(a, b, &Relation{Kind: RelationMergeTargetNotMoved})
			}
			if a.SourcePosition.IsEqual(b.TargetPosition) {
				cf.setRelation(a, b, &Relation{Kind: RelationMergeSourceNotMoved})
			}
			if a.SourcePosition.IsEqual(b.SourcePosition) {
				cf.setRelation(a, b, &Relation{Kind: RelationMergeSameElement})
			}
		case *SplitOperation:
			if a.SourcePosition.IsEqual(b.SplitPosition) {
				cf.setRelation(a, b, &Relation{Kind: RelationSplitAtSource})
			}
		}

	case *MarkerOperation:
		if a.NewRange == nil {
			return
		}
		mr := *a.NewRange
		switch b := opB.(type) {
		case *MoveOperation:
			moved := model.RangeFromShift(b.SourcePosition, b.HowMany)
			affectedLeft := moved.ContainsPosition(mr.Start) || moved.Start.IsEqual(mr.Start)
			affectedRight := moved.ContainsPosition(mr.End) || moved.End.IsEqual(mr.End)
			if (affectedLeft || affectedRight) && !moved.ContainsRange(mr, false) {
				rel := &Relation{Kind: RelationMarkerBoundary}
				if affectedLeft {
					rel.Side = SideLeft
					rel.Path = append([]int(nil), mr.Start.Path...)
				} else {
					rel.Side = SideRight
					rel.Path = append([]int(nil), mr.End.Path...)
				}
				cf.setRelation(a, b, rel)
			}
		case *MergeOperation:
			rel := &Relation{
				Kind:                        RelationMarkerMerge,
				WasInLeftElement:            mr.Start.IsEqual(b.TargetPosition),
				WasStartBeforeMergedElement: mr.Start.IsEqual(b.DeletionPosition()),
				WasEndBeforeMergedElement:   mr.End.IsEqual(b.DeletionPosition()),
				WasInRightElement:           mr.End.IsEqual(b.SourcePosition),
			}
			if rel.WasInLeftElement || rel.WasStartBeforeMergedElement || rel.WasEndBeforeMergedElement || rel.WasInRightElement {
				cf.setRelation(a, b, rel)
			}
		}
	}
}
