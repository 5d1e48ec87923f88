package ot

import (
	"fmt"

	"github.com/alimasry/go-collab-tree/model"
)

// Kind is the closed set of operation kinds. Every pair of kinds has a rule
// in Transform.
type Kind uint8

const (
	KindNoOp Kind = iota
	KindInsert
	KindMove
	KindSplit
	KindMerge
	KindRename
	KindAttribute
	KindRootAttribute
	KindMarker
	KindRoot
)

// Kinds lists every operation kind.
var Kinds = []Kind{
	KindNoOp, KindInsert, KindMove, KindSplit, KindMerge,
	KindRename, KindAttribute, KindRootAttribute, KindMarker, KindRoot,
}

func (k Kind) String() string {
	switch k {
	case KindNoOp:
		return "noop"
	case KindInsert:
		return "insert"
	case KindMove:
		return "move"
	case KindSplit:
		return "split"
	case KindMerge:
		return "merge"
	case KindRename:
		return "rename"
	case KindAttribute:
		return "attribute"
	case KindRootAttribute:
		return "rootAttribute"
	case KindMarker:
		return "marker"
	case KindRoot:
		return "root"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Wire and change types. A move is a "remove" when it targets the graveyard
// and a "reinsert" when it comes from there.
const (
	TypeNoOp          = "noop"
	TypeInsert        = "insert"
	TypeMove          = "move"
	TypeRemove        = "remove"
	TypeReinsert      = "reinsert"
	TypeSplit         = "split"
	TypeMerge         = "merge"
	TypeRename        = "rename"
	TypeAttribute     = "attribute"
	TypeRootAttribute = "rootAttribute"
	TypeMarker        = "marker"
	TypeAddRoot       = "addRoot"
	TypeDetachRoot    = "detachRoot"
)

// Operation is an atomic, invertible change produced against BaseVersion.
// The set of implementations is closed to this package.
type Operation interface {
	Kind() Kind
	Type() string
	BaseVersion() int
	SetBaseVersion(v int)

	// WasUndone is carried over the wire so remote replicas know the
	// operation was undone at its origin.
	WasUndone() bool
	SetWasUndone(undone bool)

	// Clone returns a deep copy; the WasUndone flag is not copied.
	Clone() Operation

	// Reversed returns the operation that undoes this one on the tree it
	// produced.
	Reversed() Operation

	validate(t *model.Tree) error
	execute(d *Document) (model.Range, error)
}

type opBase struct {
	baseVersion int
	wasUndone   bool
}

func (b *opBase) BaseVersion() int         { return b.baseVersion }
func (b *opBase) SetBaseVersion(v int)     { b.baseVersion = v }
func (b *opBase) WasUndone() bool          { return b.wasUndone }
func (b *opBase) SetWasUndone(undone bool) { b.wasUndone = undone }

func graveyardStart() model.Position {
	return model.NewPosition(model.GraveyardRoot, 0)
}

func cloneNodes(nodes []*model.Node) []*model.Node {
	out := make([]*model.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func clonePositionPtr(p *model.Position) *model.Position {
	if p == nil {
		return nil
	}
	c := p.Clone()
	return &c
}

func cloneRangePtr(r *model.Range) *model.Range {
	if r == nil {
		return nil
	}
	c := r.Clone()
	return &c
}

// InsertOperation inserts nodes at Position.
type InsertOperation struct {
	opBase
	Position model.Position
	Nodes    []*model.Node

	// ShouldReceiveAttributes makes the inserted nodes pick up attributes
	// set concurrently on a range around them.
	ShouldReceiveAttributes bool
}

func NewInsertOperation(pos model.Position, nodes []*model.Node, baseVersion int) *InsertOperation {
	return &InsertOperation{
		opBase:   opBase{baseVersion: baseVersion},
		Position: pos.WithStickiness(model.StickToNone),
		Nodes:    cloneNodes(nodes),
	}
}

func (op *InsertOperation) Kind() Kind   { return KindInsert }
func (op *InsertOperation) Type() string { return TypeInsert }

// HowMany is the number of offsets the inserted nodes occupy.
func (op *InsertOperation) HowMany() int { return model.NodesSize(op.Nodes) }

func (op *InsertOperation) Clone() Operation {
	c := NewInsertOperation(op.Position, op.Nodes, op.baseVersion)
	c.ShouldReceiveAttributes = op.ShouldReceiveAttributes
	return c
}

func (op *InsertOperation) Reversed() Operation {
	return NewMoveOperation(op.Position, op.HowMany(), graveyardStart(), op.baseVersion+1)
}

// MoveOperation moves HowMany offsets starting at SourcePosition to
// TargetPosition. TargetPosition is expressed before the move.
type MoveOperation struct {
	opBase
	SourcePosition model.Position
	HowMany        int
	TargetPosition model.Position
}

func NewMoveOperation(source model.Position, howMany int, target model.Position, baseVersion int) *MoveOperation {
	return &MoveOperation{
		opBase:         opBase{baseVersion: baseVersion},
		SourcePosition: source.WithStickiness(model.StickToNext),
		HowMany:        howMany,
		TargetPosition: target.WithStickiness(model.StickToNone),
	}
}

func (op *MoveOperation) Kind() Kind { return KindMove }

func (op *MoveOperation) Type() string {
	switch {
	case op.TargetPosition.Root == model.GraveyardRoot:
		return TypeRemove
	case op.SourcePosition.Root == model.GraveyardRoot:
		return TypeReinsert
	}
	return TypeMove
}

// MovedRangeStart is where the moved content starts after the move.
func (op *MoveOperation) MovedRangeStart() model.Position {
	p, ok := op.TargetPosition.TransformedByDeletion(op.SourcePosition, op.HowMany)
	if !ok {
		return op.TargetPosition.Clone()
	}
	return p
}

// keepsContentInPlace reports whether applying op changes nothing: it moves
// no offsets, or moves them right where they already are.
func (op *MoveOperation) keepsContentInPlace() bool {
	if op.HowMany <= 0 {
		return true
	}
	return op.SourcePosition.Root == op.TargetPosition.Root && op.MovedRangeStart().IsEqual(op.SourcePosition)
}

func (op *MoveOperation) Clone() Operation {
	return NewMoveOperation(op.SourcePosition, op.HowMany, op.TargetPosition, op.baseVersion)
}

func (op *MoveOperation) Reversed() Operation {
	target := op.SourcePosition.TransformedByInsertion(op.TargetPosition, op.HowMany)
	return NewMoveOperation(op.MovedRangeStart(), op.HowMany, target, op.baseVersion+1)
}

// SplitOperation splits the parent of SplitPosition: the HowMany offsets
// after it move into a new sibling element created at InsertionPosition.
// When GraveyardPosition is set, the element found there is reused instead
// of a fresh copy.
type SplitOperation struct {
	opBase
	SplitPosition     model.Position
	HowMany           int
	InsertionPosition model.Position
	GraveyardPosition *model.Position
}

// NewSplitOperation makes the split position stick to the next offset and
// keeps the stickiness of insertion as given. Pass SplitInsertionPosition
// for a plain split.
func NewSplitOperation(split model.Position, howMany int, insertion model.Position, graveyard *model.Position, baseVersion int) *SplitOperation {
	op := &SplitOperation{
		opBase:            opBase{baseVersion: baseVersion},
		SplitPosition:     split.WithStickiness(model.StickToNext),
		HowMany:           howMany,
		InsertionPosition: insertion.Clone(),
	}
	if graveyard != nil {
		gp := graveyard.WithStickiness(model.StickToNext)
		op.GraveyardPosition = &gp
	}
	return op
}

// SplitInsertionPosition is the default place of the new element: right
// after the element being split.
func SplitInsertionPosition(split model.Position) model.Position {
	path := split.ParentPath()
	path[len(path)-1]++
	return model.Position{Root: split.Root, Path: path, Stickiness: model.StickToPrevious}
}

func (op *SplitOperation) Kind() Kind   { return KindSplit }
func (op *SplitOperation) Type() string { return TypeSplit }

// MoveTargetPosition is the start of the new element.
func (op *SplitOperation) MoveTargetPosition() model.Position {
	return op.InsertionPosition.ChildPosition(0).WithStickiness(model.StickToNone)
}

// MovedRange spans everything after the split position.
func (op *SplitOperation) MovedRange() model.Range {
	return model.NewRange(op.SplitPosition, op.SplitPosition.WithOffset(model.InfiniteOffset))
}

func (op *SplitOperation) Clone() Operation {
	return NewSplitOperation(op.SplitPosition, op.HowMany, op.InsertionPosition, op.GraveyardPosition, op.baseVersion)
}

func (op *SplitOperation) Reversed() Operation {
	gy := graveyardStart()
	return NewMergeOperation(op.MoveTargetPosition(), op.HowMany, op.SplitPosition, gy, op.baseVersion+1)
}

// MergeOperation moves the whole content of the element containing
// SourcePosition to TargetPosition and then moves the emptied element to
// GraveyardPosition.
type MergeOperation struct {
	opBase
	SourcePosition    model.Position
	HowMany           int
	TargetPosition    model.Position
	GraveyardPosition model.Position
}

func NewMergeOperation(source model.Position, howMany int, target, graveyard model.Position, baseVersion int) *MergeOperation {
	return &MergeOperation{
		opBase:            opBase{baseVersion: baseVersion},
		SourcePosition:    source.WithStickiness(model.StickToPrevious),
		HowMany:           howMany,
		TargetPosition:    target.WithStickiness(model.StickToNext),
		GraveyardPosition: graveyard.Clone(),
	}
}

func (op *MergeOperation) Kind() Kind   { return KindMerge }
func (op *MergeOperation) Type() string { return TypeMerge }

// DeletionPosition is the position before the merged element.
func (op *MergeOperation) DeletionPosition() model.Position {
	return model.Position{Root: op.SourcePosition.Root, Path: op.SourcePosition.ParentPath()}
}

// MovedRange spans the merged element's content.
func (op *MergeOperation) MovedRange() model.Range {
	return model.NewRange(op.SourcePosition, op.SourcePosition.WithOffset(model.InfiniteOffset))
}

func (op *MergeOperation) Clone() Operation {
	return NewMergeOperation(op.SourcePosition, op.HowMany, op.TargetPosition, op.GraveyardPosition, op.baseVersion)
}

func (op *MergeOperation) Reversed() Operation {
	target := positionByMerge(op.TargetPosition, op)
	parent := model.Position{Root: op.SourcePosition.Root, Path: op.SourcePosition.ParentPath()}
	insertion := positionByMerge(parent, op)
	gy := op.GraveyardPosition
	return NewSplitOperation(target, op.HowMany, insertion, &gy, op.baseVersion+1)
}

// RenameOperation renames the element after Position.
type RenameOperation struct {
	opBase
	Position model.Position
	OldName  string
	NewName  string
}

func NewRenameOperation(pos model.Position, oldName, newName string, baseVersion int) *RenameOperation {
	return &RenameOperation{
		opBase:   opBase{baseVersion: baseVersion},
		Position: pos.WithStickiness(model.StickToNext),
		OldName:  oldName,
		NewName:  newName,
	}
}

func (op *RenameOperation) Kind() Kind   { return KindRename }
func (op *RenameOperation) Type() string { return TypeRename }

func (op *RenameOperation) Clone() Operation {
	return NewRenameOperation(op.Position, op.OldName, op.NewName, op.baseVersion)
}

func (op *RenameOperation) Reversed() Operation {
	return NewRenameOperation(op.Position, op.NewName, op.OldName, op.baseVersion+1)
}

// AttributeOperation changes Key from OldValue to NewValue on every node of
// a flat Range. A Null value means the attribute is absent.
type AttributeOperation struct {
	opBase
	Range    model.Range
	Key      string
	OldValue model.Value
	NewValue model.Value
}

func NewAttributeOperation(r model.Range, key string, oldValue, newValue model.Value, baseVersion int) *AttributeOperation {
	return &AttributeOperation{
		opBase:   opBase{baseVersion: baseVersion},
		Range:    r.Clone(),
		Key:      key,
		OldValue: oldValue,
		NewValue: newValue,
	}
}

func (op *AttributeOperation) Kind() Kind   { return KindAttribute }
func (op *AttributeOperation) Type() string { return TypeAttribute }

func (op *AttributeOperation) Clone() Operation {
	return NewAttributeOperation(op.Range, op.Key, op.OldValue, op.NewValue, op.baseVersion)
}

func (op *AttributeOperation) Reversed() Operation {
	return NewAttributeOperation(op.Range, op.Key, op.NewValue, op.OldValue, op.baseVersion+1)
}

// RootAttributeOperation changes an attribute of a root element.
type RootAttributeOperation struct {
	opBase
	Root     string
	Key      string
	OldValue model.Value
	NewValue model.Value
}

func NewRootAttributeOperation(root, key string, oldValue, newValue model.Value, baseVersion int) *RootAttributeOperation {
	return &RootAttributeOperation{
		opBase:   opBase{baseVersion: baseVersion},
		Root:     root,
		Key:      key,
		OldValue: oldValue,
		NewValue: newValue,
	}
}

func (op *RootAttributeOperation) Kind() Kind   { return KindRootAttribute }
func (op *RootAttributeOperation) Type() string { return TypeRootAttribute }

func (op *RootAttributeOperation) Clone() Operation {
	return NewRootAttributeOperation(op.Root, op.Key, op.OldValue, op.NewValue, op.baseVersion)
}

func (op *RootAttributeOperation) Reversed() Operation {
	return NewRootAttributeOperation(op.Root, op.Key, op.NewValue, op.OldValue, op.baseVersion+1)
}

// MarkerOperation adds (OldRange nil), updates or removes (NewRange nil) a
// named marker.
type MarkerOperation struct {
	opBase
	Name        string
	OldRange    *model.Range
	NewRange    *model.Range
	AffectsData bool
}

func NewMarkerOperation(name string, oldRange, newRange *model.Range, affectsData bool, baseVersion int) *MarkerOperation {
	return &MarkerOperation{
		opBase:      opBase{baseVersion: baseVersion},
		Name:        name,
		OldRange:    cloneRangePtr(oldRange),
		NewRange:    cloneRangePtr(newRange),
		AffectsData: affectsData,
	}
}

func (op *MarkerOperation) Kind() Kind   { return KindMarker }
func (op *MarkerOperation) Type() string { return TypeMarker }

func (op *MarkerOperation) Clone() Operation {
	c := &MarkerOperation{
		opBase:      opBase{baseVersion: op.baseVersion},
		Name:        op.Name,
		AffectsData: op.AffectsData,
	}
	// Keep boundary stickiness exactly as transformed.
	if op.OldRange != nil {
		r := model.Range{Start: op.OldRange.Start.Clone(), End: op.OldRange.End.Clone()}
		c.OldRange = &r
	}
	if op.NewRange != nil {
		r := model.Range{Start: op.NewRange.Start.Clone(), End: op.NewRange.End.Clone()}
		c.NewRange = &r
	}
	return c
}

func (op *MarkerOperation) Reversed() Operation {
	return NewMarkerOperation(op.Name, op.NewRange, op.OldRange, op.AffectsData, op.baseVersion+1)
}

// RootOperation attaches (IsAdd) or detaches a root.
type RootOperation struct {
	opBase
	RootName    string
	ElementName string
	IsAdd       bool
}

func NewRootOperation(rootName, elementName string, isAdd bool, baseVersion int) *RootOperation {
	return &RootOperation{
		opBase:      opBase{baseVersion: baseVersion},
		RootName:    rootName,
		ElementName: elementName,
		IsAdd:       isAdd,
	}
}

func (op *RootOperation) Kind() Kind { return KindRoot }

func (op *RootOperation) Type() string {
	if op.IsAdd {
		return TypeAddRoot
	}
	return TypeDetachRoot
}

func (op *RootOperation) Clone() Operation {
	return NewRootOperation(op.RootName, op.ElementName, op.IsAdd, op.baseVersion)
}

func (op *RootOperation) Reversed() Operation {
	return NewRootOperation(op.RootName, op.ElementName, !op.IsAdd, op.baseVersion+1)
}

// NoOperation changes nothing but still consumes a version.
type NoOperation struct {
	opBase
}

func NewNoOperation(baseVersion int) *NoOperation {
	return &NoOperation{opBase: opBase{baseVersion: baseVersion}}
}

func (op *NoOperation) Kind() Kind          { return KindNoOp }
func (op *NoOperation) Type() string        { return TypeNoOp }
func (op *NoOperation) Clone() Operation    { return NewNoOperation(op.baseVersion) }
func (op *NoOperation) Reversed() Operation { return NewNoOperation(op.baseVersion + 1) }
