package ot

import (
	"encoding/json"
	"fmt"

	"github.com/alimasry/go-collab-tree/model"
)

// wireOperation is the JSON form of every operation kind, told apart by
// Type. Positions and ranges keep their stickiness so that replicas decode
// exactly what was transformed.
type wireOperation struct {
	Type        string `json:"type"`
	BaseVersion int    `json:"baseVersion"`
	WasUndone   bool   `json:"wasUndone,omitempty"`

	Position                *model.Position `json:"position,omitempty"`
	Nodes                   []*model.Node   `json:"nodes,omitempty"`
	ShouldReceiveAttributes bool            `json:"shouldReceiveAttributes,omitempty"`

	SourcePosition    *model.Position `json:"sourcePosition,omitempty"`
	TargetPosition    *model.Position `json:"targetPosition,omitempty"`
	SplitPosition     *model.Position `json:"splitPosition,omitempty"`
	InsertionPosition *model.Position `json:"insertionPosition,omitempty"`
	GraveyardPosition *model.Position `json:"graveyardPosition,omitempty"`
	HowMany           *int            `json:"howMany,omitempty"`

	OldName string `json:"oldName,omitempty"`
	NewName string `json:"newName,omitempty"`

	Range    *model.Range `json:"range,omitempty"`
	Root     string       `json:"root,omitempty"`
	Key      string       `json:"key,omitempty"`
	OldValue *model.Value `json:"oldValue,omitempty"`
	NewValue *model.Value `json:"newValue,omitempty"`

	Name        string       `json:"name,omitempty"`
	OldRange    *model.Range `json:"oldRange,omitempty"`
	NewRange    *model.Range `json:"newRange,omitempty"`
	AffectsData bool         `json:"affectsData,omitempty"`

	RootName    string `json:"rootName,omitempty"`
	ElementName string `json:"elementName,omitempty"`
}

// EncodeOperation serializes op to JSON.
func EncodeOperation(op Operation) ([]byte, error) {
	return json.Marshal(toWire(op))
}

// DecodeOperation parses an operation produced by EncodeOperation.
func DecodeOperation(data []byte) (Operation, error) {
	var w wireOperation
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode operation: %w", err)
	}
	return fromWire(w)
}

// Operations is a list of operations with a JSON array form.
type Operations []Operation

func (ops Operations) MarshalJSON() ([]byte, error) {
	wires := make([]wireOperation, len(ops))
	for i, op := range ops {
		wires[i] = toWire(op)
	}
	return json.Marshal(wires)
}

func (ops *Operations) UnmarshalJSON(data []byte) error {
	var wires []wireOperation
	if err := json.Unmarshal(data, &wires); err != nil {
		return fmt.Errorf("decode operations: %w", err)
	}
	out := make(Operations, len(wires))
	for i, w := range wires {
		op, err := fromWire(w)
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		out[i] = op
	}
	*ops = out
	return nil
}

func posPtr(p model.Position) *model.Position {
	c := p.Clone()
	return &c
}

func rangePtr(r model.Range) *model.Range {
	c := model.Range{Start: r.Start.Clone(), End: r.End.Clone()}
	return &c
}

func valuePtr(v model.Value) *model.Value { return &v }

func toWire(op Operation) wireOperation {
	w := wireOperation{Type: op.Type(), BaseVersion: op.BaseVersion(), WasUndone: op.WasUndone()}
	switch o := op.(type) {
	case *InsertOperation:
		w.Position = posPtr(o.Position)
		w.Nodes = o.Nodes
		w.ShouldReceiveAttributes = o.ShouldReceiveAttributes
	case *MoveOperation:
		w.SourcePosition = posPtr(o.SourcePosition)
		w.TargetPosition = posPtr(o.TargetPosition)
		w.HowMany = &o.HowMany
	case *SplitOperation:
		w.SplitPosition = posPtr(o.SplitPosition)
		w.InsertionPosition = posPtr(o.InsertionPosition)
		w.GraveyardPosition = clonePositionPtr(o.GraveyardPosition)
		w.HowMany = &o.HowMany
	case *MergeOperation:
		w.SourcePosition = posPtr(o.SourcePosition)
		w.TargetPosition = posPtr(o.TargetPosition)
		w.GraveyardPosition = posPtr(o.GraveyardPosition)
		w.HowMany = &o.HowMany
	case *RenameOperation:
		w.Position = posPtr(o.Position)
		w.OldName = o.OldName
		w.NewName = o.NewName
	case *AttributeOperation:
		w.Range = rangePtr(o.Range)
		w.Key = o.Key
		w.OldValue = valuePtr(o.OldValue)
		w.NewValue = valuePtr(o.NewValue)
	case *RootAttributeOperation:
		w.Root = o.Root
		w.Key = o.Key
		w.OldValue = valuePtr(o.OldValue)
		w.NewValue = valuePtr(o.NewValue)
	case *MarkerOperation:
		w.Name = o.Name
		if o.OldRange != nil {
			w.OldRange = rangePtr(*o.OldRange)
		}
		if o.NewRange != nil {
			w.NewRange = rangePtr(*o.NewRange)
		}
		w.AffectsData = o.AffectsData
	case *RootOperation:
		w.RootName = o.RootName
		w.ElementName = o.ElementName
	}
	return w
}

func missing(typ, field string) error {
	return fmt.Errorf("decode %s: missing %s", typ, field)
}

func valueOrNull(v *model.Value) model.Value {
	if v == nil {
		return model.Null()
	}
	return *v
}

func fromWire(w wireOperation) (Operation, error) {
	base := opBase{baseVersion: w.BaseVersion, wasUndone: w.WasUndone}
	switch w.Type {
	case TypeInsert:
		if w.Position == nil {
			return nil, missing(w.Type, "position")
		}
		return &InsertOperation{opBase: base, Position: *w.Position, Nodes: w.Nodes, ShouldReceiveAttributes: w.ShouldReceiveAttributes}, nil

	case TypeMove, TypeRemove, TypeReinsert:
		if w.SourcePosition == nil || w.TargetPosition == nil || w.HowMany == nil {
			return nil, missing(w.Type, "sourcePosition, targetPosition or howMany")
		}
		return &MoveOperation{opBase: base, SourcePosition: *w.SourcePosition, HowMany: *w.HowMany, TargetPosition: *w.TargetPosition}, nil

	case TypeSplit:
		if w.SplitPosition == nil || w.InsertionPosition == nil || w.HowMany == nil {
			return nil, missing(w.Type, "splitPosition, insertionPosition or howMany")
		}
		return &SplitOperation{
			opBase:            base,
			SplitPosition:     *w.SplitPosition,
			HowMany:           *w.HowMany,
			InsertionPosition: *w.InsertionPosition,
			GraveyardPosition: w.GraveyardPosition,
		}, nil

	case TypeMerge:
		if w.SourcePosition == nil || w.TargetPosition == nil || w.GraveyardPosition == nil || w.HowMany == nil {
			return nil, missing(w.Type, "sourcePosition, targetPosition, graveyardPosition or howMany")
		}
		return &MergeOperation{
			opBase:            base,
			SourcePosition:    *w.SourcePosition,
			HowMany:           *w.HowMany,
			TargetPosition:    *w.TargetPosition,
			GraveyardPosition: *w.GraveyardPosition,
		}, nil

	case TypeRename:
		if w.Position == nil {
			return nil, missing(w.Type, "position")
		}
		return &RenameOperation{opBase: base, Position: *w.Position, OldName: w.OldName, NewName: w.NewName}, nil

	case TypeAttribute:
		if w.Range == nil || w.Key == "" {
			return nil, missing(w.Type, "range or key")
		}
		return &AttributeOperation{opBase: base, Range: *w.Range, Key: w.Key, OldValue: valueOrNull(w.OldValue), NewValue: valueOrNull(w.NewValue)}, nil

	case TypeRootAttribute:
		if w.Root == "" || w.Key == "" {
			return nil, missing(w.Type, "root or key")
		}
		return &RootAttributeOperation{opBase: base, Root: w.Root, Key: w.Key, OldValue: valueOrNull(w.OldValue), NewValue: valueOrNull(w.NewValue)}, nil

	case TypeMarker:
		if w.Name == "" {
			return nil, missing(w.Type, "name")
		}
		return &MarkerOperation{opBase: base, Name: w.Name, OldRange: w.OldRange, NewRange: w.NewRange, AffectsData: w.AffectsData}, nil

	case TypeAddRoot, TypeDetachRoot:
		if w.RootName == "" {
			return nil, missing(w.Type, "rootName")
		}
		return &RootOperation{opBase: base, RootName: w.RootName, ElementName: w.ElementName, IsAdd: w.Type == TypeAddRoot}, nil

	case TypeNoOp:
		return &NoOperation{opBase: base}, nil
	}
	return nil, fmt.Errorf("decode %q: %w", w.Type, ErrUnknownOperation)
}
