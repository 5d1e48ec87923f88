package ot

import "fmt"

// Entry is one applied operation as recorded in history.
type Entry struct {
	Operation Operation
	Version   int
	WasUndone bool
}

// History is the ordered log of applied operations plus the undo pairing
// between them.
type History struct {
	baseVersion int
	ops         []Operation
	undoPairs   map[Operation]Operation
	undone      map[Operation]bool
}

// NewHistory creates an empty history whose first operation will be based on
// baseVersion.
func NewHistory(baseVersion int) *History {
	return &History{
		baseVersion: baseVersion,
		undoPairs:   make(map[Operation]Operation),
		undone:      make(map[Operation]bool),
	}
}

// BaseVersion is the version of the first recorded operation.
func (h *History) BaseVersion() int { return h.baseVersion }

// Version is the version after the last recorded operation.
func (h *History) Version() int { return h.baseVersion + len(h.ops) }

// AddOperation appends op. Its base version must equal Version.
func (h *History) AddOperation(op Operation) error {
	if op.BaseVersion() != h.Version() {
		return fmt.Errorf("history at v%d, operation based on v%d: %w", h.Version(), op.BaseVersion(), ErrVersionMismatch)
	}
	h.ops = append(h.ops, op)
	return nil
}

// Operations returns the operations with base versions in [from, to). A
// negative to means up to the end.
func (h *History) Operations(from, to int) []Operation {
	if to < 0 || to > h.Version() {
		to = h.Version()
	}
	if from < h.baseVersion {
		from = h.baseVersion
	}
	if from >= to {
		return nil
	}
	return append([]Operation(nil), h.ops[from-h.baseVersion:to-h.baseVersion]...)
}

// Operation returns the operation based on version v, nil when unknown.
func (h *History) Operation(v int) Operation {
	i := v - h.baseVersion
	if i < 0 || i >= len(h.ops) {
		return nil
	}
	return h.ops[i]
}

// Entries lists every recorded operation with its version.
func (h *History) Entries() []Entry {
	out := make([]Entry, len(h.ops))
	for i, op := range h.ops {
		out[i] = Entry{Operation: op, Version: h.baseVersion + i, WasUndone: h.undone[op]}
	}
	return out
}

// SetOperationAsUndone records that undoing was applied to undo undone.
func (h *History) SetOperationAsUndone(undone, undoing Operation) {
	h.undoPairs[undoing] = undone
	h.undone[undone] = true
}

// IsUndoingOperation reports whether op was applied to undo another.
func (h *History) IsUndoingOperation(op Operation) bool {
	_, ok := h.undoPairs[op]
	return ok
}

// IsUndoneOperation reports whether op has been undone.
func (h *History) IsUndoneOperation(op Operation) bool { return h.undone[op] }

// UndoneOperation returns the operation that undoing undid, nil when undoing
// is not an undoing operation.
func (h *History) UndoneOperation(undoing Operation) Operation {
	return h.undoPairs[undoing]
}
