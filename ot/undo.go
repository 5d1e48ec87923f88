package ot

import (
	"fmt"

	"github.com/google/uuid"
)

// Batch groups the operations of one user action. Undo works on whole
// batches.
type Batch struct {
	ID         string
	Operations []Operation
	IsUndoable bool
	IsUndo     bool
}

// NewBatch creates an undoable batch with a fresh ID.
func NewBatch() *Batch {
	return &Batch{ID: uuid.NewString(), IsUndoable: true}
}

// BaseVersion is the base version of the first operation, -1 for an empty
// batch.
func (b *Batch) BaseVersion() int {
	if len(b.Operations) == 0 {
		return -1
	}
	return b.Operations[0].BaseVersion()
}

// UndoManager keeps the undo and redo stacks of one document. Undo applies
// the reversed operations of a batch, transformed by everything applied
// since. Redo is the undo of an undoing batch.
type UndoManager struct {
	doc         *Document
	undoStack   []*Batch
	redoStack   []*Batch
	seen        map[*Batch]bool
	undoBatches map[*Batch]bool
	redoBatches map[*Batch]bool
}

// NewUndoManager attaches an undo manager to doc. Every batch made through
// doc.Change is recorded from then on.
func NewUndoManager(doc *Document) *UndoManager {
	u := &UndoManager{
		doc:         doc,
		seen:        make(map[*Batch]bool),
		undoBatches: make(map[*Batch]bool),
		redoBatches: make(map[*Batch]bool),
	}
	doc.OnBatch(u.record)
	return u
}

func (u *UndoManager) record(b *Batch) {
	if u.seen[b] {
		return
	}
	u.seen[b] = true
	if !b.IsUndoable {
		return
	}
	switch {
	case u.redoBatches[b]:
		u.undoStack = append(u.undoStack, b)
	case !u.undoBatches[b]:
		u.undoStack = append(u.undoStack, b)
		u.redoStack = nil
	}
}

func (u *UndoManager) CanUndo() bool { return len(u.undoStack) > 0 }
func (u *UndoManager) CanRedo() bool { return len(u.redoStack) > 0 }

// Undo reverts the most recent undoable batch and returns the undoing batch.
func (u *UndoManager) Undo() (*Batch, error) {
	if len(u.undoStack) == 0 {
		return nil, fmt.Errorf("undo: %w", ErrNothingToUndo)
	}
	return u.UndoBatch(u.undoStack[len(u.undoStack)-1])
}

// UndoBatch reverts a specific batch from the undo stack, even if later
// batches are still in effect.
func (u *UndoManager) UndoBatch(b *Batch) (*Batch, error) {
	idx := -1
	for i, item := range u.undoStack {
		if item == b {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("undo batch %s: %w", b.ID, ErrNothingToUndo)
	}
	u.undoStack = append(u.undoStack[:idx], u.undoStack[idx+1:]...)

	undoing := &Batch{ID: uuid.NewString(), IsUndoable: true, IsUndo: true}
	u.undoBatches[undoing] = true
	err := u.doc.EnqueueChange(undoing, func(w *Writer) error {
		return u.revert(b, w)
	})
	u.redoStack = append(u.redoStack, undoing)
	if err != nil {
		return undoing, fmt.Errorf("undo batch %s: %w", b.ID, err)
	}
	return undoing, nil
}

// Redo reverts the most recent undoing batch.
func (u *UndoManager) Redo() (*Batch, error) {
	if len(u.redoStack) == 0 {
		return nil, fmt.Errorf("redo: %w", ErrNothingToUndo)
	}
	item := u.redoStack[len(u.redoStack)-1]
	u.redoStack = u.redoStack[:len(u.redoStack)-1]

	redoing := &Batch{ID: uuid.NewString(), IsUndoable: true, IsUndo: true}
	u.redoBatches[redoing] = true
	err := u.doc.EnqueueChange(redoing, func(w *Writer) error {
		return u.revert(item, w)
	})
	if err != nil {
		return redoing, fmt.Errorf("redo batch %s: %w", item.ID, err)
	}
	return redoing, nil
}

// revert applies the reverse of every operation of target, newest first,
// each transformed by whatever happened after it.
func (u *UndoManager) revert(target *Batch, w *Writer) error {
	history := u.doc.History()
	for i := len(target.Operations) - 1; i >= 0; i-- {
		toUndo := target.Operations[i]
		later := history.Operations(toUndo.BaseVersion()+1, -1)
		res := TransformSets([]Operation{toUndo.Reversed()}, later, TransformOptions{
			Document:     u.doc,
			UseRelations: true,
		})
		for _, op := range res.OperationsA {
			if err := w.applyOperation(op); err != nil {
				return err
			}
			history.SetOperationAsUndone(toUndo, op)
		}
	}
	return nil
}
