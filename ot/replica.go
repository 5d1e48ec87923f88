package ot

import (
	"fmt"
	"log"
)

// Replica is one participant of a peer-to-peer session: a document, its undo
// manager and the version both sides last agreed on.
//
// Of two replicas, the one with the lexicographically smaller ID is strong:
// its operations are always passed first to TransformSets, so both sides
// break ties the same way.
type Replica struct {
	ID   string
	Doc  *Document
	Undo *UndoManager

	syncedVersion int
}

// NewReplica wraps doc. The synced version starts at the document version.
func NewReplica(id string, doc *Document) *Replica {
	return &Replica{ID: id, Doc: doc, Undo: NewUndoManager(doc), syncedVersion: doc.Version()}
}

// SyncedVersion is the version both replicas agreed on after the last Merge.
func (r *Replica) SyncedVersion() int { return r.syncedVersion }

// Pending returns copies of the operations applied locally since the last
// sync, flagged with whether they were undone.
func (r *Replica) Pending() []Operation {
	h := r.Doc.History()
	ops := h.Operations(r.syncedVersion, -1)
	out := make([]Operation, len(ops))
	for i, op := range ops {
		c := op.Clone()
		c.SetWasUndone(op.WasUndone() || h.IsUndoneOperation(op))
		out[i] = c
	}
	return out
}

// Merge applies the operations a remote replica produced since the last
// sync. local must be what this replica sent to the remote for the same
// round; it is usually Pending() taken before any new local edits.
func (r *Replica) Merge(remoteID string, local, remote []Operation) error {
	if remoteID == r.ID {
		return fmt.Errorf("replica %s: merge with itself", r.ID)
	}
	var toApply []Operation
	opts := TransformOptions{Document: r.Doc, PadWithNoOps: true}
	if r.ID < remoteID {
		toApply = TransformSets(local, remote, opts).OperationsB
	} else {
		toApply = TransformSets(remote, local, opts).OperationsA
	}
	for _, op := range toApply {
		op = op.Clone()
		op.SetBaseVersion(r.Doc.Version())
		if _, err := r.Doc.Apply(op); err != nil {
			log.Printf("replica %s: merge from %s failed: %v", r.ID, remoteID, err)
			return fmt.Errorf("replica %s: %w", r.ID, err)
		}
	}
	r.syncedVersion = r.Doc.Version()
	return nil
}

// Sync exchanges pending operations between two replicas until both hold
// the same tree.
func Sync(a, b *Replica) error {
	pendingA, pendingB := a.Pending(), b.Pending()
	if err := a.Merge(b.ID, pendingA, pendingB); err != nil {
		return err
	}
	if err := b.Merge(a.ID, pendingB, pendingA); err != nil {
		return err
	}
	if a.Doc.Version() != b.Doc.Version() {
		return fmt.Errorf("sync %s/%s: versions diverged: %d != %d", a.ID, b.ID, a.Doc.Version(), b.Doc.Version())
	}
	return nil
}
