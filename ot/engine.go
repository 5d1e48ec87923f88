package ot

import "fmt"

// Engine abstracts the server-side OT collaboration algorithm.
type Engine interface {
	// TransformIncoming rebases a client batch created at revision onto the
	// current document. It returns the batch ready to apply and the server
	// operations transformed to apply after the client batch, which is what
	// the client needs to catch up.
	TransformIncoming(ops []Operation, revision int, doc *Document) (incoming, missed []Operation, err error)
}

// JupiterEngine implements the Jupiter scheme over operation sets: the
// client batch is transformed in one go against every server operation the
// client has not seen. Client operations are strong, and both sides are
// padded with no-ops so that versions keep matching.
type JupiterEngine struct{}

func (e *JupiterEngine) TransformIncoming(ops []Operation, revision int, doc *Document) ([]Operation, []Operation, error) {
	h := doc.History()
	if revision < h.BaseVersion() || revision > doc.Version() {
		return nil, nil, fmt.Errorf("invalid revision %d (history v%d..v%d): %w", revision, h.BaseVersion(), doc.Version(), ErrVersionMismatch)
	}
	for i, op := range ops {
		if op.BaseVersion() != revision+i {
			return nil, nil, fmt.Errorf("operation %d based on v%d, want v%d: %w", i, op.BaseVersion(), revision+i, ErrVersionMismatch)
		}
	}

	history := h.Operations(revision, -1)
	if len(history) == 0 {
		return ops, nil, nil
	}
	res := TransformSets(ops, history, TransformOptions{Document: doc, PadWithNoOps: true})
	return res.OperationsA, res.OperationsB, nil
}
