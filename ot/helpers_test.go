package ot

import (
	"testing"

	"github.com/alimasry/go-collab-tree/model"
)

const mainRoot = "main"

// newTestDoc creates a document at version 0 with a "main" root holding the
// parsed markup.
func newTestDoc(t *testing.T, markup string) *Document {
	t.Helper()
	doc := NewDocument()
	if err := doc.CreateRoot(mainRoot, ""); err != nil {
		t.Fatal(err)
	}
	nodes, err := model.ParseMarkup(markup)
	if err != nil {
		t.Fatalf("parse %q: %v", markup, err)
	}
	if len(nodes) > 0 {
		if _, err := doc.Tree().Insert(p(0), nodes); err != nil {
			t.Fatalf("seed %q: %v", markup, err)
		}
	}
	return doc
}

// p returns a position in the main root.
func p(path ...int) model.Position { return model.NewPosition(mainRoot, path...) }

func r(start, end model.Position) model.Range { return model.NewRange(start, end) }

// collect runs edit as one batch and returns its operations.
func collect(t *testing.T, doc *Document, edit func(w *Writer) error) []Operation {
	t.Helper()
	b, err := doc.Change(edit)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	return b.Operations
}

func applyAll(t *testing.T, doc *Document, ops []Operation) {
	t.Helper()
	for i, op := range ops {
		if _, err := doc.Apply(op); err != nil {
			t.Fatalf("apply op %d (%s): %v", i, op.Type(), err)
		}
	}
}

// verifyConvergence edits two copies of markup concurrently, exchanges the
// transformed operations and checks both copies end up identical. Edits of
// A are strong. It returns the converged main root.
func verifyConvergence(t *testing.T, markup string, editA, editB func(w *Writer) error) string {
	t.Helper()

	docA := newTestDoc(t, markup)
	opsA := collect(t, docA, editA)
	afterA := docA.Stringify(mainRoot)

	docB := newTestDoc(t, markup)
	opsB := collect(t, docB, editB)
	afterB := docB.Stringify(mainRoot)

	res := TransformSets(opsA, opsB, TransformOptions{PadWithNoOps: true})
	if len(opsA)+len(res.OperationsB) != len(opsB)+len(res.OperationsA) {
		t.Fatalf("versions would differ: %d+%d vs %d+%d", len(opsA), len(res.OperationsB), len(opsB), len(res.OperationsA))
	}

	applyAll(t, docA, res.OperationsB)
	applyAll(t, docB, res.OperationsA)

	path1, path2 := docA.Stringify(mainRoot), docB.Stringify(mainRoot)
	if path1 != path2 {
		t.Fatalf("convergence failed:\n  doc=%s\n  a → %s\n  b → %s\n  path1(a,b')=%s\n  path2(b,a')=%s",
			markup, afterA, afterB, path1, path2)
	}
	if docA.Version() != docB.Version() {
		t.Errorf("versions differ: %d vs %d", docA.Version(), docB.Version())
	}
	return path1
}
