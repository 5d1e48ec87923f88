package ot

import (
	"fmt"
	"log"

	"github.com/alimasry/go-collab-tree/model"
)

// Change describes one applied operation.
type Change struct {
	Operation Operation
	Type      string
	Range     model.Range
	Version   int
}

// Document represents a collaborative tree document with its full operation
// history. It is not safe for concurrent use; callers serialize access the
// way server sessions do.
type Document struct {
	tree      *model.Tree
	version   int
	history   *History
	markers   *MarkerCollection
	corrupted error
	listeners []func(Change)
	batchFns  []func(*Batch)
}

// NewDocument creates an empty document at version 0 with only the graveyard
// root.
func NewDocument() *Document {
	return newDocumentAt(model.NewTree(), 0)
}

func newDocumentAt(tree *model.Tree, version int) *Document {
	return &Document{
		tree:    tree,
		version: version,
		history: NewHistory(version),
		markers: newMarkerCollection(),
	}
}

// Tree exposes the document tree for reading. Mutate it only through Apply.
func (d *Document) Tree() *model.Tree { return d.tree }

func (d *Document) Version() int { return d.version }

func (d *Document) History() *History { return d.history }

func (d *Document) Markers() *MarkerCollection { return d.markers }

// Corrupted returns the error that made the document unusable, nil when the
// document is healthy.
func (d *Document) Corrupted() error { return d.corrupted }

// CreateRoot adds an attached root outside of the operation log. Use it to
// set up a fresh document; collaborative changes go through AddRoot.
func (d *Document) CreateRoot(name, elementName string) error {
	_, err := d.tree.AddRoot(name, elementName)
	return err
}

// SeedDocument creates a document at version 0 with one root holding the
// parsed markup.
func SeedDocument(root, markup string) (*Document, error) {
	nodes, err := model.ParseMarkup(markup)
	if err != nil {
		return nil, fmt.Errorf("seed %q: %w", root, err)
	}
	d := NewDocument()
	if err := d.CreateRoot(root, ""); err != nil {
		return nil, err
	}
	if len(nodes) > 0 {
		if _, err := d.tree.Insert(model.NewPosition(root, 0), nodes); err != nil {
			return nil, fmt.Errorf("seed %q: %w", root, err)
		}
	}
	return d, nil
}

// Root returns the top element of a root, nil when unknown.
func (d *Document) Root(name string) *model.Node { return d.tree.Root(name) }

// Stringify renders the content of a root in markup notation.
func (d *Document) Stringify(root string) string {
	r := d.tree.Root(root)
	if r == nil {
		return ""
	}
	return model.Stringify(r.Children())
}

// OnChange registers fn to run after every applied operation.
func (d *Document) OnChange(fn func(Change)) {
	d.listeners = append(d.listeners, fn)
}

// OnBatch registers fn to run after every batch made through Change.
func (d *Document) OnBatch(fn func(*Batch)) {
	d.batchFns = append(d.batchFns, fn)
}

// Apply executes op against the document. The base version must equal the
// current version. A violated precondition marks the document as corrupted:
// every later Apply fails with ErrNeedsResync until Reset.
func (d *Document) Apply(op Operation) (Change, error) {
	if d.corrupted != nil {
		return Change{}, fmt.Errorf("apply %s: %w", op.Type(), ErrNeedsResync)
	}
	if op.BaseVersion() != d.version {
		return Change{}, fmt.Errorf("apply %s based on v%d to document v%d: %w", op.Type(), op.BaseVersion(), d.version, ErrVersionMismatch)
	}
	if err := op.validate(d.tree); err != nil {
		return Change{}, d.fail(op, err)
	}
	r, err := op.execute(d)
	if err != nil {
		return Change{}, d.fail(op, err)
	}

	d.version++
	if err := d.history.AddOperation(op); err != nil {
		return Change{}, d.fail(op, err)
	}
	if op.Kind() != KindMarker {
		d.markers.transform(op)
	}

	ch := Change{Operation: op, Type: op.Type(), Range: r, Version: d.version}
	for _, fn := range d.listeners {
		fn(ch)
	}
	return ch, nil
}

func (d *Document) fail(op Operation, cause error) error {
	err := fmt.Errorf("apply %s at v%d: %w: %w", op.Type(), d.version, ErrPrecondition, cause)
	d.corrupted = err
	log.Printf("document: %v; needs resync", err)
	return err
}

// Change runs fn with a writer that records a new batch. Operations applied
// before an error stay applied. Batch listeners run for non-empty batches.
func (d *Document) Change(fn func(w *Writer) error) (*Batch, error) {
	b := NewBatch()
	if err := d.EnqueueChange(b, fn); err != nil {
		return b, err
	}
	return b, nil
}

// EnqueueChange is Change for an existing batch.
func (d *Document) EnqueueChange(b *Batch, fn func(w *Writer) error) error {
	before := len(b.Operations)
	err := fn(&Writer{doc: d, batch: b})
	if len(b.Operations) > before {
		for _, l := range d.batchFns {
			l(b)
		}
	}
	return err
}
