package ot

import (
	"fmt"

	"github.com/alimasry/go-collab-tree/model"
)

// Snapshot is the persisted state of a document at Version. History is not
// part of it: a document loaded from a snapshot starts with an empty log at
// that version.
type Snapshot struct {
	Version int            `json:"version"`
	Roots   []SnapshotRoot `json:"roots"`
	Markers []Marker       `json:"markers,omitempty"`
}

// SnapshotRoot is one root, graveyard included.
type SnapshotRoot struct {
	Name        string                 `json:"name"`
	ElementName string                 `json:"elementName"`
	Detached    bool                   `json:"detached,omitempty"`
	Attributes  map[string]model.Value `json:"attributes,omitempty"`
	Children    []*model.Node          `json:"children,omitempty"`
}

// Snapshot captures a deep copy of the document state.
func (d *Document) Snapshot() Snapshot {
	names := append([]string{model.GraveyardRoot}, d.tree.RootNames()...)
	s := Snapshot{Version: d.version, Markers: d.markers.All()}
	for _, name := range names {
		root := d.tree.Root(name)
		sr := SnapshotRoot{
			Name:        name,
			ElementName: root.Name(),
			Detached:    name != model.GraveyardRoot && !d.tree.IsAttached(name),
			Attributes:  root.Attrs(),
		}
		for _, c := range root.Children() {
			sr.Children = append(sr.Children, c.Clone())
		}
		s.Roots = append(s.Roots, sr)
	}
	return s
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{Version: s.Version}
	for _, r := range s.Roots {
		cr := SnapshotRoot{Name: r.Name, ElementName: r.ElementName, Detached: r.Detached}
		if r.Attributes != nil {
			cr.Attributes = make(map[string]model.Value, len(r.Attributes))
			for k, v := range r.Attributes {
				cr.Attributes[k] = v
			}
		}
		for _, n := range r.Children {
			cr.Children = append(cr.Children, n.Clone())
		}
		c.Roots = append(c.Roots, cr)
	}
	for _, m := range s.Markers {
		c.Markers = append(c.Markers, Marker{Name: m.Name, Range: m.Range.Clone(), AffectsData: m.AffectsData})
	}
	return c
}

// LoadDocument rebuilds a document from a snapshot.
func LoadDocument(s Snapshot) (*Document, error) {
	tree := model.NewTree()
	for _, r := range s.Roots {
		var root *model.Node
		if r.Name == model.GraveyardRoot {
			root = tree.Root(model.GraveyardRoot)
		} else {
			var err error
			if root, err = tree.AddRoot(r.Name, r.ElementName); err != nil {
				return nil, fmt.Errorf("load snapshot v%d: %w", s.Version, err)
			}
		}
		for k, v := range r.Attributes {
			tree.SetNodeAttribute(root, k, v)
		}
		nodes := make([]*model.Node, len(r.Children))
		for i, n := range r.Children {
			nodes[i] = n.Clone()
		}
		if len(nodes) > 0 {
			if _, err := tree.Insert(model.NewPosition(r.Name, 0), nodes); err != nil {
				return nil, fmt.Errorf("load snapshot v%d root %q: %w", s.Version, r.Name, err)
			}
		}
		if r.Detached {
			tree.SetAttached(r.Name, false)
		}
	}
	d := newDocumentAt(tree, s.Version)
	for _, m := range s.Markers {
		d.markers.markers[m.Name] = &Marker{Name: m.Name, Range: m.Range.Clone(), AffectsData: m.AffectsData}
	}
	return d, nil
}

// Reset replaces the whole state with a snapshot and clears corruption.
// Listeners stay registered; history restarts at the snapshot version.
func (d *Document) Reset(s Snapshot) error {
	fresh, err := LoadDocument(s)
	if err != nil {
		return err
	}
	d.tree = fresh.tree
	d.version = fresh.version
	d.history = fresh.history
	d.markers.markers = fresh.markers.markers
	d.corrupted = nil
	return nil
}
