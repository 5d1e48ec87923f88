package ot

import (
	"sort"

	"github.com/alimasry/go-collab-tree/model"
)

// Marker is a named range that follows the content it covers.
type Marker struct {
	Name        string      `json:"name"`
	Range       model.Range `json:"range"`
	AffectsData bool        `json:"affectsData,omitempty"`
}

// MarkerChange reports a marker added, moved or removed. OldRange is nil for
// an added marker and NewRange is nil for a removed one.
type MarkerChange struct {
	Name        string
	OldRange    *model.Range
	NewRange    *model.Range
	AffectsData bool
}

// MarkerCollection is the marker registry of a document.
type MarkerCollection struct {
	markers   map[string]*Marker
	listeners []func(MarkerChange)
}

func newMarkerCollection() *MarkerCollection {
	return &MarkerCollection{markers: make(map[string]*Marker)}
}

// Get returns a copy of the named marker.
func (c *MarkerCollection) Get(name string) (Marker, bool) {
	m, ok := c.markers[name]
	if !ok {
		return Marker{}, false
	}
	return Marker{Name: m.Name, Range: m.Range.Clone(), AffectsData: m.AffectsData}, true
}

func (c *MarkerCollection) Has(name string) bool {
	_, ok := c.markers[name]
	return ok
}

// All returns copies of every marker, sorted by name.
func (c *MarkerCollection) All() []Marker {
	names := make([]string, 0, len(c.markers))
	for name := range c.markers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Marker, 0, len(names))
	for _, name := range names {
		m, _ := c.Get(name)
		out = append(out, m)
	}
	return out
}

// OnChange registers fn to run whenever a marker changes.
func (c *MarkerCollection) OnChange(fn func(MarkerChange)) {
	c.listeners = append(c.listeners, fn)
}

func (c *MarkerCollection) set(name string, r model.Range, affectsData bool) {
	var old *model.Range
	if m, ok := c.markers[name]; ok {
		o := m.Range
		old = &o
	}
	nr := r.Clone()
	c.markers[name] = &Marker{Name: name, Range: nr, AffectsData: affectsData}
	c.fire(MarkerChange{Name: name, OldRange: old, NewRange: &nr, AffectsData: affectsData})
}

func (c *MarkerCollection) remove(name string) {
	m, ok := c.markers[name]
	if !ok {
		return
	}
	delete(c.markers, name)
	old := m.Range
	c.fire(MarkerChange{Name: name, OldRange: &old, AffectsData: m.AffectsData})
}

// transform moves every marker through an applied operation. A marker whose
// whole range ended up in the graveyard is removed.
func (c *MarkerCollection) transform(op Operation) {
	names := make([]string, 0, len(c.markers))
	for name := range c.markers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := c.markers[name]
		r := model.JoinRanges(TransformRange(m.Range, op))
		if r.IsEqual(m.Range) {
			continue
		}
		if r.Root() == model.GraveyardRoot {
			c.remove(name)
			continue
		}
		old := m.Range
		m.Range = r
		nr := r
		c.fire(MarkerChange{Name: name, OldRange: &old, NewRange: &nr, AffectsData: m.AffectsData})
	}
}

func (c *MarkerCollection) fire(ch MarkerChange) {
	for _, fn := range c.listeners {
		fn(ch)
	}
}
