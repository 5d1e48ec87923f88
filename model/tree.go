package model

import (
	"fmt"
	"sort"
)

// RootElementName is the element name given to roots created without one.
const RootElementName = "$root"

// Tree holds every root of a document, including the graveyard. It is not
// safe for concurrent use.
type Tree struct {
	roots    map[string]*Node
	detached map[string]bool
}

// NewTree creates a tree that only contains the graveyard root.
func NewTree() *Tree {
	t := &Tree{roots: make(map[string]*Node), detached: make(map[string]bool)}
	t.AddRoot(GraveyardRoot, RootElementName)
	return t
}

// AddRoot creates an empty, attached root.
func (t *Tree) AddRoot(name, elementName string) (*Node, error) {
	if _, ok := t.roots[name]; ok {
		return nil, fmt.Errorf("add root %q: %w", name, ErrRootExists)
	}
	if elementName == "" {
		elementName = RootElementName
	}
	root := &Node{kind: ElementNode, name: elementName, attrs: map[string]Value{}, rootName: name}
	t.roots[name] = root
	return root, nil
}

// Root returns the top element of the named root, nil when unknown.
func (t *Tree) Root(name string) *Node { return t.roots[name] }

// RootNames lists roots in sorted order, graveyard excluded.
func (t *Tree) RootNames() []string {
	names := make([]string, 0, len(t.roots))
	for name := range t.roots {
		if name != GraveyardRoot {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (t *Tree) IsAttached(name string) bool {
	_, ok := t.roots[name]
	return ok && !t.detached[name]
}

func (t *Tree) SetAttached(name string, attached bool) {
	if attached {
		delete(t.detached, name)
	} else {
		t.detached[name] = true
	}
}

// Clone deep-copies every root.
func (t *Tree) Clone() *Tree {
	c := &Tree{roots: make(map[string]*Node, len(t.roots)), detached: make(map[string]bool, len(t.detached))}
	for name, root := range t.roots {
		r := root.Clone()
		r.rootName = name
		c.roots[name] = r
	}
	for name, d := range t.detached {
		c.detached[name] = d
	}
	return c
}

// Parent returns the element that contains p.
func (t *Tree) Parent(p Position) (*Node, error) {
	root, ok := t.roots[p.Root]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", p, ErrUnknownRoot)
	}
	if len(p.Path) == 0 {
		return nil, fmt.Errorf("position %s: %w", p, ErrInvalidPath)
	}
	node := root
	for i := 0; i < len(p.Path)-1; i++ {
		child := node.childStartingAt(p.Path[i])
		if child == nil || child.kind != ElementNode {
			return nil, fmt.Errorf("position %s at depth %d: %w", p, i, ErrInvalidPath)
		}
		node = child
	}
	return node, nil
}

// checkedParent is Parent plus a bounds check on the offset.
func (t *Tree) checkedParent(p Position) (*Node, error) {
	parent, err := t.Parent(p)
	if err != nil {
		return nil, err
	}
	if p.Offset() < 0 || p.Offset() > parent.MaxOffset() {
		return nil, fmt.Errorf("position %s (max %d): %w", p, parent.MaxOffset(), ErrOutOfBounds)
	}
	return parent, nil
}

// CheckPosition reports whether p addresses an existing element and an
// offset inside its bounds.
func (t *Tree) CheckPosition(p Position) error {
	_, err := t.checkedParent(p)
	return err
}

// NodeAfter returns the node starting at p, nil when p is at the end of its
// parent or inside a text run.
func (t *Tree) NodeAfter(p Position) *Node {
	parent, err := t.Parent(p)
	if err != nil {
		return nil
	}
	return parent.childStartingAt(p.Offset())
}

// NodeBefore returns the node ending at p.
func (t *Tree) NodeBefore(p Position) *Node {
	parent, err := t.Parent(p)
	if err != nil {
		return nil
	}
	return parent.childEndingAt(p.Offset())
}

// PositionBefore returns the position right before an attached node.
func (t *Tree) PositionBefore(n *Node) (Position, error) {
	var path []int
	cur := n
	for cur.parent != nil {
		path = append([]int{cur.StartOffset()}, path...)
		cur = cur.parent
	}
	if cur.rootName == "" || t.roots[cur.rootName] != cur {
		return Position{}, fmt.Errorf("node %q is not in the tree: %w", n.name, ErrInvalidPath)
	}
	if len(path) == 0 {
		return Position{}, fmt.Errorf("root %q has no position before it: %w", cur.rootName, ErrInvalidPath)
	}
	return Position{Root: cur.rootName, Path: path}, nil
}

// PositionAt returns the position at offset inside element n.
func (t *Tree) PositionAt(n *Node, offset int) (Position, error) {
	if n.rootName != "" && t.roots[n.rootName] == n {
		return NewPosition(n.rootName, offset), nil
	}
	before, err := t.PositionBefore(n)
	if err != nil {
		return Position{}, err
	}
	return before.ChildPosition(offset), nil
}

// RangeIn spans the whole content of element n.
func (t *Tree) RangeIn(n *Node) (Range, error) {
	start, err := t.PositionAt(n, 0)
	if err != nil {
		return Range{}, err
	}
	return NewRange(start, start.WithOffset(n.MaxOffset())), nil
}

// RangeOn spans node n itself.
func (t *Tree) RangeOn(n *Node) (Range, error) {
	start, err := t.PositionBefore(n)
	if err != nil {
		return Range{}, err
	}
	return RangeFromShift(start, n.Size()), nil
}

// Insert puts detached nodes at p and returns the range they occupy.
func (t *Tree) Insert(p Position, nodes []*Node) (Range, error) {
	parent, err := t.checkedParent(p)
	if err != nil {
		return Range{}, fmt.Errorf("insert: %w", err)
	}
	nodes = normalizeNodes(nodes)
	idx := parent.splitAt(p.Offset())
	parent.insertChildren(idx, nodes)
	parent.mergeAt(idx + len(nodes))
	parent.mergeAt(idx)
	return RangeFromShift(p, NodesSize(nodes)), nil
}

// Remove detaches the nodes of a flat range and returns them.
func (t *Tree) Remove(r Range) ([]*Node, error) {
	parent, err := t.flatParent(r)
	if err != nil {
		return nil, fmt.Errorf("remove: %w", err)
	}
	si := parent.splitAt(r.Start.Offset())
	ei := parent.splitAt(r.End.Offset())
	removed := parent.removeChildren(si, ei-si)
	parent.mergeAt(si)
	return removed, nil
}

// Move relocates the content of a flat range to target, given in
// coordinates from before the move.
func (t *Tree) Move(r Range, target Position) (Range, error) {
	howMany := r.End.Offset() - r.Start.Offset()
	at, ok := target.TransformedByDeletion(r.Start, howMany)
	if !ok {
		return Range{}, fmt.Errorf("move %s into itself at %s: %w", r, target, ErrInvalidPath)
	}
	nodes, err := t.Remove(r)
	if err != nil {
		return Range{}, fmt.Errorf("move: %w", err)
	}
	return t.Insert(at, nodes)
}

// SetAttribute sets key on every node of a flat range, or removes it when v
// is Null.
func (t *Tree) SetAttribute(r Range, key string, v Value) error {
	parent, err := t.flatParent(r)
	if err != nil {
		return fmt.Errorf("set attribute %q: %w", key, err)
	}
	si := parent.splitAt(r.Start.Offset())
	ei := parent.splitAt(r.End.Offset())
	for i := si; i < ei; i++ {
		parent.children[i].setAttr(key, v)
	}
	for i := ei; i >= si; i-- {
		parent.mergeAt(i)
	}
	return nil
}

// SetNodeAttribute sets or clears an attribute on a single node, usually a
// root element.
func (t *Tree) SetNodeAttribute(n *Node, key string, v Value) {
	n.setAttr(key, v)
}

// Rename changes the name of element n.
func (t *Tree) Rename(n *Node, name string) {
	n.name = name
}

// Item is a node, or the part of a text run, inside a flat range.
type Item struct {
	Node *Node
	Size int
}

// Items lists the nodes a flat range covers without descending into them.
func (t *Tree) Items(r Range) ([]Item, error) {
	parent, err := t.flatParent(r)
	if err != nil {
		return nil, err
	}
	start, end := r.Start.Offset(), r.End.Offset()
	var items []Item
	acc := 0
	for _, c := range parent.children {
		cs, ce := acc, acc+c.Size()
		acc = ce
		if ce <= start || cs >= end {
			continue
		}
		items = append(items, Item{Node: c, Size: min(ce, end) - max(cs, start)})
	}
	return items, nil
}

// MinimalFlatRanges breaks r into the fewest flat ranges that cover the same
// content.
func (t *Tree) MinimalFlatRanges(r Range) ([]Range, error) {
	var out []Range
	diffAt := len(r.Start.CommonPath(r.End))
	pos := r.Start.Clone()
	parent, err := t.Parent(pos)
	if err != nil {
		return nil, err
	}
	for len(pos.Path) > diffAt+1 {
		howMany := parent.MaxOffset() - pos.Offset()
		if howMany != 0 {
			out = append(out, NewRange(pos, pos.ShiftedBy(howMany)))
		}
		pos.Path = pos.Path[:len(pos.Path)-1]
		pos.Path[len(pos.Path)-1]++
		parent = parent.parent
		if parent == nil {
			return nil, fmt.Errorf("flat ranges of %s: %w", r, ErrInvalidPath)
		}
	}
	for len(pos.Path) <= len(r.End.Path) {
		offset := r.End.Path[len(pos.Path)-1]
		howMany := offset - pos.Offset()
		if howMany != 0 {
			out = append(out, NewRange(pos, pos.ShiftedBy(howMany)))
		}
		pos.Path = append(pos.Path[:len(pos.Path)-1:len(pos.Path)-1], offset, 0)
	}
	return out, nil
}

func (t *Tree) flatParent(r Range) (*Node, error) {
	if !r.IsFlat() {
		return nil, fmt.Errorf("range %s: %w", r, ErrNotFlat)
	}
	parent, err := t.checkedParent(r.Start)
	if err != nil {
		return nil, err
	}
	if r.End.Offset() > parent.MaxOffset() || r.End.Offset() < r.Start.Offset() {
		return nil, fmt.Errorf("range %s (max %d): %w", r, parent.MaxOffset(), ErrOutOfBounds)
	}
	return parent, nil
}
