package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

// NodeKind is the closed set of node roles.
type NodeKind uint8

const (
	ElementNode NodeKind = iota
	TextNode
)

func (k NodeKind) String() string {
	switch k {
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	}
	return "unknown"
}

// Node is an element (name, attributes, children) or a text run (data,
// attributes). An element occupies one offset in its parent, a text run one
// offset per character. Two adjacent text runs with equal attributes never
// coexist in a tree.
type Node struct {
	kind     NodeKind
	name     string
	data     string
	attrs    map[string]Value
	children []*Node
	parent   *Node
	rootName string
}

// NewElement creates a detached element. Null attribute values are dropped.
func NewElement(name string, attrs map[string]Value, children ...*Node) *Node {
	n := &Node{kind: ElementNode, name: name, attrs: copyAttrs(attrs)}
	children = normalizeNodes(children)
	for _, c := range children {
		c.parent = n
	}
	n.children = children
	return n
}

// NewText creates a detached text run.
func NewText(data string, attrs map[string]Value) *Node {
	return &Node{kind: TextNode, data: data, attrs: copyAttrs(attrs)}
}

func copyAttrs(attrs map[string]Value) map[string]Value {
	cp := make(map[string]Value, len(attrs))
	for k, v := range attrs {
		if !v.IsNull() {
			cp[k] = v
		}
	}
	return cp
}

func (n *Node) Kind() NodeKind  { return n.kind }
func (n *Node) IsElement() bool { return n.kind == ElementNode }
func (n *Node) IsText() bool    { return n.kind == TextNode }
func (n *Node) Name() string    { return n.name }
func (n *Node) Data() string    { return n.data }
func (n *Node) Parent() *Node   { return n.parent }

// IsRoot reports whether n is the top element of a tree root.
func (n *Node) IsRoot() bool { return n.rootName != "" }

// Attr returns the value of key, Null when unset.
func (n *Node) Attr(key string) Value { return n.attrs[key] }

func (n *Node) HasAttr(key string) bool {
	_, ok := n.attrs[key]
	return ok
}

// Attrs returns a copy of the attribute map.
func (n *Node) Attrs() map[string]Value { return copyAttrs(n.attrs) }

// AttrKeys returns the attribute keys in sorted order.
func (n *Node) AttrKeys() []string {
	keys := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (n *Node) ChildCount() int { return len(n.children) }

func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Children returns a copy of the child list.
func (n *Node) Children() []*Node { return append([]*Node(nil), n.children...) }

// Size is the number of offsets n occupies in its parent.
func (n *Node) Size() int {
	if n.kind == TextNode {
		return utf8.RuneCountInString(n.data)
	}
	return 1
}

// MaxOffset is the sum of children sizes.
func (n *Node) MaxOffset() int {
	total := 0
	for _, c := range n.children {
		total += c.Size()
	}
	return total
}

// Index is the position of n among its siblings, -1 when detached.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return -1
}

// StartOffset is the offset at which n starts in its parent.
func (n *Node) StartOffset() int {
	if n.parent == nil {
		return 0
	}
	off := 0
	for _, c := range n.parent.children {
		if c == n {
			return off
		}
		off += c.Size()
	}
	return off
}

// Clone copies n and, for elements, its whole subtree. The copy is detached.
func (n *Node) Clone() *Node {
	c := &Node{kind: n.kind, name: n.name, data: n.data, attrs: copyAttrs(n.attrs)}
	if len(n.children) > 0 {
		c.children = make([]*Node, len(n.children))
		for i, ch := range n.children {
			cc := ch.Clone()
			cc.parent = c
			c.children[i] = cc
		}
	}
	return c
}

// ShallowClone copies an element without its children.
func (n *Node) ShallowClone() *Node {
	return &Node{kind: n.kind, name: n.name, data: n.data, attrs: copyAttrs(n.attrs)}
}

// Equal reports structural equality of two subtrees.
func (n *Node) Equal(o *Node) bool {
	if n.kind != o.kind || n.name != o.name || n.data != o.data || !sameAttrs(n.attrs, o.attrs) {
		return false
	}
	if len(n.children) != len(o.children) {
		return false
	}
	for i := range n.children {
		if !n.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}

func sameAttrs(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// childStartingAt returns the child that begins exactly at offset.
func (n *Node) childStartingAt(offset int) *Node {
	acc := 0
	for _, c := range n.children {
		if acc == offset {
			return c
		}
		acc += c.Size()
		if acc > offset {
			return nil
		}
	}
	return nil
}

// childEndingAt returns the child that ends exactly at offset.
func (n *Node) childEndingAt(offset int) *Node {
	acc := 0
	for _, c := range n.children {
		acc += c.Size()
		if acc == offset {
			return c
		}
		if acc > offset {
			return nil
		}
	}
	return nil
}

// offsetToIndex returns the index of the child containing offset, or the
// child count when offset is at the end.
func (n *Node) offsetToIndex(offset int) int {
	acc := 0
	for i, c := range n.children {
		size := c.Size()
		if offset < acc+size {
			return i
		}
		acc += size
	}
	return len(n.children)
}

// splitAt makes sure a child boundary exists at offset, splitting a text run
// when needed, and returns the index of the first child after the boundary.
func (n *Node) splitAt(offset int) int {
	idx := n.offsetToIndex(offset)
	if idx == len(n.children) {
		return idx
	}
	c := n.children[idx]
	start := c.StartOffset()
	if start == offset || c.kind != TextNode {
		return idx
	}
	runes := []rune(c.data)
	k := offset - start
	left := &Node{kind: TextNode, data: string(runes[:k]), attrs: copyAttrs(c.attrs), parent: n}
	right := &Node{kind: TextNode, data: string(runes[k:]), attrs: copyAttrs(c.attrs), parent: n}
	n.children = append(n.children[:idx], append([]*Node{left, right}, n.children[idx+1:]...)...)
	return idx + 1
}

// mergeAt joins the children at index-1 and index when both are text runs
// with equal attributes.
func (n *Node) mergeAt(index int) {
	if index <= 0 || index >= len(n.children) {
		return
	}
	a, b := n.children[index-1], n.children[index]
	if a.kind != TextNode || b.kind != TextNode || !sameAttrs(a.attrs, b.attrs) {
		return
	}
	a.data += b.data
	b.parent = nil
	n.children = append(n.children[:index], n.children[index+1:]...)
}

func (n *Node) insertChildren(index int, nodes []*Node) {
	for _, c := range nodes {
		c.parent = n
	}
	tail := append([]*Node(nil), n.children[index:]...)
	n.children = append(append(n.children[:index], nodes...), tail...)
}

func (n *Node) removeChildren(index, howMany int) []*Node {
	removed := append([]*Node(nil), n.children[index:index+howMany]...)
	n.children = append(n.children[:index], n.children[index+howMany:]...)
	for _, c := range removed {
		c.parent = nil
	}
	return removed
}

func (n *Node) setAttr(key string, v Value) {
	if v.IsNull() {
		delete(n.attrs, key)
		return
	}
	if n.attrs == nil {
		n.attrs = make(map[string]Value)
	}
	n.attrs[key] = v
}

// normalizeNodes drops empty text runs and joins adjacent runs with equal
// attributes.
func normalizeNodes(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, c := range nodes {
		if c.kind == TextNode && c.data == "" {
			continue
		}
		if len(out) > 0 {
			last := out[len(out)-1]
			if last.kind == TextNode && c.kind == TextNode && sameAttrs(last.attrs, c.attrs) {
				out[len(out)-1] = &Node{kind: TextNode, data: last.data + c.data, attrs: copyAttrs(last.attrs)}
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// NodesSize sums the sizes of nodes.
func NodesSize(nodes []*Node) int {
	total := 0
	for _, c := range nodes {
		total += c.Size()
	}
	return total
}

type jsonNode struct {
	Name       string           `json:"name,omitempty"`
	Data       *string          `json:"data,omitempty"`
	Attributes map[string]Value `json:"attributes,omitempty"`
	Children   []*Node          `json:"children,omitempty"`
}

func (n *Node) MarshalJSON() ([]byte, error) {
	jn := jsonNode{Attributes: n.attrs}
	if n.kind == TextNode {
		data := n.data
		jn.Data = &data
	} else {
		jn.Name = n.name
		jn.Children = n.children
	}
	if len(jn.Attributes) == 0 {
		jn.Attributes = nil
	}
	return json.Marshal(jn)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var jn jsonNode
	if err := json.Unmarshal(data, &jn); err != nil {
		return err
	}
	if jn.Data != nil {
		if jn.Name != "" || len(jn.Children) > 0 {
			return fmt.Errorf("decode node: text run with element fields")
		}
		*n = *NewText(*jn.Data, jn.Attributes)
		return nil
	}
	if jn.Name == "" {
		return fmt.Errorf("decode node: element without name")
	}
	*n = *NewElement(jn.Name, jn.Attributes, jn.Children...)
	for _, c := range n.children {
		c.parent = n
	}
	return nil
}
