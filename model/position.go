package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// GraveyardRoot is the root that removed content is moved to.
const GraveyardRoot = "$graveyard"

// InfiniteOffset marks "the end of the parent, whatever its size" in ranges
// that describe everything after a position.
const InfiniteOffset = 1 << 30

// Stickiness decides which side a position sticks to when content is inserted
// or moved exactly at it.
type Stickiness uint8

const (
	StickToNone Stickiness = iota
	StickToNext
	StickToPrevious
)

func (s Stickiness) String() string {
	switch s {
	case StickToNext:
		return "toNext"
	case StickToPrevious:
		return "toPrevious"
	}
	return "toNone"
}

func parseStickiness(s string) (Stickiness, error) {
	switch s {
	case "", "toNone":
		return StickToNone, nil
	case "toNext":
		return StickToNext, nil
	case "toPrevious":
		return StickToPrevious, nil
	}
	return 0, fmt.Errorf("unknown stickiness %q", s)
}

// Position addresses a place in a root. Path holds the offsets of every
// ancestor element followed by the offset inside the parent. Positions are
// values: every method returns a fresh copy and never shares Path.
type Position struct {
	Root       string
	Path       []int
	Stickiness Stickiness
}

// NewPosition creates a position with StickToNone.
func NewPosition(root string, path ...int) Position {
	return Position{Root: root, Path: append([]int(nil), path...)}
}

func (p Position) Clone() Position {
	p.Path = append([]int(nil), p.Path...)
	return p
}

// WithStickiness returns a copy of p with s.
func (p Position) WithStickiness(s Stickiness) Position {
	c := p.Clone()
	c.Stickiness = s
	return c
}

// Offset is the last path element.
func (p Position) Offset() int {
	if len(p.Path) == 0 {
		return 0
	}
	return p.Path[len(p.Path)-1]
}

// WithOffset returns a copy of p whose last path element is offset.
func (p Position) WithOffset(offset int) Position {
	c := p.Clone()
	c.Path[len(c.Path)-1] = offset
	return c
}

// ParentPath is the path to the parent element.
func (p Position) ParentPath() []int {
	return append([]int(nil), p.Path[:len(p.Path)-1]...)
}

// ParentPosition is the position before the parent element.
func (p Position) ParentPosition() Position {
	return Position{Root: p.Root, Path: p.ParentPath()}
}

// ChildPosition is the position at offset inside the node after p.
func (p Position) ChildPosition(offset int) Position {
	path := append(append([]int(nil), p.Path...), offset)
	return Position{Root: p.Root, Path: path}
}

// ShiftedBy moves the offset by n, clamping at zero.
func (p Position) ShiftedBy(n int) Position {
	off := p.Offset() + n
	if off < 0 {
		off = 0
	}
	return p.WithOffset(off)
}

// PathRelation describes how two paths relate.
type PathRelation uint8

const (
	PathSame PathRelation = iota
	PathPrefix
	PathExtension
	PathDiffer
)

// ComparePaths reports whether a equals b, is a proper prefix of b, extends
// b, or differs from it at the returned index.
func ComparePaths(a, b []int) (PathRelation, int) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return PathDiffer, i
		}
	}
	switch {
	case len(a) == len(b):
		return PathSame, 0
	case len(a) < len(b):
		return PathPrefix, 0
	default:
		return PathExtension, 0
	}
}

// Order is the document order of two positions.
type Order uint8

const (
	OrderSame Order = iota
	OrderBefore
	OrderAfter
	OrderDifferent
)

// Compare returns the document order of p relative to o.
func (p Position) Compare(o Position) Order {
	if p.Root != o.Root {
		return OrderDifferent
	}
	rel, i := ComparePaths(p.Path, o.Path)
	switch rel {
	case PathSame:
		return OrderSame
	case PathPrefix:
		return OrderBefore
	case PathExtension:
		return OrderAfter
	}
	if p.Path[i] < o.Path[i] {
		return OrderBefore
	}
	return OrderAfter
}

func (p Position) IsEqual(o Position) bool  { return p.Compare(o) == OrderSame }
func (p Position) IsBefore(o Position) bool { return p.Compare(o) == OrderBefore }
func (p Position) IsAfter(o Position) bool  { return p.Compare(o) == OrderAfter }

// HasSameParentAs reports whether both positions are in the same element.
func (p Position) HasSameParentAs(o Position) bool {
	if p.Root != o.Root {
		return false
	}
	rel, _ := ComparePaths(p.Path[:len(p.Path)-1], o.Path[:len(o.Path)-1])
	return rel == PathSame
}

// CommonPath is the longest shared path prefix.
func (p Position) CommonPath(o Position) []int {
	if p.Root != o.Root {
		return nil
	}
	rel, i := ComparePaths(p.Path, o.Path)
	switch rel {
	case PathSame, PathPrefix:
		return append([]int(nil), p.Path...)
	case PathExtension:
		return append([]int(nil), o.Path...)
	}
	return append([]int(nil), p.Path[:i]...)
}

// TransformedByInsertion returns p after howMany offsets were inserted at at.
func (p Position) TransformedByInsertion(at Position, howMany int) Position {
	t := p.Clone()
	if p.Root != at.Root {
		return t
	}
	rel, _ := ComparePaths(at.Path[:len(at.Path)-1], p.Path[:len(p.Path)-1])
	switch rel {
	case PathSame:
		if at.Offset() < p.Offset() || (at.Offset() == p.Offset() && p.Stickiness != StickToPrevious) {
			t.Path[len(t.Path)-1] += howMany
		}
	case PathPrefix:
		i := len(at.Path) - 1
		if at.Offset() <= p.Path[i] {
			t.Path[i] += howMany
		}
	}
	return t
}

// TransformedByDeletion returns p after howMany offsets were removed at at.
// The second result is false when p was inside the removed part.
func (p Position) TransformedByDeletion(at Position, howMany int) (Position, bool) {
	t := p.Clone()
	if p.Root != at.Root {
		return t, true
	}
	rel, _ := ComparePaths(at.Path[:len(at.Path)-1], p.Path[:len(p.Path)-1])
	switch rel {
	case PathSame:
		if at.Offset() < p.Offset() {
			if at.Offset()+howMany > p.Offset() {
				return Position{}, false
			}
			t.Path[len(t.Path)-1] -= howMany
		}
	case PathPrefix:
		i := len(at.Path) - 1
		if at.Offset() <= p.Path[i] {
			if at.Offset()+howMany > p.Path[i] {
				return Position{}, false
			}
			t.Path[i] -= howMany
		}
	}
	return t, true
}

// TransformedByMove returns p after howMany offsets at source were moved to
// target (target given before the move).
func (p Position) TransformedByMove(source, target Position, howMany int) Position {
	target, ok := target.TransformedByDeletion(source, howMany)
	if !ok {
		// Moving into the moved range itself; nothing sensible to do.
		return p.Clone()
	}
	if source.IsEqual(target) {
		return p.Clone()
	}
	t, ok := p.TransformedByDeletion(source, howMany)
	moved := !ok ||
		(source.IsEqual(p) && p.Stickiness == StickToNext) ||
		(source.ShiftedBy(howMany).IsEqual(p) && p.Stickiness == StickToPrevious)
	if moved {
		return p.Combined(source, target)
	}
	return t.TransformedByInsertion(target, howMany)
}

// Combined re-roots p, which is at or inside the content starting at source,
// onto target.
func (p Position) Combined(source, target Position) Position {
	i := len(source.Path) - 1
	c := target.Clone()
	c.Stickiness = p.Stickiness
	c.Path[len(c.Path)-1] += p.Path[i] - source.Offset()
	c.Path = append(c.Path, p.Path[i+1:]...)
	return c
}

func (p Position) String() string {
	parts := make([]string, len(p.Path))
	for i, o := range p.Path {
		parts[i] = strconv.Itoa(o)
	}
	return p.Root + ":[" + strings.Join(parts, ",") + "]"
}

type jsonPosition struct {
	Root       string `json:"root"`
	Path       []int  `json:"path"`
	Stickiness string `json:"stickiness,omitempty"`
}

func (p Position) MarshalJSON() ([]byte, error) {
	jp := jsonPosition{Root: p.Root, Path: p.Path}
	if p.Stickiness != StickToNone {
		jp.Stickiness = p.Stickiness.String()
	}
	if jp.Path == nil {
		jp.Path = []int{}
	}
	return json.Marshal(jp)
}

func (p *Position) UnmarshalJSON(data []byte) error {
	var jp jsonPosition
	if err := json.Unmarshal(data, &jp); err != nil {
		return err
	}
	if len(jp.Path) == 0 {
		return fmt.Errorf("position in %q: %w", jp.Root, ErrInvalidPath)
	}
	s, err := parseStickiness(jp.Stickiness)
	if err != nil {
		return err
	}
	*p = Position{Root: jp.Root, Path: jp.Path, Stickiness: s}
	return nil
}
