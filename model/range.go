package model

import (
	"encoding/json"
	"slices"
)

// Range spans from Start to End in one root. Ranges built with NewRange get
// boundary stickiness that keeps them from growing on insertions at their
// edges.
type Range struct {
	Start Position
	End   Position
}

// NewRange copies both boundaries and normalizes their stickiness.
func NewRange(start, end Position) Range {
	r := Range{Start: start.Clone(), End: end.Clone()}
	if r.IsCollapsed() {
		r.Start.Stickiness = StickToNone
		r.End.Stickiness = StickToNone
	} else {
		r.Start.Stickiness = StickToNext
		r.End.Stickiness = StickToPrevious
	}
	return r
}

// CollapsedRange is a range with both boundaries at p.
func CollapsedRange(p Position) Range { return NewRange(p, p) }

// RangeFromShift spans howMany offsets starting at p.
func RangeFromShift(p Position, howMany int) Range {
	return NewRange(p, p.ShiftedBy(howMany))
}

func (r Range) Clone() Range { return NewRange(r.Start, r.End) }

func (r Range) Root() string      { return r.Start.Root }
func (r Range) IsCollapsed() bool { return r.Start.IsEqual(r.End) }

// IsFlat reports whether both boundaries share a parent.
func (r Range) IsFlat() bool { return r.Start.HasSameParentAs(r.End) }

func (r Range) IsEqual(o Range) bool {
	return r.Start.IsEqual(o.Start) && r.End.IsEqual(o.End)
}

// ContainsPosition is strict: boundaries are not contained.
func (r Range) ContainsPosition(p Position) bool {
	return p.IsAfter(r.Start) && p.IsBefore(r.End)
}

// ContainsRange reports whether o lies inside r. With loose set, shared
// boundaries count as contained, unless o is collapsed.
func (r Range) ContainsRange(o Range, loose bool) bool {
	if o.IsCollapsed() {
		loose = false
	}
	containsStart := r.ContainsPosition(o.Start) || (loose && r.Start.IsEqual(o.Start))
	containsEnd := r.ContainsPosition(o.End) || (loose && r.End.IsEqual(o.End))
	return containsStart && containsEnd
}

func (r Range) IsIntersecting(o Range) bool {
	return r.Start.IsBefore(o.End) && r.End.IsAfter(o.Start)
}

// Difference returns the parts of r outside o: zero, one or two ranges.
func (r Range) Difference(o Range) []Range {
	var out []Range
	if r.IsIntersecting(o) {
		if r.ContainsPosition(o.Start) {
			out = append(out, NewRange(r.Start, o.Start))
		}
		if r.ContainsPosition(o.End) {
			out = append(out, NewRange(o.End, r.End))
		}
	} else {
		out = append(out, NewRange(r.Start, r.End))
	}
	return out
}

// Intersection returns the common part of r and o.
func (r Range) Intersection(o Range) (Range, bool) {
	if !r.IsIntersecting(o) {
		return Range{}, false
	}
	start, end := r.Start, r.End
	if r.ContainsPosition(o.Start) {
		start = o.Start
	}
	if r.ContainsPosition(o.End) {
		end = o.End
	}
	return NewRange(start, end), true
}

// TransformedByInsertion returns r after howMany offsets were inserted at at.
// With spread set and at strictly inside r, the range is split around the
// inserted content.
func (r Range) TransformedByInsertion(at Position, howMany int, spread bool) []Range {
	if spread && r.ContainsPosition(at) {
		return []Range{
			NewRange(r.Start, at),
			NewRange(at.ShiftedBy(howMany), r.End.TransformedByInsertion(at, howMany)),
		}
	}
	t := NewRange(r.Start, r.End)
	t.Start = t.Start.TransformedByInsertion(at, howMany)
	t.End = t.End.TransformedByInsertion(at, howMany)
	return []Range{t}
}

// TransformedByDeletion returns r after howMany offsets were removed at at.
// The second result is false when the whole range was removed.
func (r Range) TransformedByDeletion(at Position, howMany int) (Range, bool) {
	start, okStart := r.Start.TransformedByDeletion(at, howMany)
	end, okEnd := r.End.TransformedByDeletion(at, howMany)
	if !okStart && !okEnd {
		return Range{}, false
	}
	if !okStart {
		start = at
	}
	if !okEnd {
		end = at
	}
	return NewRange(start, end), true
}

// TransformedByMove returns r after howMany offsets at source were moved to
// target. The result may consist of several ranges; with spread set the part
// that receives moved content is split around it.
func (r Range) TransformedByMove(source, target Position, howMany int, spread bool) []Range {
	if r.IsCollapsed() {
		p := r.Start.TransformedByMove(source, target, howMany)
		return []Range{NewRange(p, p)}
	}
	moveRange := RangeFromShift(source, howMany)
	insertAt, ok := target.TransformedByDeletion(source, howMany)
	if !ok {
		return []Range{r.Clone()}
	}

	// Part of the range moved towards the range itself: keep it together.
	if r.ContainsPosition(target) && !spread {
		if moveRange.ContainsPosition(r.Start) || moveRange.ContainsPosition(r.End) {
			start := r.Start.TransformedByMove(source, target, howMany)
			end := r.End.TransformedByMove(source, target, howMany)
			return []Range{NewRange(start, end)}
		}
	}

	var result []Range
	diffs := r.Difference(moveRange)
	common, hasCommon := r.Intersection(moveRange)

	var diff *Range
	switch len(diffs) {
	case 1:
		s, _ := diffs[0].Start.TransformedByDeletion(source, howMany)
		e, _ := diffs[0].End.TransformedByDeletion(source, howMany)
		d := NewRange(s, e)
		diff = &d
	case 2:
		e, _ := r.End.TransformedByDeletion(source, howMany)
		d := NewRange(r.Start, e)
		diff = &d
	}
	if diff != nil {
		result = diff.TransformedByInsertion(insertAt, howMany, hasCommon || spread)
	}
	if hasCommon {
		moved := NewRange(
			common.Start.Combined(moveRange.Start, insertAt),
			common.End.Combined(moveRange.Start, insertAt),
		)
		if len(result) == 2 {
			result = []Range{result[0], moved, result[1]}
		} else {
			result = append(result, moved)
		}
	}
	return result
}

// JoinRanges merges the first range with neighbours that touch it. It is
// used to turn the pieces of a transformed range back into one.
func JoinRanges(ranges []Range) Range {
	if len(ranges) == 1 {
		return ranges[0].Clone()
	}
	ref := ranges[0]
	sorted := slices.Clone(ranges)
	slices.SortStableFunc(sorted, func(a, b Range) int {
		switch a.Start.Compare(b.Start) {
		case OrderAfter:
			return 1
		case OrderBefore:
			return -1
		}
		return 0
	})
	refIndex := 0
	for i := range sorted {
		if sorted[i].Start.IsEqual(ref.Start) && sorted[i].End.IsEqual(ref.End) {
			refIndex = i
			break
		}
	}
	result := NewRange(ref.Start, ref.End)
	for i := refIndex - 1; i >= 0; i-- {
		if !sorted[i].End.IsEqual(result.Start) {
			break
		}
		result.Start = sorted[i].Start.Clone()
	}
	for i := refIndex + 1; i < len(sorted); i++ {
		if !sorted[i].Start.IsEqual(result.End) {
			break
		}
		result.End = sorted[i].End.Clone()
	}
	return result
}

func (r Range) String() string {
	return "[" + r.Start.String() + " - " + r.End.String() + "]"
}

type jsonRange struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonRange{Start: r.Start, End: r.End})
}

func (r *Range) UnmarshalJSON(data []byte) error {
	var jr jsonRange
	if err := json.Unmarshal(data, &jr); err != nil {
		return err
	}
	*r = Range{Start: jr.Start, End: jr.End}
	return nil
}
