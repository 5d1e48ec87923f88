package model

import "testing"

func pos(path ...int) Position { return NewPosition("main", path...) }

func TestComparePaths(t *testing.T) {
	tests := []struct {
		name  string
		a, b  []int
		want  PathRelation
		index int
	}{
		{"same", []int{1, 2}, []int{1, 2}, PathSame, 0},
		{"prefix", []int{1}, []int{1, 2}, PathPrefix, 0},
		{"extension", []int{1, 2, 0}, []int{1, 2}, PathExtension, 0},
		{"differ", []int{1, 2}, []int{1, 3}, PathDiffer, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, i := ComparePaths(tt.a, tt.b)
			if got != tt.want || i != tt.index {
				t.Errorf("ComparePaths = %d,%d, want %d,%d", got, i, tt.want, tt.index)
			}
		})
	}
}

func TestPosition_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b Position
		want Order
	}{
		{"same", pos(1, 2), pos(1, 2), OrderSame},
		{"before sibling", pos(1, 2), pos(1, 3), OrderBefore},
		{"ancestor first", pos(1), pos(1, 0), OrderBefore},
		{"after", pos(2), pos(1, 5), OrderAfter},
		{"other root", pos(0), NewPosition("other", 0), OrderDifferent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Compare(tt.b); got != tt.want {
				t.Errorf("Compare = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPosition_TransformedByInsertion(t *testing.T) {
	tests := []struct {
		name string
		p    Position
		at   Position
		n    int
		want Position
	}{
		{"before insertion", pos(0, 1), pos(0, 3), 2, pos(0, 1)},
		{"after insertion", pos(0, 5), pos(0, 3), 2, pos(0, 7)},
		{"at insertion", pos(0, 3), pos(0, 3), 2, pos(0, 5)},
		{"at insertion sticking back", pos(0, 3).WithStickiness(StickToPrevious), pos(0, 3), 2, pos(0, 3)},
		{"ancestor shifted", pos(2, 1), pos(1), 1, pos(3, 1)},
		{"inside other element", pos(2, 1), pos(1, 0), 4, pos(2, 1)},
		{"other root", pos(2), NewPosition(GraveyardRoot, 0), 1, pos(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.TransformedByInsertion(tt.at, tt.n); !got.IsEqual(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPosition_TransformedByDeletion(t *testing.T) {
	tests := []struct {
		name   string
		p      Position
		at     Position
		n      int
		want   Position
		wantOK bool
	}{
		{"before", pos(0, 1), pos(0, 3), 2, pos(0, 1), true},
		{"after", pos(0, 6), pos(0, 3), 2, pos(0, 4), true},
		{"at start", pos(0, 3), pos(0, 3), 2, pos(0, 3), true},
		{"at end", pos(0, 5), pos(0, 3), 2, pos(0, 3), true},
		{"inside", pos(0, 4), pos(0, 3), 2, Position{}, false},
		{"inside removed element", pos(1, 2), pos(1), 1, Position{}, false},
		{"ancestor shifted", pos(3, 2), pos(1), 1, pos(2, 2), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.p.TransformedByDeletion(tt.at, tt.n)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.IsEqual(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPosition_TransformedByMove(t *testing.T) {
	tests := []struct {
		name           string
		p              Position
		source, target Position
		n              int
		want           Position
	}{
		{"inside moved range", pos(1, 2), pos(1), pos(3), 1, pos(2, 2)},
		{"after source", pos(3), pos(0), pos(5), 2, pos(1)},
		{"into graveyard", pos(0, 1), pos(0), NewPosition(GraveyardRoot, 0), 1, NewPosition(GraveyardRoot, 0, 1)},
		{"at source sticking forward", pos(1).WithStickiness(StickToNext), pos(1), pos(4), 1, pos(3)},
		{"at source", pos(1), pos(1), pos(4), 1, pos(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.TransformedByMove(tt.source, tt.target, tt.n); !got.IsEqual(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPosition_JSON(t *testing.T) {
	p := pos(1, 2).WithStickiness(StickToPrevious)
	data, err := p.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"root":"main","path":[1,2],"stickiness":"toPrevious"}`; string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
	var got Position
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatal(err)
	}
	if !got.IsEqual(p) || got.Stickiness != StickToPrevious {
		t.Errorf("decoded %s (%s)", got, got.Stickiness)
	}
	if err := got.UnmarshalJSON([]byte(`{"root":"main","path":[]}`)); err == nil {
		t.Error("empty path accepted")
	}
}
