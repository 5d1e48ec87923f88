package model

import (
	"errors"
	"testing"
)

func newTestTree(t *testing.T, markup string) *Tree {
	t.Helper()
	tree := NewTree()
	if _, err := tree.AddRoot("main", ""); err != nil {
		t.Fatal(err)
	}
	nodes, err := ParseMarkup(markup)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tree.Insert(pos(0), nodes); err != nil {
		t.Fatal(err)
	}
	return tree
}

func content(tree *Tree, root string) string {
	return Stringify(tree.Root(root).Children())
}

func TestTree_InsertMergesText(t *testing.T) {
	tree := newTestTree(t, "<paragraph>Fo</paragraph>")
	if _, err := tree.Insert(pos(0, 2), []*Node{NewText("o", nil)}); err != nil {
		t.Fatal(err)
	}
	p := tree.Root("main").Child(0)
	if p.ChildCount() != 1 || p.Child(0).Data() != "Foo" {
		t.Errorf("children = %s", Stringify(p.Children()))
	}

	if _, err := tree.Insert(pos(0, 1), []*Node{NewText("x", map[string]Value{"bold": Bool(true)})}); err != nil {
		t.Fatal(err)
	}
	if got, want := content(tree, "main"), `<paragraph>F<text bold="true">x</text>oo</paragraph>`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestTree_Errors(t *testing.T) {
	tree := newTestTree(t, "<paragraph>Foo</paragraph>")
	tests := []struct {
		name string
		p    Position
		want error
	}{
		{"unknown root", NewPosition("nope", 0), ErrUnknownRoot},
		{"past the end", pos(0, 4), ErrOutOfBounds},
		{"through text", pos(0, 1, 0), ErrInvalidPath},
		{"missing element", pos(3, 0), ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tree.CheckPosition(tt.p); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := tree.AddRoot("main", ""); !errors.Is(err, ErrRootExists) {
		t.Errorf("AddRoot twice: err = %v", err)
	}
}

func TestTree_Move(t *testing.T) {
	tree := newTestTree(t, "<paragraph>Foo</paragraph><paragraph>Bar</paragraph>")
	if _, err := tree.Move(rng(pos(0, 1), pos(0, 3)), pos(1, 3)); err != nil {
		t.Fatal(err)
	}
	if got, want := content(tree, "main"), "<paragraph>F</paragraph><paragraph>Baroo</paragraph>"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if _, err := tree.Move(rng(pos(0), pos(1)), NewPosition(GraveyardRoot, 0)); err != nil {
		t.Fatal(err)
	}
	if got := content(tree, GraveyardRoot); got != "<paragraph>F</paragraph>" {
		t.Errorf("graveyard = %s", got)
	}
}

func TestTree_SetAttribute(t *testing.T) {
	tree := newTestTree(t, "<paragraph>Foo Bar</paragraph>")
	if err := tree.SetAttribute(rng(pos(0, 4), pos(0, 7)), "bold", Bool(true)); err != nil {
		t.Fatal(err)
	}
	if err := tree.SetAttribute(rng(pos(0, 0), pos(0, 3)), "bold", Bool(true)); err != nil {
		t.Fatal(err)
	}
	if err := tree.SetAttribute(rng(pos(0, 3), pos(0, 4)), "bold", Bool(true)); err != nil {
		t.Fatal(err)
	}
	// Equal neighbours merge back into one run.
	p := tree.Root("main").Child(0)
	if p.ChildCount() != 1 {
		t.Errorf("got %d text runs, want 1: %s", p.ChildCount(), Stringify(p.Children()))
	}
	if err := tree.SetAttribute(rng(pos(0, 0), pos(0, 7)), "bold", Null()); err != nil {
		t.Fatal(err)
	}
	if got := content(tree, "main"); got != "<paragraph>Foo Bar</paragraph>" {
		t.Errorf("got %s", got)
	}
}

func TestTree_MinimalFlatRanges(t *testing.T) {
	tree := newTestTree(t, "<paragraph>Foo</paragraph><image></image><paragraph>Bar</paragraph>")
	got, err := tree.MinimalFlatRanges(rng(pos(0, 1), pos(2, 2)))
	if err != nil {
		t.Fatal(err)
	}
	want := []Range{
		rng(pos(0, 1), pos(0, 3)),
		rng(pos(1), pos(2)),
		rng(pos(2, 0), pos(2, 2)),
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].IsEqual(want[i]) {
			t.Errorf("range %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestTree_Navigation(t *testing.T) {
	tree := newTestTree(t, "<paragraph>Foo</paragraph><blockquote><paragraph>Bar</paragraph></blockquote>")
	inner := tree.NodeAfter(pos(1, 0))
	if inner == nil || inner.Name() != "paragraph" {
		t.Fatalf("NodeAfter = %v", inner)
	}
	before, err := tree.PositionBefore(inner)
	if err != nil || !before.IsEqual(pos(1, 0)) {
		t.Errorf("PositionBefore = %s, %v", before, err)
	}
	in, err := tree.RangeIn(inner)
	if err != nil || !in.IsEqual(rng(pos(1, 0, 0), pos(1, 0, 3))) {
		t.Errorf("RangeIn = %s, %v", in, err)
	}
	if n := tree.NodeBefore(pos(1)); n == nil || n.Name() != "paragraph" {
		t.Errorf("NodeBefore = %v", n)
	}
	if n := tree.NodeAfter(pos(0, 1)); n != nil {
		t.Errorf("NodeAfter inside text = %v, want nil", n)
	}
}

func TestTree_Clone(t *testing.T) {
	tree := newTestTree(t, "<paragraph>Foo</paragraph>")
	c := tree.Clone()
	if _, err := c.Insert(pos(1), []*Node{NewElement("image", nil)}); err != nil {
		t.Fatal(err)
	}
	if got := content(tree, "main"); got != "<paragraph>Foo</paragraph>" {
		t.Errorf("original changed: %s", got)
	}
}
