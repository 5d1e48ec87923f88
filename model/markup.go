package model

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// TextTag wraps text runs that carry attributes in the markup notation.
const TextTag = "text"

// ParseMarkup reads the markup notation used for fixtures and seeds:
//
//	<paragraph align="center">Foo <text bold="true">Bar</text></paragraph>
//
// Element and attribute names are case-insensitive and read in lower case.
// Attribute values are JSON literals; anything else is taken as a string.
func ParseMarkup(s string) ([]*Node, error) {
	z := html.NewTokenizer(strings.NewReader(s))
	top := &Node{kind: ElementNode}
	stack := []*Node{top}
	var textAttrs map[string]Value
	inText := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				if len(stack) != 1 || inText {
					return nil, fmt.Errorf("unclosed element: %w", ErrMarkup)
				}
				return detachChildren(top), nil
			}
			return nil, fmt.Errorf("%v: %w", z.Err(), ErrMarkup)

		case html.TextToken:
			data := string(z.Text())
			if data == "" {
				continue
			}
			parent := stack[len(stack)-1]
			var attrs map[string]Value
			if inText {
				attrs = textAttrs
			}
			appendNormalized(parent, NewText(data, attrs))

		case html.StartTagToken, html.SelfClosingTagToken:
			name, attrs := readTag(z)
			if inText {
				return nil, fmt.Errorf("element <%s> inside <%s>: %w", name, TextTag, ErrMarkup)
			}
			if name == TextTag {
				if tt == html.StartTagToken {
					inText = true
					textAttrs = attrs
				}
				continue
			}
			el := NewElement(name, attrs)
			parent := stack[len(stack)-1]
			appendNormalized(parent, el)
			if tt == html.StartTagToken {
				stack = append(stack, el)
			}

		case html.EndTagToken:
			raw, _ := z.TagName()
			name := string(raw)
			if name == TextTag && inText {
				inText = false
				textAttrs = nil
				continue
			}
			cur := stack[len(stack)-1]
			if len(stack) == 1 || cur.name != name {
				return nil, fmt.Errorf("unexpected </%s>: %w", name, ErrMarkup)
			}
			stack = stack[:len(stack)-1]
		}
	}
}

// MustParseMarkup is ParseMarkup for fixtures known to be valid.
func MustParseMarkup(s string) []*Node {
	nodes, err := ParseMarkup(s)
	if err != nil {
		panic(err)
	}
	return nodes
}

func readTag(z *html.Tokenizer) (string, map[string]Value) {
	raw, hasAttr := z.TagName()
	name := string(raw)
	attrs := map[string]Value{}
	for hasAttr {
		var k, v []byte
		k, v, hasAttr = z.TagAttr()
		attrs[string(k)] = ParseValue(string(v))
	}
	return name, attrs
}

func appendNormalized(parent, child *Node) {
	parent.insertChildren(len(parent.children), []*Node{child})
	parent.mergeAt(len(parent.children) - 1)
}

func detachChildren(n *Node) []*Node {
	out := n.children
	n.children = nil
	for _, c := range out {
		c.parent = nil
	}
	return out
}

// Stringify renders nodes in the markup notation.
func Stringify(nodes []*Node) string {
	var b strings.Builder
	for _, n := range nodes {
		writeNode(&b, n)
	}
	return b.String()
}

func writeNode(b *strings.Builder, n *Node) {
	if n.kind == TextNode {
		if len(n.attrs) == 0 {
			b.WriteString(html.EscapeString(n.data))
			return
		}
		b.WriteString("<" + TextTag)
		writeAttrs(b, n)
		b.WriteString(">" + html.EscapeString(n.data) + "</" + TextTag + ">")
		return
	}
	b.WriteString("<" + n.name)
	writeAttrs(b, n)
	if len(n.children) == 0 {
		b.WriteString("></" + n.name + ">")
		return
	}
	b.WriteString(">")
	for _, c := range n.children {
		writeNode(b, c)
	}
	b.WriteString("</" + n.name + ">")
}

func writeAttrs(b *strings.Builder, n *Node) {
	for _, k := range n.AttrKeys() {
		v := n.attrs[k]
		text := v.String()
		if s, ok := v.AsString(); ok {
			text = s
		}
		fmt.Fprintf(b, " %s=\"%s\"", k, html.EscapeString(text))
	}
}
