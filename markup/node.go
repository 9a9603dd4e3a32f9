// Package markup locates product data in parsed HTML.
//
// The lookups in extractor.go only depend on the Node interface; Parse backs
// it with goquery.
package markup

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Node is a queryable element of a parsed document.
type Node interface {
	// FindFirst returns the first descendant with the given tag name.
	FindFirst(tag string) (Node, bool)
	// FindFirstMarked returns the first descendant carrying the marker class.
	// An empty tag matches any element.
	FindFirstMarked(tag, marker string) (Node, bool)
	// Children returns the direct children with the given tag name.
	Children(tag string) []Node
	// Attr returns the value of an attribute and whether it is set.
	Attr(name string) (string, bool)
	// Text returns the combined text of the node and its descendants.
	Text() string
}

// Parse builds a Node tree from an HTML document.
func Parse(html string) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return selectionNode{sel: doc.Selection}, nil
}

type selectionNode struct {
	sel *goquery.Selection
}

func (n selectionNode) FindFirst(tag string) (Node, bool) {
	return wrapFirst(n.sel.Find(tag))
}

func (n selectionNode) FindFirstMarked(tag, marker string) (Node, bool) {
	candidates := n.sel.Find("*")
	if tag != "" {
		candidates = n.sel.Find(tag)
	}
	matched := candidates.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.HasClass(marker)
	})
	return wrapFirst(matched)
}

func (n selectionNode) Children(tag string) []Node {
	children := n.sel.ChildrenFiltered(tag)
	nodes := make([]Node, 0, children.Length())
	children.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, selectionNode{sel: s})
	})
	return nodes
}

func (n selectionNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n selectionNode) Text() string {
	return n.sel.Text()
}

func wrapFirst(sel *goquery.Selection) (Node, bool) {
	if sel.Length() == 0 {
		return nil, false
	}
	return selectionNode{sel: sel.First()}, true
}
