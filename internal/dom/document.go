package dom

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed element tree plus the owner back-references set by
// template linking.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Document struct {
	mu     sync.Mutex
	root   *html.Node
	body   *html.Node
	owners map[*html.Node]int64
}

// NewDocument creates an empty document with a <body>.
func NewDocument() *Document {
	doc, err := ParseString("<html><head></head><body></body></html>")
	if err != nil {
		// the literal above is always parseable
		panic(err)
	}
	return doc
}

// ParseString parses a full HTML document.
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// Parse parses a full HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	body := findFirst(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	})
	if body == nil {
		return nil, fmt.Errorf("parse document: no <body> element")
	}
	return &Document{
		root:   root,
		body:   body,
		owners: make(map[*html.Node]int64),
	}, nil
}

// ParseFragment parses markup in a <body> context and returns its top-level
// element nodes. Text and comment nodes at the top level are discarded.
func ParseFragment(markup string) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	elements := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			elements = append(elements, n)
		}
	}
	return elements, nil
}

// Append attaches a detached node as the last child of <body> and returns it
// as an Element.
func (d *Document) Append(n *html.Node) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	d.body.AppendChild(n)
	return &Element{doc: d, node: n}
}

// Remove detaches an element and drops the owner back-references of its
// subtree.
func (d *Document) Remove(el *Element) {
	if el == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	walk(el.node, func(n *html.Node) {
		delete(d.owners, n)
	})
	if el.node.Parent != nil {
		el.node.Parent.RemoveChild(el.node)
	}
}

// Bind sets the owner back-reference of an element.
func (d *Document) Bind(el *Element, owner int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[el.node] = owner
}

// QueryClass returns every element carrying class, in document order.
func (d *Document) QueryClass(class string) []*Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*Element
	walk(d.root, func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, class) {
			out = append(out, &Element{doc: d, node: n})
		}
	})
	return out
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

func (d *Document) owner(n *html.Node) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.owners[n]
	return id, ok
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func classes(n *html.Node) []string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return strings.Fields(a.Val)
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	return slices.Contains(classes(n), class)
}
