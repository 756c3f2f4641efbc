package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Element is a handle on one element node of a Document.
// Attribute and class mutations are not synchronized; perform them from the
// host loop that owns the document.
type Element struct {
	doc  *Document
	node *html.Node
}

// Tag returns the element's tag name.
func (e *Element) Tag() string {
	return e.node.Data
}

// Attr returns the value of an attribute and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(name, value string) {
	for i, a := range e.node.Attr {
		if a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

// HasClass reports whether the element carries class.
func (e *Element) HasClass(class string) bool {
	return hasClass(e.node, class)
}

// AddClass adds class if it is not already present.
func (e *Element) AddClass(class string) {
	if e.HasClass(class) {
		return
	}
	current := classes(e.node)
	e.SetAttr("class", strings.Join(append(current, class), " "))
}

// Owner returns the id of the scope this element is bound to.
func (e *Element) Owner() (int64, bool) {
	if e.doc == nil {
		return 0, false
	}
	return e.doc.owner(e.node)
}
