// Package dom models the rendered element tree that scopes are linked to.
//
// Documents are parsed with golang.org/x/net/html. Linking a compiled template
// to a scope binds the fragment's root element to the scope's id (the owner
// back-reference) and marks it with a structural class, so the element can be
// found again by class query and traced back to the scope that owns it.
package dom
