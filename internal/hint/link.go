package hint

import (
	"fmt"
	"strings"

	"github.com/roach88/scopeprobe/internal/dom"
	"github.com/roach88/scopeprobe/internal/scope"
)

// DefaultMarkerAttributes are the structural attributes a descriptor is
// built from, in output order.
var DefaultMarkerAttributes = []string{"ng-app", "ng-controller", "ng-repeat", "ng-include"}

// DefaultMarkerClass marks elements that carry a scope.
const DefaultMarkerClass = scope.ScopeClass

// describer derives a short label for a scope from its rendered element.
type describer struct {
	doc   *dom.Document
	class string
	attrs []string
}

// describe returns `attr="value"` pairs for each non-empty marker attribute
// of the element bound to id, joined by spaces, or "scope.id=<id>" when the
// element is missing or carries none of them.
func (d describer) describe(id scope.ID) string {
	if d.doc != nil {
		if el := d.element(id); el != nil {
			var parts []string
			for _, name := range d.attrs {
				if v, ok := el.Attr(name); ok && v != "" {
					parts = append(parts, name+`="`+v+`"`)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, " ")
			}
		}
	}
	return fmt.Sprintf("scope.id=%d", id)
}

func (d describer) element(id scope.ID) *dom.Element {
	for _, el := range d.doc.QueryClass(d.class) {
		if owner, ok := el.Owner(); ok && owner == int64(id) {
			return el
		}
	}
	return nil
}
