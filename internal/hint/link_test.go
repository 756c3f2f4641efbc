package hint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeprobe/internal/dom"
)

func TestDescriber(t *testing.T) {
	doc, err := dom.ParseString(`<html><body>
<div class="ng-scope" ng-app="shop" ng-controller="Cart" id="x"></div>
<li class="ng-scope" ng-repeat="item in items" ng-include=""></li>
<p class="ng-scope" title="plain"></p>
</body></html>`)
	require.NoError(t, err)

	els := doc.QueryClass("ng-scope")
	require.Len(t, els, 3)
	for i, el := range els {
		doc.Bind(el, int64(i+2))
	}

	d := describer{doc: doc, class: DefaultMarkerClass, attrs: DefaultMarkerAttributes}

	assert.Equal(t, `ng-app="shop" ng-controller="Cart"`, d.describe(2))
	assert.Equal(t, `ng-repeat="item in items"`, d.describe(3))
	assert.Equal(t, "scope.id=4", d.describe(4), "no marker attributes")
	assert.Equal(t, "scope.id=9", d.describe(9), "no element")
	assert.Equal(t, "scope.id=2", describer{}.describe(2), "no document")
}

func TestDescriber_CustomAttributes(t *testing.T) {
	doc, err := dom.ParseString(`<html><body><section class="vm" data-view="list"></section></body></html>`)
	require.NoError(t, err)
	doc.Bind(doc.QueryClass("vm")[0], 5)

	d := describer{doc: doc, class: "vm", attrs: []string{"data-view"}}
	assert.Equal(t, `data-view="list"`, d.describe(5))
}
