package tools

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardaudit/internal/snapshot"
)

func TestRegistryCoversSurface(t *testing.T) {
	r := NewRegistry(NewBinding(snapshot.FromFiles(nil)))

	for _, d := range Surface() {
		fn, ok := r.Lookup(d.Name)
		require.True(t, ok, "surface tool %s not registered", d.Name)
		assert.Equal(t, reflect.Func, fn.Kind())
	}
	assert.Len(t, r.Names(), len(Surface()))
}

func TestRegistryExportsIncludeMatchType(t *testing.T) {
	r := NewRegistry(NewBinding(snapshot.FromFiles(nil)))

	exports := r.Exports()
	require.Contains(t, exports, "Match")
	assert.Len(t, exports, len(Surface())+1)
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry(NewBinding(snapshot.FromFiles(nil)))

	called := false
	r.Register("SearchText", func(query string, maxResults int) []Match {
		called = true
		return nil
	})
	fn, ok := r.Lookup("SearchText")
	require.True(t, ok)
	fn.Call([]reflect.Value{reflect.ValueOf("x"), reflect.ValueOf(1)})
	assert.True(t, called)
}

func TestRegistryLookupUnknown(t *testing.T) {
	r := NewRegistry(NewBinding(snapshot.FromFiles(nil)))
	_, ok := r.Lookup("ReadFile")
	assert.False(t, ok)
}
