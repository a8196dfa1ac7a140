package destination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndBuild(t *testing.T) {
	r := NewRegistry()

	err := r.Register("fake", func(_ map[string]string) (Adapter, error) {
		return NewFake(), nil
	})
	require.NoError(t, err)

	assert.True(t, r.Known("fake"))
	assert.False(t, r.Known("missing"))

	a, err := r.Build("fake", nil)
	require.NoError(t, err)
	assert.Equal(t, "fake", a.Name())

	_, err = r.Build("missing", nil)
	assert.Error(t, err)
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()

	factory := func(_ map[string]string) (Adapter, error) { return NewFake(), nil }
	require.NoError(t, r.Register("fake", factory))
	assert.Error(t, r.Register("fake", factory))
}

func TestRegistryNilFactory(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("fake", nil))
}

func TestDefaultRegistryNames(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"notes", "webhook"}, r.Names())
}
