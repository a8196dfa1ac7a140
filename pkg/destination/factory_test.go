package destination

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	s, err := NewSealer(bytes.Repeat([]byte{0x01}, 32))
	require.NoError(t, err)
	return NewResolver(DefaultRegistry(), s)
}

func TestResolverRoundTrip(t *testing.T) {
	r := testResolver(t)

	blob, salt, err := r.Seal(map[string]string{
		"endpoint": "https://hooks.example.com/in",
	})
	require.NoError(t, err)

	adapter, err := r.Resolve(&models.IntegrationConfig{
		Destination:   "webhook",
		Enabled:       true,
		EncryptedBlob: blob,
		Salt:          salt,
	})
	require.NoError(t, err)
	assert.Equal(t, "webhook", adapter.Name())
}

func TestResolverDisabledIntegration(t *testing.T) {
	r := testResolver(t)

	blob, salt, err := r.Seal(map[string]string{"endpoint": "https://x"})
	require.NoError(t, err)

	_, err = r.Resolve(&models.IntegrationConfig{
		Destination:   "webhook",
		Enabled:       false,
		EncryptedBlob: blob,
		Salt:          salt,
	})
	assert.Error(t, err)
}

func TestResolverUnknownDestination(t *testing.T) {
	r := testResolver(t)

	blob, salt, err := r.Seal(map[string]string{"endpoint": "https://x"})
	require.NoError(t, err)

	_, err = r.Resolve(&models.IntegrationConfig{
		Destination:   "nope",
		Enabled:       true,
		EncryptedBlob: blob,
		Salt:          salt,
	})
	assert.Error(t, err)
}
