package destination

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return s
}

func TestSealerRoundTrip(t *testing.T) {
	s := testSealer(t)

	settings := map[string]string{
		"base_url": "https://notes.example.com",
		"token":    "secret-token",
	}

	salt, err := NewSalt()
	require.NoError(t, err)

	blob, err := s.Seal(settings, salt)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "secret-token")

	got, err := s.Open(blob, salt)
	require.NoError(t, err)
	assert.Equal(t, settings, got)
}

func TestSealerWrongSalt(t *testing.T) {
	s := testSealer(t)

	salt, err := NewSalt()
	require.NoError(t, err)

	blob, err := s.Seal(map[string]string{"token": "x"}, salt)
	require.NoError(t, err)

	otherSalt, err := NewSalt()
	require.NoError(t, err)

	_, err = s.Open(blob, otherSalt)
	assert.Error(t, err)
}

func TestSealerShortSecret(t *testing.T) {
	_, err := NewSealer([]byte("too short"))
	assert.Error(t, err)
}

func TestSealerTamperedBlob(t *testing.T) {
	s := testSealer(t)

	salt, err := NewSalt()
	require.NoError(t, err)

	blob, err := s.Seal(map[string]string{"token": "x"}, salt)
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0xff
	_, err = s.Open(blob, salt)
	assert.Error(t, err)
}
