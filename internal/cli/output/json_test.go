package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type integrationView struct {
	Destination string `json:"destination"`
	Enabled     bool   `json:"enabled"`
}

func TestPrintJSON(t *testing.T) {
	data := integrationView{Destination: "webhook", Enabled: true}

	var buf bytes.Buffer
	err := PrintJSON(&buf, data)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `"destination": "webhook"`)
	assert.Contains(t, output, `"enabled": true`)
}

func TestPrintJSONArray(t *testing.T) {
	data := []integrationView{
		{Destination: "notes"},
		{Destination: "webhook"},
	}

	var buf bytes.Buffer
	err := PrintJSON(&buf, data)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `"destination": "notes"`)
	assert.Contains(t, output, `"destination": "webhook"`)
}
