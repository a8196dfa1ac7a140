package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type integrationRows struct {
	rows [][]string
}

func (r integrationRows) Headers() []string { return []string{"Destination", "Enabled"} }
func (r integrationRows) Rows() [][]string  { return r.rows }

func TestPrintTable(t *testing.T) {
	data := integrationRows{rows: [][]string{
		{"notes", "yes"},
		{"webhook", "no"},
	}}

	var buf bytes.Buffer
	err := PrintTable(&buf, data)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "DESTINATION")
	assert.Contains(t, output, "ENABLED")
	assert.Contains(t, output, "notes")
	assert.Contains(t, output, "webhook")
}

func TestSimpleTable(t *testing.T) {
	pairs := [][2]string{
		{"Tier", "free"},
		{"Used", "12 / 30"},
	}

	var buf bytes.Buffer
	err := SimpleTable(&buf, pairs)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Tier")
	assert.Contains(t, output, "free")
	assert.Contains(t, output, "Used")
	assert.Contains(t, output, "12 / 30")
}
