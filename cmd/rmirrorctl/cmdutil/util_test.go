package cmdutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gottino/rmirror-cloud/internal/cli/output"
)

type testRows struct{ rows [][]string }

func (t testRows) Headers() []string { return []string{"NAME", "STATE"} }
func (t testRows) Rows() [][]string  { return t.rows }

func withOutputFormat(t *testing.T, format string) {
	t.Helper()
	prev := Flags.Output
	Flags.Output = format
	t.Cleanup(func() { Flags.Output = prev })
}

func TestGetOutputFormatParsed(t *testing.T) {
	withOutputFormat(t, "json")
	format, err := GetOutputFormatParsed()
	require.NoError(t, err)
	assert.Equal(t, output.FormatJSON, format)

	withOutputFormat(t, "bogus")
	_, err = GetOutputFormatParsed()
	assert.Error(t, err)
}

func TestPrintOutputJSON(t *testing.T) {
	withOutputFormat(t, "json")

	var buf bytes.Buffer
	err := PrintOutput(&buf, map[string]string{"name": "notes"}, false, "none", testRows{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"name": "notes"`)
}

func TestPrintOutputTableEmpty(t *testing.T) {
	withOutputFormat(t, "table")

	var buf bytes.Buffer
	err := PrintOutput(&buf, nil, true, "No integrations configured.", testRows{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No integrations configured.")
}

func TestPrintOutputTableWithData(t *testing.T) {
	withOutputFormat(t, "table")

	var buf bytes.Buffer
	renderer := testRows{rows: [][]string{{"notes", "enabled"}}}
	err := PrintOutput(&buf, nil, false, "empty", renderer)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, strings.ToUpper(out), "NAME")
	assert.Contains(t, out, "notes")
}

func TestBoolToYesNo(t *testing.T) {
	assert.Equal(t, "yes", BoolToYesNo(true))
	assert.Equal(t, "no", BoolToYesNo(false))
}

func TestEmptyOr(t *testing.T) {
	assert.Equal(t, "value", EmptyOr("value", "-"))
	assert.Equal(t, "-", EmptyOr("", "-"))
}
