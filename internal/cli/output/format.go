// Package output renders rmirrorctl command results. List and show commands
// default to a table and switch to JSON or YAML via the global --output flag.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format selects how a command renders its result.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat maps the --output flag value to a Format. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// Success prints msg, green when color is enabled. Status lines like this are
// only emitted in table mode so JSON and YAML payloads stay parseable.
func Success(w io.Writer, msg string, color bool) {
	if color {
		_, _ = fmt.Fprintf(w, "\033[32m%s\033[0m\n", msg)
		return
	}
	_, _ = fmt.Fprintln(w, msg)
}
