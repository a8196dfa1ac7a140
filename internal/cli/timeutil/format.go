// Package timeutil holds shared time formatting for rmirrorctl output.
package timeutil

// LocalTimeFormat renders local timestamps in command output, e.g. the
// last-synced column of the integration list.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"
