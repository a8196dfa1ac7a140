// Package fingerprint computes deterministic content hashes for sync items.
//
// Every fingerprint is the SHA-256 hex digest of a canonical JSON
// serialization of the item's semantic content: map keys sorted (Go's
// encoding/json marshals maps in key order), string fields trimmed of
// surrounding whitespace, UTF-8 throughout. Timestamps and mutable ids are
// excluded, so two semantically equal items always hash identically
// regardless of which process produced them.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// PageText is one page's contribution to a notebook aggregate fingerprint.
type PageText struct {
	PageNumber int
	Text       string
	Confidence float64
}

// Notebook fingerprints a notebook aggregate: title, document type, page
// count and the ordered page texts.
func Notebook(title, documentType string, pages []PageText) string {
	pageList := make([]map[string]any, len(pages))
	for i, p := range pages {
		pageList[i] = map[string]any{
			"page_number": p.PageNumber,
			"text":        strings.TrimSpace(p.Text),
			"confidence":  p.Confidence,
		}
	}
	return digest(map[string]any{
		"title":         strings.TrimSpace(title),
		"document_type": strings.TrimSpace(documentType),
		"page_count":    len(pages),
		"pages":         pageList,
	})
}

// Page fingerprints a single page's transcribed text.
func Page(notebookUUID string, pageNumber int, text string) string {
	return digest(map[string]any{
		"notebook_uuid": strings.TrimSpace(notebookUUID),
		"page_number":   pageNumber,
		"text":          strings.TrimSpace(text),
	})
}

// SourceBlob fingerprints the raw bytes of a device file.
func SourceBlob(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Annotation fingerprints an extracted todo or highlight. Completion state
// is deliberately excluded so toggling a checkbox does not perturb the hash.
func Annotation(text, notebookUUID string, pageNumber int) string {
	return digest(map[string]any{
		"text":          strings.TrimSpace(text),
		"notebook_uuid": strings.TrimSpace(notebookUUID),
		"page_number":   pageNumber,
	})
}

// digest marshals v to canonical JSON and returns the SHA-256 hex digest.
func digest(v any) string {
	// Maps of string keys marshal deterministically (sorted) in Go.
	data, err := json.Marshal(v)
	if err != nil {
		// Only unmarshalable types can fail here, and we never pass those.
		panic("fingerprint: marshal: " + err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
