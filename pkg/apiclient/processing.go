package apiclient

import (
	"strconv"
	"time"
)

// PageUpload is one device page upload. Source is the raw page blob; PDF is
// the rendered document handed to OCR and may be empty.
type PageUpload struct {
	NotebookUUID string
	NotebookName string
	ParentUUID   string
	DocumentType string
	PageUUID     string
	PageNumber   int
	Source       []byte
	PDF          []byte
}

// UploadResult is the server's verdict on one upload.
//
// Status "pending_quota" is not an error: the page is stored server-side and
// will be transcribed when allowance frees up, so the agent must not retry.
type UploadResult struct {
	Status      string  `json:"status"`
	PageID      string  `json:"page_id"`
	ContentHash string  `json:"content_hash"`
	Text        string  `json:"text,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	PagesUsed   int     `json:"pages_used,omitempty"`
	CacheHit    bool    `json:"cache_hit,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Deferred reports whether the upload was parked awaiting quota.
func (r *UploadResult) Deferred() bool {
	return r.Status == "pending_quota"
}

// UploadPage uploads one page for processing.
func (c *Client) UploadPage(up *PageUpload) (*UploadResult, error) {
	fields := map[string]string{
		"notebook_uuid": up.NotebookUUID,
		"notebook_name": up.NotebookName,
		"parent_uuid":   up.ParentUUID,
		"document_type": up.DocumentType,
		"page_uuid":     up.PageUUID,
		"page_number":   strconv.Itoa(up.PageNumber),
	}
	files := map[string][]byte{
		"file": up.Source,
		"pdf":  up.PDF,
	}

	var result UploadResult
	if err := c.postMultipart("/v1/processing/rm-file", fields, files, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MetadataUpdate is a notebook rename/move without page content.
type MetadataUpdate struct {
	NotebookUUID string     `json:"notebook_uuid"`
	VisibleName  string     `json:"visible_name"`
	ParentUUID   *string    `json:"parent_uuid,omitempty"`
	DocumentType string     `json:"document_type,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// MetadataResult reports whether a metadata sync was scheduled.
type MetadataResult struct {
	SyncType string `json:"sync_type"` // queued or skipped
}

// UpdateMetadata pushes a notebook metadata change. Metadata never consumes
// quota.
func (c *Client) UpdateMetadata(update *MetadataUpdate) (*MetadataResult, error) {
	var result MetadataResult
	if err := c.post("/v1/processing/metadata/update", update, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
