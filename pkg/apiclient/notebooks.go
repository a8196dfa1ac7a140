package apiclient

// Notebook is one mirrored notebook.
type Notebook struct {
	ID           string  `json:"id"`
	NotebookUUID string  `json:"notebook_uuid"`
	VisibleName  string  `json:"visible_name"`
	ParentUUID   *string `json:"parent_uuid,omitempty"`
	DocumentType string  `json:"document_type,omitempty"`
	PageCount    int     `json:"page_count"`
}

// Page is one page of a mirrored notebook.
type Page struct {
	ID          string   `json:"id"`
	PageUUID    string   `json:"page_uuid"`
	PageNumber  int      `json:"page_number"`
	OCRStatus   string   `json:"ocr_status"`
	OCRText     *string  `json:"ocr_text,omitempty"`
	Confidence  *float64 `json:"ocr_confidence,omitempty"`
	ContentHash string   `json:"content_hash,omitempty"`
}

// ListNotebooks returns the user's mirrored notebooks.
func (c *Client) ListNotebooks() ([]Notebook, error) {
	return listResources[Notebook](c, "/v1/notebooks/")
}

// ListPages returns the pages of one notebook.
func (c *Client) ListPages(notebookUUID string) ([]Page, error) {
	return listResources[Page](c, resourcePath("/v1/notebooks/%s/pages", notebookUUID))
}

// DeleteNotebook removes a notebook and everything under it. With purge
// set, delivered copies are also removed from destinations that support
// deletion.
func (c *Client) DeleteNotebook(notebookUUID string, purge bool) error {
	path := resourcePath("/v1/notebooks/%s", notebookUUID)
	if purge {
		path += "?purge=true"
	}
	return deleteResource(c, path)
}
