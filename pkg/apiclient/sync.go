package apiclient

// SyncInitialRequest tunes the initial bootstrap trigger.
type SyncInitialRequest struct {
	// PageLimit caps how many pages the trigger schedules. Zero means all.
	PageLimit int `json:"page_limit,omitempty"`

	// Force reruns the bootstrap even when destinations already hold data.
	Force bool `json:"force,omitempty"`
}

// SyncTriggerResult reports how much work a sync trigger enqueued.
type SyncTriggerResult struct {
	PagesQueued     int `json:"pages_queued"`
	NotebooksQueued int `json:"notebooks_queued"`
}

// TriggerInitialSync enqueues every completed page for distribution. The
// server rejects a repeat run with 409 unless Force is set.
func (c *Client) TriggerInitialSync(req *SyncInitialRequest) (*SyncTriggerResult, error) {
	if req == nil {
		req = &SyncInitialRequest{}
	}
	return createResource[SyncTriggerResult](c, "/v1/sync/initial", req)
}

// TriggerNotebookSync enqueues one notebook's completed pages.
func (c *Client) TriggerNotebookSync(notebookUUID string) (*SyncTriggerResult, error) {
	return createResource[SyncTriggerResult](c, resourcePath("/v1/sync/notebook/%s", notebookUUID), nil)
}
