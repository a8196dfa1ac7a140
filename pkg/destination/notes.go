package destination

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// NotesAdapter syncs transcribed pages into a structured notes service.
// Pages become notes inside a per-notebook container (one container per
// notebook, created lazily).
type NotesAdapter struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewNotesAdapter builds the adapter from decrypted settings. Required keys:
// "base_url" and "token".
func NewNotesAdapter(settings map[string]string) (Adapter, error) {
	baseURL := settings["base_url"]
	token := settings["token"]
	if baseURL == "" || token == "" {
		return nil, fmt.Errorf("notes destination requires base_url and token")
	}
	return &NotesAdapter{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}, nil
}

func (a *NotesAdapter) Name() string { return "notes" }

func (a *NotesAdapter) Capabilities() []Capability {
	return []Capability{CapCreate, CapUpdate, CapDelete, CapDedupeCheck, CapValidate, CapContainers}
}

type notesPayload struct {
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	ContainerID string  `json:"container_id,omitempty"`
	SourceID    string  `json:"source_id"`
	ContentHash string  `json:"content_hash"`
	Confidence  float64 `json:"confidence,omitempty"`
}

type notesResponse struct {
	ID string `json:"id"`
}

// SyncItem creates a note for the page.
func (a *NotesAdapter) SyncItem(ctx context.Context, item *Item) (*SyncResult, error) {
	payload := notesPayload{
		Title:       fmt.Sprintf("%s - page %d", item.NotebookName, item.PageNumber),
		Body:        item.Text,
		ContainerID: item.ContainerExternalID,
		SourceID:    item.PageUUID,
		ContentHash: item.ContentHash,
		Confidence:  item.Confidence,
	}

	var resp notesResponse
	if err := a.do(ctx, http.MethodPost, "/api/notes", payload, &resp); err != nil {
		return &SyncResult{Status: StatusFailed, Err: err}, err
	}
	return &SyncResult{Status: StatusSuccess, ExternalID: resp.ID}, nil
}

// UpdateItem replaces the note body. A 404 or 410 means the note was removed
// destination-side; the result wraps ErrGone so the caller can recreate.
func (a *NotesAdapter) UpdateItem(ctx context.Context, externalID string, item *Item) (*SyncResult, error) {
	payload := notesPayload{
		Title:       fmt.Sprintf("%s - page %d", item.NotebookName, item.PageNumber),
		Body:        item.Text,
		SourceID:    item.PageUUID,
		ContentHash: item.ContentHash,
		Confidence:  item.Confidence,
	}

	err := a.do(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(externalID), payload, nil)
	if err != nil {
		return &SyncResult{Status: StatusFailed, Err: err}, err
	}
	return &SyncResult{Status: StatusSuccess, ExternalID: externalID}, nil
}

// DeleteItem removes the note. Already-gone notes are treated as success.
func (a *NotesAdapter) DeleteItem(ctx context.Context, externalID string) (*SyncResult, error) {
	err := a.do(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(externalID), nil, nil)
	if err != nil && !errors.Is(err, ErrGone) {
		return &SyncResult{Status: StatusFailed, Err: err}, err
	}
	return &SyncResult{Status: StatusSuccess, ExternalID: externalID}, nil
}

type containerPayload struct {
	Name     string `json:"name"`
	SourceID string `json:"source_id"`
}

// CreateContainer creates the per-notebook container.
func (a *NotesAdapter) CreateContainer(ctx context.Context, item *Item) (*SyncResult, error) {
	payload := containerPayload{
		Name:     item.NotebookName,
		SourceID: item.NotebookUUID,
	}

	var resp notesResponse
	if err := a.do(ctx, http.MethodPost, "/api/containers", payload, &resp); err != nil {
		return &SyncResult{Status: StatusFailed, Err: err}, err
	}
	return &SyncResult{Status: StatusSuccess, ExternalID: resp.ID}, nil
}

// CheckDuplicate asks the service for a note carrying the content hash.
func (a *NotesAdapter) CheckDuplicate(ctx context.Context, contentHash string) (string, error) {
	var resp notesResponse
	err := a.do(ctx, http.MethodGet, "/api/notes/lookup?content_hash="+url.QueryEscape(contentHash), nil, &resp)
	if err != nil {
		if errors.Is(err, ErrGone) {
			return "", nil
		}
		return "", err
	}
	return resp.ID, nil
}

// ValidateConnection checks the token against the account endpoint.
func (a *NotesAdapter) ValidateConnection(ctx context.Context) error {
	return a.do(ctx, http.MethodGet, "/api/me", nil, nil)
}

// do performs one API call, classifying failures by retryability.
func (a *NotesAdapter) do(ctx context.Context, method, path string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &Error{Retryable: false, Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return &Error{Retryable: false, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &Error{Retryable: true, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Retryable: true, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return &Error{Retryable: false, Err: fmt.Errorf("malformed response: %w", err)}
			}
		}
		return nil

	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return &Error{Retryable: false, Err: fmt.Errorf("%w: %s %s returned %d", ErrGone, method, path, resp.StatusCode)}

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &Error{Retryable: true, Err: fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, truncateBody(respBody))}

	default:
		return &Error{Retryable: false, Err: fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, truncateBody(respBody))}
	}
}

func truncateBody(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
