package destination

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookAdapter delivers page content to a user-supplied HTTP endpoint.
// Fire-and-forget: no containers, no destination-side state, no delete. The
// external id is synthesized from the page UUID so sync records still dedupe.
type WebhookAdapter struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

// NewWebhookAdapter builds the adapter from decrypted settings. Required key:
// "endpoint". Optional "secret" enables HMAC-SHA256 request signing.
func NewWebhookAdapter(settings map[string]string) (Adapter, error) {
	endpoint := settings["endpoint"]
	if endpoint == "" {
		return nil, fmt.Errorf("webhook destination requires endpoint")
	}
	return &WebhookAdapter{
		endpoint: endpoint,
		secret:   settings["secret"],
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}, nil
}

func (a *WebhookAdapter) Name() string { return "webhook" }

func (a *WebhookAdapter) Capabilities() []Capability {
	return []Capability{CapCreate, CapUpdate, CapValidate}
}

type webhookEvent struct {
	Event        string    `json:"event"`
	PageUUID     string    `json:"page_uuid"`
	NotebookUUID string    `json:"notebook_uuid"`
	NotebookName string    `json:"notebook_name"`
	PageNumber   int       `json:"page_number"`
	Text         string    `json:"text"`
	Confidence   float64   `json:"confidence"`
	ContentHash  string    `json:"content_hash"`
	Timestamp    time.Time `json:"timestamp"`
}

func (a *WebhookAdapter) SyncItem(ctx context.Context, item *Item) (*SyncResult, error) {
	if err := a.deliver(ctx, "page.synced", item); err != nil {
		return &SyncResult{Status: StatusFailed, Err: err}, err
	}
	return &SyncResult{Status: StatusSuccess, ExternalID: "webhook:" + item.PageUUID}, nil
}

func (a *WebhookAdapter) UpdateItem(ctx context.Context, externalID string, item *Item) (*SyncResult, error) {
	if err := a.deliver(ctx, "page.updated", item); err != nil {
		return &SyncResult{Status: StatusFailed, Err: err}, err
	}
	return &SyncResult{Status: StatusSuccess, ExternalID: externalID}, nil
}

// DeleteItem is a no-op: the endpoint holds no state we can remove.
func (a *WebhookAdapter) DeleteItem(_ context.Context, externalID string) (*SyncResult, error) {
	return &SyncResult{Status: StatusSkipped, ExternalID: externalID}, nil
}

// CreateContainer is unsupported.
func (a *WebhookAdapter) CreateContainer(_ context.Context, _ *Item) (*SyncResult, error) {
	return nil, &Error{Retryable: false, Err: fmt.Errorf("webhook destination does not support containers")}
}

// CheckDuplicate is unsupported; the caller falls back to recreating.
func (a *WebhookAdapter) CheckDuplicate(_ context.Context, _ string) (string, error) {
	return "", nil
}

// ValidateConnection probes the endpoint with a signed ping event.
func (a *WebhookAdapter) ValidateConnection(ctx context.Context) error {
	return a.post(ctx, webhookEvent{Event: "ping", Timestamp: time.Now().UTC()})
}

func (a *WebhookAdapter) deliver(ctx context.Context, event string, item *Item) error {
	return a.post(ctx, webhookEvent{
		Event:        event,
		PageUUID:     item.PageUUID,
		NotebookUUID: item.NotebookUUID,
		NotebookName: item.NotebookName,
		PageNumber:   item.PageNumber,
		Text:         item.Text,
		Confidence:   item.Confidence,
		ContentHash:  item.ContentHash,
		Timestamp:    time.Now().UTC(),
	})
}

func (a *WebhookAdapter) post(ctx context.Context, event webhookEvent) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	data, err := json.Marshal(event)
	if err != nil {
		return &Error{Retryable: false, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(data))
	if err != nil {
		return &Error{Retryable: false, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if a.secret != "" {
		mac := hmac.New(sha256.New, []byte(a.secret))
		mac.Write(data)
		req.Header.Set("X-Rmirror-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &Error{Retryable: true, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &Error{Retryable: true, Err: fmt.Errorf("endpoint returned %d", resp.StatusCode)}
	default:
		return &Error{Retryable: false, Err: fmt.Errorf("endpoint returned %d", resp.StatusCode)}
	}
}
