package destination

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookRequiresEndpoint(t *testing.T) {
	_, err := NewWebhookAdapter(map[string]string{})
	assert.Error(t, err)
}

func TestWebhookSyncItemSigned(t *testing.T) {
	var gotBody []byte
	var gotSig string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Rmirror-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	a, err := NewWebhookAdapter(map[string]string{
		"endpoint": srv.URL,
		"secret":   "hook-secret",
	})
	require.NoError(t, err)

	res, err := a.SyncItem(context.Background(), &Item{
		PageUUID:     "page-uuid",
		NotebookName: "Journal",
		Text:         "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "webhook:page-uuid", res.ExternalID)

	var event webhookEvent
	require.NoError(t, json.Unmarshal(gotBody, &event))
	assert.Equal(t, "page.synced", event.Event)
	assert.Equal(t, "hello", event.Text)

	mac := hmac.New(sha256.New, []byte("hook-secret"))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSig)
}

func TestWebhookRetryClassification(t *testing.T) {
	status := http.StatusServiceUnavailable
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	a, err := NewWebhookAdapter(map[string]string{"endpoint": srv.URL})
	require.NoError(t, err)

	_, err = a.SyncItem(context.Background(), &Item{PageUUID: "p"})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	status = http.StatusForbidden
	_, err = a.SyncItem(context.Background(), &Item{PageUUID: "p"})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestWebhookDeleteSkipped(t *testing.T) {
	a, err := NewWebhookAdapter(map[string]string{"endpoint": "http://unused.invalid"})
	require.NoError(t, err)

	res, err := a.DeleteItem(context.Background(), "webhook:p")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
}

func TestWebhookNoContainers(t *testing.T) {
	a, err := NewWebhookAdapter(map[string]string{"endpoint": "http://unused.invalid"})
	require.NoError(t, err)

	assert.False(t, HasCapability(a, CapContainers))

	_, err = a.CreateContainer(context.Background(), &Item{})
	assert.Error(t, err)
}
