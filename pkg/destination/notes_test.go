package destination

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notesServer(t *testing.T, handler http.HandlerFunc) *NotesAdapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := NewNotesAdapter(map[string]string{
		"base_url": srv.URL,
		"token":    "test-token",
	})
	require.NoError(t, err)
	return a.(*NotesAdapter)
}

func TestNotesAdapterRequiresSettings(t *testing.T) {
	_, err := NewNotesAdapter(map[string]string{"base_url": "https://x"})
	assert.Error(t, err)

	_, err = NewNotesAdapter(map[string]string{"token": "x"})
	assert.Error(t, err)
}

func TestNotesSyncItem(t *testing.T) {
	a := notesServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/notes", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var payload notesPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Journal - page 3", payload.Title)
		assert.Equal(t, "hello", payload.Body)
		assert.Equal(t, "container-9", payload.ContainerID)

		_ = json.NewEncoder(w).Encode(notesResponse{ID: "note-1"})
	})

	res, err := a.SyncItem(context.Background(), &Item{
		PageUUID:            "page-uuid",
		NotebookName:        "Journal",
		PageNumber:          3,
		Text:                "hello",
		ContainerExternalID: "container-9",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "note-1", res.ExternalID)
}

func TestNotesUpdateGone(t *testing.T) {
	a := notesServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := a.UpdateItem(context.Background(), "note-1", &Item{Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGone))
	assert.False(t, IsRetryable(err))
}

func TestNotesRetryClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := notesServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			})

			_, err := a.SyncItem(context.Background(), &Item{PageUUID: "p", Text: "x"})
			require.Error(t, err)
			assert.Equal(t, tc.retryable, IsRetryable(err))
		})
	}
}

func TestNotesDeleteIdempotent(t *testing.T) {
	a := notesServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	res, err := a.DeleteItem(context.Background(), "note-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestNotesCreateContainer(t *testing.T) {
	a := notesServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/containers", r.URL.Path)

		var payload containerPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Journal", payload.Name)
		assert.Equal(t, "nb-uuid", payload.SourceID)

		_ = json.NewEncoder(w).Encode(notesResponse{ID: "container-1"})
	})

	res, err := a.CreateContainer(context.Background(), &Item{
		NotebookUUID: "nb-uuid",
		NotebookName: "Journal",
	})
	require.NoError(t, err)
	assert.Equal(t, "container-1", res.ExternalID)
}

func TestNotesCheckDuplicate(t *testing.T) {
	a := notesServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notes/lookup", r.URL.Path)
		assert.Equal(t, "abc123", r.URL.Query().Get("content_hash"))
		_ = json.NewEncoder(w).Encode(notesResponse{ID: "note-7"})
	})

	id, err := a.CheckDuplicate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "note-7", id)
}

func TestNotesCheckDuplicateMiss(t *testing.T) {
	a := notesServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	id, err := a.CheckDuplicate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Empty(t, id)
}
