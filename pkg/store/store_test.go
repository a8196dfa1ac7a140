package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

func newTestStore(t *testing.T) *GORMStore {
	t.Helper()

	st, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

var seedCounter int

// seedUser creates a user with a fresh email and returns its ID.
func seedUser(t *testing.T, st *GORMStore, tier models.Tier) string {
	t.Helper()

	hash, err := models.HashPassword("password123")
	require.NoError(t, err)

	seedCounter++
	id, err := st.CreateUser(context.Background(), &models.User{
		Email:        fmt.Sprintf("user%d@example.com", seedCounter),
		PasswordHash: hash,
	}, tier)
	require.NoError(t, err)
	return id
}

// seedNotebook creates a notebook for the user and returns it.
func seedNotebook(t *testing.T, st *GORMStore, userID, notebookUUID string) *models.Notebook {
	t.Helper()

	nb, err := st.UpsertNotebook(context.Background(), &models.Notebook{
		UserID:       userID,
		NotebookUUID: notebookUUID,
		VisibleName:  "Journal",
		DocumentType: "notebook",
	})
	require.NoError(t, err)
	return nb
}
