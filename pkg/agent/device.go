package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// The device lays its tree out flat: notebook metadata and the page manifest
// sit next to a directory of page files, all keyed by notebook uuid.
//
//	<root>/<notebook-uuid>.metadata
//	<root>/<notebook-uuid>.content
//	<root>/<notebook-uuid>/<page-uuid>.rm

// notebookMeta is the subset of the device .metadata file the server cares
// about.
type notebookMeta struct {
	VisibleName string `json:"visibleName"`
	Parent      string `json:"parent"`
	Type        string `json:"type"`
}

// notebookContent is the device page manifest.
type notebookContent struct {
	Pages []string `json:"pages"`
}

func pageUUIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func notebookUUIDFromPagePath(path string) string {
	return filepath.Base(filepath.Dir(path))
}

// loadNotebookMeta reads <root>/<uuid>.metadata. Returns nil without error
// when the file does not exist yet; the device writes pages first sometimes.
func loadNotebookMeta(root, notebookUUID string) (*notebookMeta, error) {
	data, err := os.ReadFile(filepath.Join(root, notebookUUID+".metadata"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var meta notebookMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", notebookUUID, err)
	}
	return &meta, nil
}

// pageNumber resolves the 1-based position of a page from the notebook's
// manifest. Unknown pages get 0; the server tolerates that.
func pageNumber(root, notebookUUID, pageUUID string) int {
	data, err := os.ReadFile(filepath.Join(root, notebookUUID+".content"))
	if err != nil {
		return 0
	}

	var content notebookContent
	if err := json.Unmarshal(data, &content); err != nil {
		return 0
	}
	for i, id := range content.Pages {
		if id == pageUUID {
			return i + 1
		}
	}
	return 0
}
