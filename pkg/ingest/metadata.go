package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/internal/telemetry"
	"github.com/gottino/rmirror-cloud/pkg/models"
)

// MetadataUpdate carries notebook property changes without page content.
type MetadataUpdate struct {
	NotebookUUID string
	VisibleName  string
	ParentUUID   *string
	DocumentType string
	LastModified time.Time
}

// MetadataStatus is the outcome of a metadata-only ingestion.
type MetadataStatus string

const (
	// MetadataQueued means a metadata work item was scheduled.
	MetadataQueued MetadataStatus = "queued"
	// MetadataSkipped means the notebook has never been synced anywhere, so
	// there is nothing destination-side to update.
	MetadataSkipped MetadataStatus = "skipped"
)

// HandleMetadata applies a notebook property change and schedules a metadata
// sync when the notebook exists at any destination. Quota is never touched.
func (s *Service) HandleMetadata(ctx context.Context, userID string, update *MetadataUpdate) (MetadataStatus, error) {
	ctx, span := telemetry.StartIngestSpan(ctx, "metadata", userID,
		telemetry.Notebook(update.NotebookUUID),
	)
	defer span.End()

	lastModified := update.LastModified
	if lastModified.IsZero() {
		lastModified = time.Now().UTC()
	}

	notebook, err := s.store.UpsertNotebook(ctx, &models.Notebook{
		UserID:       userID,
		NotebookUUID: update.NotebookUUID,
		VisibleName:  update.VisibleName,
		ParentUUID:   update.ParentUUID,
		DocumentType: update.DocumentType,
		LastModified: lastModified,
	})
	if err != nil {
		return "", err
	}

	pages, err := s.store.ListPages(ctx, notebook.ID)
	if err != nil {
		return "", err
	}
	pageUUIDs := make([]string, 0, len(pages))
	for _, p := range pages {
		pageUUIDs = append(pageUUIDs, p.PageUUID)
	}

	synced, err := s.store.NotebookEverSynced(ctx, userID, update.NotebookUUID, pageUUIDs)
	if err != nil {
		return "", err
	}
	if !synced {
		logger.DebugCtx(ctx, "metadata update skipped, notebook never synced",
			logger.KeyUserID, userID,
			logger.KeyNotebook, update.NotebookUUID,
		)
		return MetadataSkipped, nil
	}

	_, err = s.store.EnqueueWorkItem(ctx, &models.WorkItem{
		ID:           uuid.New().String(),
		UserID:       userID,
		Kind:         string(models.WorkMetadata),
		TargetRef:    update.NotebookUUID,
		Destinations: models.DestinationsAll,
		Priority:     models.PriorityMetadata,
		Status:       string(models.WorkQueued),
		RunAt:        time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	logger.InfoCtx(ctx, "metadata sync queued",
		logger.KeyUserID, userID,
		logger.KeyNotebook, update.NotebookUUID,
	)
	return MetadataQueued, nil
}
