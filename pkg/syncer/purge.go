package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/destination"
	"github.com/gottino/rmirror-cloud/pkg/models"
)

// PurgeNotebook removes the notebook's delivered objects from every enabled
// destination that supports deletion, then drops the corresponding sync
// records. It is idempotent: already-gone objects and missing records are
// skipped, so a failed run can be repeated.
//
// Destinations without CapDelete (webhooks) keep their copies; their sync
// records are dropped anyway since the local state is going away.
//
// Returns the number of external objects removed.
func (p *Pool) PurgeNotebook(ctx context.Context, userID, notebookUUID string) (int, error) {
	notebook, err := p.store.GetNotebook(ctx, userID, notebookUUID)
	if err != nil {
		return 0, err
	}

	pages, err := p.store.ListPages(ctx, notebook.ID)
	if err != nil {
		return 0, err
	}

	// Container record rides under the notebook UUID.
	uuids := make([]string, 0, len(pages)+1)
	for _, page := range pages {
		uuids = append(uuids, page.PageUUID)
	}
	uuids = append(uuids, notebookUUID)

	configs, err := p.store.ListEnabledIntegrations(ctx, userID)
	if err != nil {
		return 0, err
	}

	var (
		removed  int
		failures []error
	)
	for _, cfg := range configs {
		adapter, err := p.resolver.Resolve(cfg)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", cfg.Destination, err))
			continue
		}
		canDelete := destination.HasCapability(adapter, destination.CapDelete)

		for _, uuid := range uuids {
			rec, err := p.store.GetSyncRecord(ctx, userID, uuid, cfg.Destination)
			if errors.Is(err, models.ErrSyncRecordNotFound) {
				continue
			}
			if err != nil {
				failures = append(failures, fmt.Errorf("%s/%s: %w", cfg.Destination, uuid, err))
				continue
			}

			if canDelete && rec.ExternalID != "" {
				callCtx, cancel := context.WithTimeout(ctx, destination.DefaultTimeout)
				_, err = adapter.DeleteItem(callCtx, rec.ExternalID)
				cancel()
				if err != nil && !errors.Is(err, destination.ErrGone) {
					// Record stays so a retry finds the external id again.
					failures = append(failures, fmt.Errorf("%s/%s: %w", cfg.Destination, uuid, err))
					continue
				}
				if err == nil {
					removed++
				}
			}

			if err := p.store.DeleteSyncRecord(ctx, userID, uuid, cfg.Destination); err != nil &&
				!errors.Is(err, models.ErrSyncRecordNotFound) {
				failures = append(failures, fmt.Errorf("%s/%s: %w", cfg.Destination, uuid, err))
			}
		}
	}

	if len(failures) > 0 {
		return removed, errors.Join(failures...)
	}

	logger.InfoCtx(ctx, "notebook purged from destinations",
		logger.KeyUserID, userID,
		logger.KeyNotebook, notebookUUID,
		"removed", removed,
	)
	return removed, nil
}
