package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/internal/telemetry"
	"github.com/gottino/rmirror-cloud/pkg/destination"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/ocr"
)

// errPermanent marks failures no retry can fix (missing rows, bad state).
var errPermanent = errors.New("permanent sync failure")

// errContainerPending defers a page item until the notebook's container item
// has run. Page workers never create containers themselves: the queue leases
// at most one container item per user at a time, so funneling creation
// through container items keeps it single-writer per notebook.
var errContainerPending = errors.New("destination container pending")

func isRetryable(err error) bool {
	var de *destination.Error
	if errors.As(err, &de) {
		return de.Retryable
	}
	if errors.Is(err, errPermanent) {
		return false
	}
	// Everything else is infrastructure (database, blob store) and worth
	// another attempt.
	return true
}

// processItem runs one claimed work item to a terminal or requeued state.
func (p *Pool) processItem(ctx context.Context, workerID string, item *models.WorkItem) {
	start := time.Now()
	ctx, span := telemetry.StartSyncSpan(ctx, "item", item.ID,
		telemetry.UserID(item.UserID),
		telemetry.WorkKind(item.Kind),
		telemetry.Worker(workerID),
		telemetry.Attempt(item.Attempts),
	)
	defer span.End()

	var err error
	switch models.WorkKind(item.Kind) {
	case models.WorkFull:
		err = p.processFull(ctx, item)
	case models.WorkMetadata:
		err = p.processMetadata(ctx, item)
	case models.WorkContainer:
		err = p.processContainer(ctx, item)
	default:
		err = fmt.Errorf("%w: unknown work kind %q", errPermanent, item.Kind)
	}

	if err == nil {
		if cerr := p.store.CompleteWorkItem(ctx, item.ID); cerr != nil {
			logger.ErrorCtx(ctx, "completing work item failed",
				logger.KeyWorkItem, item.ID, "error", cerr)
		}
		p.metrics.RecordItem(item.Kind, "done", time.Since(start))
		logger.DebugCtx(ctx, "work item done",
			logger.KeyWorkItem, item.ID,
			logger.KeyWorker, workerID,
			logger.KeyDurationMs, logger.Duration(start),
		)
		return
	}

	telemetry.RecordError(ctx, err)

	maxRetries := p.config.MaxRetries
	if !isRetryable(err) {
		maxRetries = 0 // fail immediately
	}

	delay := retryDelay(item.Attempts)
	if errors.Is(err, errContainerPending) {
		// The container item is already queued at a higher priority; the
		// page only needs to wait one poll, not a backoff cycle.
		delay = p.config.PollInterval
	}

	updated, ferr := p.store.FailWorkItem(ctx, item.ID, err.Error(), maxRetries, delay)
	if ferr != nil {
		logger.ErrorCtx(ctx, "recording work item failure failed",
			logger.KeyWorkItem, item.ID, "error", ferr)
		p.metrics.RecordItem(item.Kind, "failed", time.Since(start))
		return
	}

	if updated.Status == string(models.WorkQueued) {
		p.metrics.RecordRetry()
		p.metrics.RecordItem(item.Kind, "retried", time.Since(start))
		logger.WarnCtx(ctx, "work item requeued",
			logger.KeyWorkItem, item.ID,
			logger.KeyAttempts, updated.Attempts,
			"run_at", updated.RunAt,
			"error", err,
		)
		return
	}

	p.metrics.RecordItem(item.Kind, "failed", time.Since(start))
	logger.ErrorCtx(ctx, "work item failed",
		logger.KeyWorkItem, item.ID,
		logger.KeyUserID, item.UserID,
		logger.KeyAttempts, updated.Attempts,
		"error", err,
	)
}

// processFull propagates one page's content to the item's destinations,
// transcribing it first if the page was claimed out of deferral.
func (p *Pool) processFull(ctx context.Context, item *models.WorkItem) error {
	page, err := p.store.GetPageByUUID(ctx, item.UserID, item.TargetRef)
	if err != nil {
		if errors.Is(err, models.ErrPageNotFound) {
			return fmt.Errorf("%w: page %s no longer exists", errPermanent, item.TargetRef)
		}
		return err
	}

	switch page.Status() {
	case models.OCRCompleted:
		// ready to sync
	case models.OCRPending:
		if err := p.ingest.TranscribePending(ctx, page); err != nil {
			if ocr.IsTransient(err) {
				return fmt.Errorf("transcribing page %s: %w", page.PageUUID, err)
			}
			return fmt.Errorf("%w: transcribing page %s: %v", errPermanent, page.PageUUID, err)
		}
		page, err = p.store.GetPageByID(ctx, page.ID)
		if err != nil {
			return err
		}
		if page.Status() == models.OCRPendingQuota {
			// Lost a quota race; retroactive processing reschedules it.
			logger.InfoCtx(ctx, "page re-deferred during sync",
				logger.KeyUserID, page.UserID, logger.KeyPage, page.PageUUID)
			return nil
		}
	case models.OCRPendingQuota:
		// Quota still exhausted; a later ledger reset re-enqueues this page.
		return nil
	case models.OCRFailed:
		// Recoverable through the queue's bounded retries.
		if rerr := p.store.RetryPageOCR(ctx, page.ID); rerr != nil {
			return fmt.Errorf("%w: page %s transcription failed", errPermanent, page.PageUUID)
		}
		if err := p.ingest.TranscribePending(ctx, page); err != nil {
			if ocr.IsTransient(err) {
				return fmt.Errorf("transcribing page %s: %w", page.PageUUID, err)
			}
			return fmt.Errorf("%w: transcribing page %s: %v", errPermanent, page.PageUUID, err)
		}
		page, err = p.store.GetPageByID(ctx, page.ID)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: page %s has no stored content", errPermanent, page.PageUUID)
	}

	if page.OCRText == nil {
		return fmt.Errorf("%w: page %s completed without text", errPermanent, page.PageUUID)
	}

	notebook, err := p.store.GetNotebookByID(ctx, page.NotebookID)
	if err != nil {
		if errors.Is(err, models.ErrNotebookNotFound) {
			return fmt.Errorf("%w: notebook for page %s no longer exists", errPermanent, page.PageUUID)
		}
		return err
	}

	return p.fanOut(ctx, item, func(ctx context.Context, cfg *models.IntegrationConfig, adapter destination.Adapter) error {
		return p.syncPage(ctx, cfg.Destination, adapter, page, notebook)
	})
}

// processMetadata pushes notebook-level properties to destinations that
// already hold a container for it. It never touches quota or page content.
func (p *Pool) processMetadata(ctx context.Context, item *models.WorkItem) error {
	notebook, err := p.store.GetNotebook(ctx, item.UserID, item.TargetRef)
	if err != nil {
		if errors.Is(err, models.ErrNotebookNotFound) {
			return fmt.Errorf("%w: notebook %s no longer exists", errPermanent, item.TargetRef)
		}
		return err
	}

	return p.fanOut(ctx, item, func(ctx context.Context, cfg *models.IntegrationConfig, adapter destination.Adapter) error {
		if !destination.HasCapability(adapter, destination.CapContainers) {
			return nil
		}

		rec, err := p.store.GetSyncRecord(ctx, notebook.UserID, notebook.NotebookUUID, cfg.Destination)
		if err != nil {
			if errors.Is(err, models.ErrSyncRecordNotFound) {
				// Container not created yet; the next content sync carries
				// the fresh name.
				return nil
			}
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, destination.DefaultTimeout)
		defer cancel()

		result, err := adapter.UpdateItem(callCtx, rec.ExternalID, &destination.Item{
			PageUUID:     notebook.NotebookUUID,
			NotebookUUID: notebook.NotebookUUID,
			NotebookName: notebook.VisibleName,
			Metadata:     rec.Metadata,
		})
		if err != nil {
			if errors.Is(err, destination.ErrGone) {
				// Container vanished destination-side; drop the record so the
				// next content sync recreates it.
				return p.store.DeleteSyncRecord(ctx, notebook.UserID, notebook.NotebookUUID, cfg.Destination)
			}
			return err
		}

		rec.Status = string(models.SyncSuccess)
		rec.SyncedAt = time.Now().UTC()
		if len(result.Metadata) > 0 {
			rec.Metadata = result.Metadata
		}
		return p.store.UpdateSyncRecord(ctx, rec)
	})
}

// processContainer pre-creates the notebook container at each destination
// that models containers.
func (p *Pool) processContainer(ctx context.Context, item *models.WorkItem) error {
	notebook, err := p.store.GetNotebook(ctx, item.UserID, item.TargetRef)
	if err != nil {
		if errors.Is(err, models.ErrNotebookNotFound) {
			return fmt.Errorf("%w: notebook %s no longer exists", errPermanent, item.TargetRef)
		}
		return err
	}

	return p.fanOut(ctx, item, func(ctx context.Context, cfg *models.IntegrationConfig, adapter destination.Adapter) error {
		if !destination.HasCapability(adapter, destination.CapContainers) {
			return nil
		}
		_, err := p.ensureContainer(ctx, cfg.Destination, adapter, notebook)
		return err
	})
}

// fanOut resolves the item's target destinations and runs fn for each,
// aggregating per-destination outcomes. One destination failing does not
// stop the others; the returned error carries the worst retry class seen.
func (p *Pool) fanOut(ctx context.Context, item *models.WorkItem, fn func(ctx context.Context, cfg *models.IntegrationConfig, adapter destination.Adapter) error) error {
	configs, err := p.store.ListEnabledIntegrations(ctx, item.UserID)
	if err != nil {
		return err
	}

	if only := item.DestinationList(); only != nil {
		wanted := make(map[string]bool, len(only))
		for _, d := range only {
			wanted[d] = true
		}
		filtered := configs[:0]
		for _, cfg := range configs {
			if wanted[cfg.Destination] {
				filtered = append(filtered, cfg)
			}
		}
		configs = filtered
	}

	var (
		failures  []error
		retryable bool
	)
	for _, cfg := range configs {
		adapter, err := p.resolver.Resolve(cfg)
		if err != nil {
			// Credential or registration problem; retrying won't fix it.
			failures = append(failures, fmt.Errorf("%s: %w", cfg.Destination, err))
			_ = p.store.RecordIntegrationSync(ctx, item.UserID, cfg.Destination, false)
			continue
		}

		err = fn(ctx, cfg, adapter)
		ok := err == nil
		if rerr := p.store.RecordIntegrationSync(ctx, item.UserID, cfg.Destination, ok); rerr != nil {
			logger.WarnCtx(ctx, "recording integration usage failed",
				logger.KeyDestination, cfg.Destination, "error", rerr)
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", cfg.Destination, err))
			if isRetryable(err) {
				retryable = true
			}
			continue
		}

		// Completed destinations are pinned by their sync records, so a
		// requeued item skips them; keep the lease fresh for the rest.
		if item.LeaseOwner != nil {
			_ = p.store.ExtendLease(ctx, item.ID, *item.LeaseOwner, p.config.LeaseDuration)
		}
	}

	if len(failures) == 0 {
		return nil
	}
	return &destination.Error{Retryable: retryable, Err: errors.Join(failures...)}
}

// syncPage creates or updates one page at one destination, keyed on the
// (user, page, destination) sync record.
func (p *Pool) syncPage(ctx context.Context, destName string, adapter destination.Adapter, page *models.Page, notebook *models.Notebook) error {
	containerID, err := p.containerFor(ctx, destName, adapter, notebook)
	if err != nil {
		return err
	}

	payload := &destination.Item{
		PageUUID:            page.PageUUID,
		NotebookUUID:        notebook.NotebookUUID,
		NotebookName:        notebook.VisibleName,
		ContainerExternalID: containerID,
		PageNumber:          page.PageNumber,
		Text:                *page.OCRText,
		ContentHash:         page.ContentHash,
	}
	if page.OCRConfidence != nil {
		payload.Confidence = *page.OCRConfidence
	}

	rec, err := p.store.GetSyncRecord(ctx, page.UserID, page.PageUUID, destName)
	switch {
	case err == nil:
		return p.updateExisting(ctx, destName, adapter, rec, payload, page)
	case errors.Is(err, models.ErrSyncRecordNotFound):
		return p.createNew(ctx, destName, adapter, payload, page, notebook)
	default:
		return err
	}
}

// createNew syncs a page with no local record yet. A dedupe-capable
// destination is probed first to recover an external id lost between a
// previous call and its record insert.
func (p *Pool) createNew(ctx context.Context, destName string, adapter destination.Adapter, payload *destination.Item, page *models.Page, notebook *models.Notebook) error {
	externalID := ""
	var resultMeta []byte

	if destination.HasCapability(adapter, destination.CapDedupeCheck) {
		callCtx, cancel := context.WithTimeout(ctx, destination.DefaultTimeout)
		id, err := adapter.CheckDuplicate(callCtx, page.ContentHash)
		cancel()
		if err == nil && id != "" {
			externalID = id
			logger.InfoCtx(ctx, "recovered external object by content hash",
				logger.KeyPage, page.PageUUID,
				logger.KeyDestination, destName,
			)
		}
		// A failed probe is not fatal; worst case we create a duplicate the
		// destination itself may fold.
	}

	if externalID == "" {
		callCtx, cancel := context.WithTimeout(ctx, destination.DefaultTimeout)
		result, err := adapter.SyncItem(callCtx, payload)
		cancel()
		if err != nil {
			return err
		}
		externalID = result.ExternalID
		resultMeta = result.Metadata
	}

	rec := &models.SyncRecord{
		ID:          uuid.New().String(),
		UserID:      page.UserID,
		PageUUID:    page.PageUUID,
		Destination: destName,
		ItemKind:    string(models.SyncItemPage),
		ExternalID:  externalID,
		ContentHash: page.ContentHash,
		Status:      string(models.SyncSuccess),
		SyncedAt:    time.Now().UTC(),
		Metadata:    resultMeta,
	}
	if err := p.store.CreateSyncRecord(ctx, rec); err != nil {
		if errors.Is(err, models.ErrDuplicateSyncRecord) {
			// A concurrent worker won the insert; adopt its row and converge
			// on content.
			winner, gerr := p.store.GetSyncRecord(ctx, page.UserID, page.PageUUID, destName)
			if gerr != nil {
				return gerr
			}
			return p.updateExisting(ctx, destName, adapter, winner, payload, page)
		}
		return err
	}

	logger.InfoCtx(ctx, "page synced",
		logger.KeyUserID, page.UserID,
		logger.KeyPage, page.PageUUID,
		logger.KeyDestination, destName,
		"external_id", externalID,
	)
	return nil
}

// updateExisting converges an already-synced page on the current content.
func (p *Pool) updateExisting(ctx context.Context, destName string, adapter destination.Adapter, rec *models.SyncRecord, payload *destination.Item, page *models.Page) error {
	if rec.ContentHash == page.ContentHash && rec.Status == string(models.SyncSuccess) {
		return nil
	}

	payload.Metadata = rec.Metadata

	callCtx, cancel := context.WithTimeout(ctx, destination.DefaultTimeout)
	result, err := adapter.UpdateItem(callCtx, rec.ExternalID, payload)
	cancel()
	if err != nil {
		if errors.Is(err, destination.ErrGone) {
			// External object archived or deleted; drop the stale record and
			// create a fresh object.
			if derr := p.store.DeleteSyncRecord(ctx, page.UserID, page.PageUUID, destName); derr != nil {
				return derr
			}
			return p.createNew(ctx, destName, adapter, payload, page, nil)
		}

		rec.Status = string(models.SyncRetry)
		if !destination.IsRetryable(err) {
			rec.Status = string(models.SyncFailedStatus)
		}
		rec.Error = err.Error()
		rec.RetryCount++
		if uerr := p.store.UpdateSyncRecord(ctx, rec); uerr != nil {
			logger.WarnCtx(ctx, "updating sync record after failure failed",
				logger.KeyPage, page.PageUUID, "error", uerr)
		}
		return err
	}

	rec.ContentHash = page.ContentHash
	rec.Status = string(models.SyncSuccess)
	rec.Error = ""
	rec.SyncedAt = time.Now().UTC()
	if result.ExternalID != "" {
		rec.ExternalID = result.ExternalID
	}
	if len(result.Metadata) > 0 {
		rec.Metadata = result.Metadata
	}
	if err := p.store.UpdateSyncRecord(ctx, rec); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "page updated",
		logger.KeyUserID, page.UserID,
		logger.KeyPage, page.PageUUID,
		logger.KeyDestination, destName,
	)
	return nil
}

// containerFor resolves the destination-side container id for a page sync.
// Destinations without container support get "". A missing container is not
// created inline; a container work item is enqueued and the page deferred
// until it has run.
func (p *Pool) containerFor(ctx context.Context, destName string, adapter destination.Adapter, notebook *models.Notebook) (string, error) {
	if notebook == nil || !destination.HasCapability(adapter, destination.CapContainers) {
		return "", nil
	}

	rec, err := p.store.GetSyncRecord(ctx, notebook.UserID, notebook.NotebookUUID, destName)
	if err == nil {
		return rec.ExternalID, nil
	}
	if !errors.Is(err, models.ErrSyncRecordNotFound) {
		return "", err
	}

	if _, err := p.store.EnqueueWorkItem(ctx, &models.WorkItem{
		ID:           uuid.New().String(),
		UserID:       notebook.UserID,
		Kind:         string(models.WorkContainer),
		TargetRef:    notebook.NotebookUUID,
		Destinations: models.DestinationsAll,
		Priority:     models.PriorityContainer,
		Status:       string(models.WorkQueued),
		RunAt:        time.Now().UTC(),
	}); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: notebook %s at %s", errContainerPending, notebook.NotebookUUID, destName)
}

// ensureContainer creates the notebook container at one destination if no
// sync record pins it yet. Only container items reach this path, and the
// queue leases those one at a time per user.
func (p *Pool) ensureContainer(ctx context.Context, destName string, adapter destination.Adapter, notebook *models.Notebook) (string, error) {
	if notebook == nil || !destination.HasCapability(adapter, destination.CapContainers) {
		return "", nil
	}

	rec, err := p.store.GetSyncRecord(ctx, notebook.UserID, notebook.NotebookUUID, destName)
	if err == nil {
		return rec.ExternalID, nil
	}
	if !errors.Is(err, models.ErrSyncRecordNotFound) {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, destination.DefaultTimeout)
	result, err := adapter.CreateContainer(callCtx, &destination.Item{
		PageUUID:     notebook.NotebookUUID,
		NotebookUUID: notebook.NotebookUUID,
		NotebookName: notebook.VisibleName,
	})
	cancel()
	if err != nil {
		return "", err
	}

	rec = &models.SyncRecord{
		ID:          uuid.New().String(),
		UserID:      notebook.UserID,
		PageUUID:    notebook.NotebookUUID,
		Destination: destName,
		ItemKind:    string(models.SyncItemContainer),
		ExternalID:  result.ExternalID,
		Status:      string(models.SyncSuccess),
		SyncedAt:    time.Now().UTC(),
		Metadata:    result.Metadata,
	}
	if err := p.store.CreateSyncRecord(ctx, rec); err != nil {
		if errors.Is(err, models.ErrDuplicateSyncRecord) {
			winner, gerr := p.store.GetSyncRecord(ctx, notebook.UserID, notebook.NotebookUUID, destName)
			if gerr != nil {
				return "", gerr
			}
			return winner.ExternalID, nil
		}
		return "", err
	}

	logger.InfoCtx(ctx, "container created",
		logger.KeyUserID, notebook.UserID,
		logger.KeyNotebook, notebook.NotebookUUID,
		logger.KeyDestination, destName,
	)
	return result.ExternalID, nil
}
