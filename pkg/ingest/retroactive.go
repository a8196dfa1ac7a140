package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/internal/telemetry"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/ocr"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

// retroactiveBatch bounds one claim query for unlimited-tier users.
const retroactiveBatch = 100

// ProcessDeferred claims the user's deferred pages up to the fresh quota
// headroom, newest first, and schedules a full sync for each. It runs after
// a ledger reset (billing rollover or manual).
//
// The claimed pages move to pending; transcription happens when the sync
// worker picks up the work item, so a crash between claim and OCR leaves a
// retryable pending page, never a lost one.
func (s *Service) ProcessDeferred(ctx context.Context, userID string) (int, error) {
	ctx, span := telemetry.StartIngestSpan(ctx, "retroactive", userID)
	defer span.End()

	total := 0
	for {
		headroom, err := s.quota.Headroom(ctx, userID)
		if err != nil {
			return total, err
		}
		if headroom == 0 {
			break
		}

		// Batches are bounded; a finite allowance is additionally capped by
		// what this run has already scheduled.
		limit := retroactiveBatch
		if headroom > 0 {
			remaining := headroom - total
			if remaining <= 0 {
				break
			}
			if remaining < limit {
				limit = remaining
			}
		}

		// Claim and enqueue commit together: a crash never leaves a pending
		// page without the work item that would transcribe it.
		var claimed []*models.Page
		err = s.store.Transaction(ctx, func(tx store.Store) error {
			pages, err := tx.ClaimDeferredPages(ctx, userID, limit)
			if err != nil {
				return err
			}
			for _, page := range pages {
				_, err := tx.EnqueueWorkItem(ctx, &models.WorkItem{
					ID:           uuid.New().String(),
					UserID:       userID,
					Kind:         string(models.WorkFull),
					TargetRef:    page.PageUUID,
					ContentHash:  page.ContentHash,
					Destinations: models.DestinationsAll,
					Priority:     models.PriorityFull,
					Status:       string(models.WorkQueued),
					RunAt:        time.Now().UTC(),
				})
				if err != nil {
					return err
				}
			}
			claimed = pages
			return nil
		})
		if err != nil {
			return total, err
		}
		if len(claimed) == 0 {
			break
		}
		total += len(claimed)
	}

	if total > 0 {
		logger.InfoCtx(ctx, "deferred pages scheduled",
			logger.KeyUserID, userID,
			"pages", total,
		)
	}
	return total, nil
}

// TranscribePending runs OCR for a page claimed out of pending_quota (or
// retried after a failure). The sync worker calls this before propagating a
// page that has no text yet.
//
// Same billing rule as ingestion: OCR first, debit on success. A lost quota
// race parks the page back in pending_quota without the cap check, since it
// was counted there before the claim.
func (s *Service) TranscribePending(ctx context.Context, page *models.Page) error {
	if page.PDFKey == "" {
		return models.ErrInvalidTransition
	}

	pdf, err := s.blobs.Get(ctx, page.PDFKey)
	if err != nil {
		return err
	}

	ocrStart := time.Now()
	ocrCtx, span := telemetry.StartIngestSpan(ctx, "ocr", page.UserID, telemetry.Page(page.PageUUID))
	result, err := s.extractor.Extract(ocrCtx, pdf)
	span.End()
	s.metrics.RecordOCR(time.Since(ocrStart))

	if err != nil {
		if failErr := s.store.FailPageOCR(ctx, page.ID); failErr != nil {
			logger.ErrorCtx(ctx, "marking page failed after ocr error",
				logger.KeyPage, page.PageUUID, "error", failErr)
		}
		logger.WarnCtx(ctx, "deferred ocr failed",
			logger.KeyUserID, page.UserID,
			logger.KeyPage, page.PageUUID,
			"transient", ocr.IsTransient(err),
			"error", err,
		)
		return err
	}

	if _, err := s.quota.Consume(ctx, page.UserID, result.PageCount); err != nil {
		if errors.Is(err, models.ErrQuotaExhausted) {
			return s.store.MarkPagePendingQuota(ctx, page.ID, page.UserID,
				page.SourceKey, page.PDFKey, page.ContentHash, 0)
		}
		return err
	}

	if err := s.store.CompletePageOCR(ctx, page.ID, result.Text, result.Confidence, page.ContentHash); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "deferred page transcribed",
		logger.KeyUserID, page.UserID,
		logger.KeyPage, page.PageUUID,
		logger.KeyOCRMs, logger.Duration(ocrStart),
	)
	return nil
}
