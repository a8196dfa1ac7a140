// Package ingest implements the upload pipeline: blob storage, content-hash
// deduplication, quota-gated OCR and sync work scheduling.
//
// The pipeline accepts every authenticated upload. When the user's OCR
// allowance is exhausted the blob is still stored and the page parked in
// pending_quota for the retroactive processor; the device never has to
// re-upload because of quota.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/internal/telemetry"
	"github.com/gottino/rmirror-cloud/pkg/blobstore"
	"github.com/gottino/rmirror-cloud/pkg/fingerprint"
	"github.com/gottino/rmirror-cloud/pkg/metrics"
	"github.com/gottino/rmirror-cloud/pkg/models"
	"github.com/gottino/rmirror-cloud/pkg/ocr"
	"github.com/gottino/rmirror-cloud/pkg/quota"
	"github.com/gottino/rmirror-cloud/pkg/store"
)

// MaxPendingQuotaPages caps how many deferred pages a user may accumulate.
const MaxPendingQuotaPages = 100

// Config tunes the ingestion service.
type Config struct {
	// MaxPendingQuota overrides MaxPendingQuotaPages when positive.
	MaxPendingQuota int `mapstructure:"max_pending_quota" yaml:"max_pending_quota"`
}

// Service is the ingestion pipeline.
type Service struct {
	store      store.Store
	blobs      blobstore.Store
	extractor  ocr.Extractor
	quota      *quota.Service
	metrics    *metrics.IngestMetrics
	maxPending int
}

// NewService creates the ingestion service. metrics may be nil.
func NewService(st store.Store, blobs blobstore.Store, extractor ocr.Extractor, qs *quota.Service, m *metrics.IngestMetrics, cfg Config) *Service {
	maxPending := cfg.MaxPendingQuota
	if maxPending <= 0 {
		maxPending = MaxPendingQuotaPages
	}
	return &Service{
		store:      st,
		blobs:      blobs,
		extractor:  extractor,
		quota:      qs,
		metrics:    m,
		maxPending: maxPending,
	}
}

// UploadStatus classifies the outcome of one upload.
type UploadStatus string

const (
	// StatusCompleted means OCR ran (or was cached) and text is available.
	StatusCompleted UploadStatus = "completed"
	// StatusPendingQuota means the blob was stored but OCR is deferred.
	StatusPendingQuota UploadStatus = "pending_quota"
	// StatusFailed means OCR failed; the blob is stored for a later retry.
	StatusFailed UploadStatus = "failed"
)

// Upload is one device upload: the raw source blob plus the rendered PDF
// handed to OCR. PDF falls back to Source when the device sends no render.
type Upload struct {
	NotebookUUID string
	NotebookName string
	ParentUUID   *string
	DocumentType string
	PageUUID     string
	PageNumber   int
	Source       []byte
	PDF          []byte
}

// ErrInvalidUpload marks uploads rejected before any processing.
var ErrInvalidUpload = errors.New("invalid upload")

// Validate checks required upload fields.
func (u *Upload) Validate() error {
	if u.NotebookUUID == "" {
		return fmt.Errorf("%w: notebook uuid is required", ErrInvalidUpload)
	}
	if u.PageUUID == "" {
		return fmt.Errorf("%w: page uuid is required", ErrInvalidUpload)
	}
	if len(u.Source) == 0 {
		return fmt.Errorf("%w: source blob is required", ErrInvalidUpload)
	}
	return nil
}

func (u *Upload) pdf() []byte {
	if len(u.PDF) > 0 {
		return u.PDF
	}
	return u.Source
}

// UploadResult is returned to the device.
type UploadResult struct {
	Status      UploadStatus `json:"status"`
	PageID      string       `json:"page_id"`
	ContentHash string       `json:"content_hash"`
	Text        string       `json:"text,omitempty"`
	Confidence  float64      `json:"confidence,omitempty"`
	PagesUsed   int          `json:"pages_used,omitempty"`
	CacheHit    bool         `json:"cache_hit,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// HandleUpload runs the ingestion algorithm for one upload.
//
// No database transaction stays open across the blob store or OCR calls;
// only the final completed-plus-enqueue step commits atomically.
func (s *Service) HandleUpload(ctx context.Context, userID string, up *Upload) (*UploadResult, error) {
	start := time.Now()

	ctx, span := telemetry.StartIngestSpan(ctx, "upload", userID,
		telemetry.Notebook(up.NotebookUUID),
		telemetry.Page(up.PageUUID),
		telemetry.Bytes(len(up.Source)),
	)
	defer span.End()

	if err := up.Validate(); err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	hash := fingerprint.SourceBlob(up.Source)
	telemetry.SetAttributes(ctx, telemetry.ContentHash(hash))

	notebook, err := s.store.UpsertNotebook(ctx, &models.Notebook{
		UserID:       userID,
		NotebookUUID: up.NotebookUUID,
		VisibleName:  up.NotebookName,
		ParentUUID:   up.ParentUUID,
		DocumentType: up.DocumentType,
		LastModified: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("upserting notebook: %w", err)
	}

	page, err := s.store.GetOrCreatePage(ctx, notebook.ID, userID, up.PageUUID, up.PageNumber)
	if err != nil {
		return nil, fmt.Errorf("locating page: %w", err)
	}

	// Dedup before storing: identical completed content short-circuits the
	// whole pipeline.
	if page.ContentHash == hash && page.Status() == models.OCRCompleted {
		s.metrics.RecordHashLookup(true)
		s.metrics.RecordUpload(string(StatusCompleted), len(up.Source), time.Since(start))
		telemetry.SetAttributes(ctx, telemetry.HashHit(true))

		logger.InfoCtx(ctx, "upload deduplicated",
			logger.KeyUserID, userID,
			logger.KeyPage, up.PageUUID,
			logger.KeyHash, hash,
		)

		res := &UploadResult{
			Status:      StatusCompleted,
			PageID:      page.ID,
			ContentHash: hash,
			CacheHit:    true,
		}
		if page.OCRText != nil {
			res.Text = *page.OCRText
		}
		if page.OCRConfidence != nil {
			res.Confidence = *page.OCRConfidence
		}
		return res, nil
	}
	s.metrics.RecordHashLookup(false)

	sourceKey := blobstore.SourceKey(userID, up.PageUUID)
	pdfKey := blobstore.PDFKey(userID, up.PageUUID)

	if err := s.blobs.Put(ctx, sourceKey, up.Source); err != nil {
		return nil, fmt.Errorf("storing source blob: %w", err)
	}
	if err := s.blobs.Put(ctx, pdfKey, up.pdf()); err != nil {
		return nil, fmt.Errorf("storing pdf blob: %w", err)
	}

	headroom, err := s.quota.Headroom(ctx, userID)
	if err != nil {
		return nil, err
	}
	if headroom == 0 {
		return s.deferUpload(ctx, userID, up, page, sourceKey, pdfKey, hash, start)
	}

	return s.transcribe(ctx, userID, up, page, sourceKey, pdfKey, hash, start)
}

// deferUpload parks the page in pending_quota. The blob stays stored and the
// ledger is untouched; no sync work is enqueued.
func (s *Service) deferUpload(ctx context.Context, userID string, up *Upload, page *models.Page, sourceKey, pdfKey, hash string, start time.Time) (*UploadResult, error) {
	err := s.store.MarkPagePendingQuota(ctx, page.ID, userID, sourceKey, pdfKey, hash, s.maxPending)
	if err != nil {
		if errors.Is(err, models.ErrPendingQuotaCap) {
			s.metrics.RecordUpload("rejected", len(up.Source), time.Since(start))
			return nil, err
		}
		return nil, err
	}

	s.metrics.RecordQuotaDeferred()
	s.metrics.RecordUpload(string(StatusPendingQuota), len(up.Source), time.Since(start))

	logger.InfoCtx(ctx, "upload deferred, quota exhausted",
		logger.KeyUserID, userID,
		logger.KeyPage, up.PageUUID,
		logger.KeyHash, hash,
	)

	return &UploadResult{
		Status:      StatusPendingQuota,
		PageID:      page.ID,
		ContentHash: hash,
	}, nil
}

// transcribe runs OCR, debits the ledger on success and commits the
// completed page together with its sync work item.
//
// OCR runs before the debit so an aborted or failed extraction never
// charges the user. If a concurrent consumer drains the allowance between
// the headroom check and the debit, the page falls back to pending_quota.
func (s *Service) transcribe(ctx context.Context, userID string, up *Upload, page *models.Page, sourceKey, pdfKey, hash string, start time.Time) (*UploadResult, error) {
	if err := s.store.MarkPagePending(ctx, page.ID, sourceKey, pdfKey, hash); err != nil {
		return nil, err
	}

	ocrStart := time.Now()
	ocrCtx, ocrSpan := telemetry.StartIngestSpan(ctx, "ocr", userID, telemetry.Page(up.PageUUID))
	result, err := s.extractor.Extract(ocrCtx, up.pdf())
	ocrSpan.End()
	s.metrics.RecordOCR(time.Since(ocrStart))

	if err != nil {
		telemetry.RecordError(ctx, err)
		if failErr := s.store.FailPageOCR(ctx, page.ID); failErr != nil {
			logger.ErrorCtx(ctx, "marking page failed after ocr error",
				logger.KeyPage, up.PageUUID, "error", failErr)
		}
		s.metrics.RecordUpload(string(StatusFailed), len(up.Source), time.Since(start))

		logger.WarnCtx(ctx, "ocr failed",
			logger.KeyUserID, userID,
			logger.KeyPage, up.PageUUID,
			"transient", ocr.IsTransient(err),
			"error", err,
		)
		return &UploadResult{
			Status:      StatusFailed,
			PageID:      page.ID,
			ContentHash: hash,
			Error:       err.Error(),
		}, nil
	}

	ledger, err := s.quota.Consume(ctx, userID, result.PageCount)
	if err != nil {
		if errors.Is(err, models.ErrQuotaExhausted) {
			// Lost the race to a concurrent consume. The transcription is
			// discarded rather than persisted unbilled.
			return s.deferUpload(ctx, userID, up, page, sourceKey, pdfKey, hash, start)
		}
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CompletePageOCR(ctx, page.ID, result.Text, result.Confidence, hash); err != nil {
			return err
		}
		_, err := tx.EnqueueWorkItem(ctx, &models.WorkItem{
			ID:           uuid.New().String(),
			UserID:       userID,
			Kind:         string(models.WorkFull),
			TargetRef:    up.PageUUID,
			ContentHash:  hash,
			Destinations: models.DestinationsAll,
			Priority:     models.PriorityFull,
			Status:       string(models.WorkQueued),
			RunAt:        time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("committing transcription: %w", err)
	}

	s.metrics.RecordUpload(string(StatusCompleted), len(up.Source), time.Since(start))

	logger.InfoCtx(ctx, "upload transcribed",
		logger.KeyUserID, userID,
		logger.KeyPage, up.PageUUID,
		logger.KeyHash, hash,
		logger.KeyQuotaUsed, ledger.Used,
		logger.KeyOCRMs, logger.Duration(ocrStart),
		logger.KeyDurationMs, logger.Duration(start),
	)

	return &UploadResult{
		Status:      StatusCompleted,
		PageID:      page.ID,
		ContentHash: hash,
		Text:        result.Text,
		Confidence:  result.Confidence,
		PagesUsed:   result.PageCount,
	}, nil
}
