package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for pipeline operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Client attributes
	// ========================================================================
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"

	// ========================================================================
	// Sync domain attributes
	// ========================================================================
	AttrUserID      = "rmirror.user_id"
	AttrNotebook    = "rmirror.notebook"
	AttrPage        = "rmirror.page"
	AttrPageNumber  = "rmirror.page_number"
	AttrContentHash = "rmirror.content_hash"
	AttrDestination = "rmirror.destination"
	AttrWorkItem    = "rmirror.work_item"
	AttrWorkKind    = "rmirror.work_kind"
	AttrWorker      = "rmirror.worker"
	AttrOCRStatus   = "rmirror.ocr_status"
	AttrHashHit     = "rmirror.hash_hit"
	AttrPageCount   = "rmirror.page_count"
	AttrAttempt     = "rmirror.attempt"

	// ========================================================================
	// Quota attributes
	// ========================================================================
	AttrQuotaUsed  = "rmirror.quota_used"
	AttrQuotaLimit = "rmirror.quota_limit"

	// ========================================================================
	// Storage backend attributes
	// ========================================================================
	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
	AttrBytes  = "storage.bytes"
)

// Span names.
// Format: <component>.<operation>
const (
	// Ingestion pipeline spans
	SpanIngestUpload   = "ingest.upload"
	SpanIngestMetadata = "ingest.metadata"
	SpanIngestOCR      = "ingest.ocr"
	SpanIngestDedup    = "ingest.dedup"

	// Quota spans
	SpanQuotaConsume = "quota.consume"
	SpanQuotaReset   = "quota.reset"

	// Sync worker spans
	SpanSyncItem      = "sync.item"
	SpanSyncContainer = "sync.container"
	SpanSyncMetadata  = "sync.metadata"
	SpanSyncClaim     = "sync.claim"

	// Storage spans
	SpanBlobPut = "blob.put"
	SpanBlobGet = "blob.get"
)

// UserID returns an attribute for the account id
func UserID(id string) attribute.KeyValue {
	return attribute.String(AttrUserID, id)
}

// Notebook returns an attribute for the notebook UUID
func Notebook(uuid string) attribute.KeyValue {
	return attribute.String(AttrNotebook, uuid)
}

// Page returns an attribute for the page UUID
func Page(uuid string) attribute.KeyValue {
	return attribute.String(AttrPage, uuid)
}

// PageNumber returns an attribute for the page position
func PageNumber(n int) attribute.KeyValue {
	return attribute.Int(AttrPageNumber, n)
}

// ContentHash returns an attribute for the source fingerprint
func ContentHash(hash string) attribute.KeyValue {
	return attribute.String(AttrContentHash, hash)
}

// Destination returns an attribute for the destination name
func Destination(name string) attribute.KeyValue {
	return attribute.String(AttrDestination, name)
}

// WorkItem returns an attribute for the work item id
func WorkItem(id string) attribute.KeyValue {
	return attribute.String(AttrWorkItem, id)
}

// WorkKind returns an attribute for the work item kind
func WorkKind(kind string) attribute.KeyValue {
	return attribute.String(AttrWorkKind, kind)
}

// Worker returns an attribute for the worker id
func Worker(id string) attribute.KeyValue {
	return attribute.String(AttrWorker, id)
}

// OCRStatus returns an attribute for the page OCR status
func OCRStatus(status string) attribute.KeyValue {
	return attribute.String(AttrOCRStatus, status)
}

// HashHit returns an attribute for dedup lookup outcome
func HashHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrHashHit, hit)
}

// PageCount returns an attribute for the billable page count
func PageCount(n int) attribute.KeyValue {
	return attribute.Int(AttrPageCount, n)
}

// Attempt returns an attribute for the retry attempt number
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// QuotaUsed returns an attribute for the ledger's used counter
func QuotaUsed(used int) attribute.KeyValue {
	return attribute.Int(AttrQuotaUsed, used)
}

// QuotaLimit returns an attribute for the ledger's ceiling
func QuotaLimit(limit int) attribute.KeyValue {
	return attribute.Int(AttrQuotaLimit, limit)
}

// Bucket returns an attribute for the object store bucket
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for the object store key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Bytes returns an attribute for a payload size
func Bytes(n int) attribute.KeyValue {
	return attribute.Int(AttrBytes, n)
}

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// StartIngestSpan starts a span for an ingestion operation.
// This is a convenience function that sets common attributes.
func StartIngestSpan(ctx context.Context, operation, userID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		UserID(userID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "ingest."+operation, trace.WithAttributes(allAttrs...))
}

// StartSyncSpan starts a span for a sync worker operation.
func StartSyncSpan(ctx context.Context, operation, workItemID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		WorkItem(workItemID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "sync."+operation, trace.WithAttributes(allAttrs...))
}

// StartBlobSpan starts a span for an object store operation.
func StartBlobSpan(ctx context.Context, operation, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		StorageKey(key),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "blob."+operation, trace.WithAttributes(allAttrs...))
}
