package logger

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so logs can be
// aggregated and queried by user, notebook, page and destination.
const (
	// Request correlation
	KeyRequestID = "request_id" // HTTP request id
	KeyUserID    = "user_id"    // Account id
	KeyRemote    = "remote_addr"

	// Sync domain
	KeyNotebook    = "notebook"    // Notebook UUID
	KeyPage        = "page"        // Page UUID
	KeyDestination = "destination" // Destination name
	KeyWorker      = "worker"      // Sync worker id
	KeyWorkItem    = "work_item"   // Work item id
	KeyHash        = "content_hash"
	KeyStatus      = "status"

	// Quota
	KeyQuotaUsed  = "quota_used"
	KeyQuotaLimit = "quota_limit"

	// Timing and size
	KeyDurationMs = "duration_ms"
	KeyBytes      = "bytes"
	KeyOCRMs      = "ocr_ms"
	KeyAttempts   = "attempts"
)
