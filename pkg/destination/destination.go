// Package destination defines the polymorphic contract for third-party
// sync targets and the implementations shipped with rmirror.
//
// A destination receives transcribed page content (and optionally a
// notebook container object) and returns opaque external ids that the sync
// records pin for deduplication. Adapters are constructed per user from the
// decrypted IntegrationConfig by the factory in this package.
package destination

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Capability describes an optional adapter feature.
type Capability string

const (
	CapCreate      Capability = "create"
	CapUpdate      Capability = "update"
	CapDelete      Capability = "delete"
	CapDedupeCheck Capability = "dedupe-check"
	CapValidate    Capability = "validate"
	CapContainers  Capability = "containers"
)

// Item is the unit handed to an adapter: one page (or one notebook
// container) with its content payload and fingerprint.
type Item struct {
	// PageUUID identifies the page; for containers it carries the
	// notebook UUID.
	PageUUID string

	// NotebookUUID and NotebookName give the container context.
	NotebookUUID string
	NotebookName string

	// ContainerExternalID is the destination-side container the page
	// belongs to, when the destination models containers.
	ContainerExternalID string

	// PageNumber is the position within the notebook.
	PageNumber int

	// Text is the transcribed content.
	Text string

	// Confidence is the OCR confidence for the text.
	Confidence float64

	// ContentHash is the fingerprint of the payload.
	ContentHash string

	// Metadata carries destination-specific handles from the sync record.
	Metadata []byte
}

// Status of one sync call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// SyncResult is the outcome of one adapter call.
type SyncResult struct {
	Status     Status
	ExternalID string
	Metadata   []byte
	Err        error
}

// ErrGone is returned (wrapped) when the external object was archived or
// deleted destination-side; the caller drops the local record and recreates.
var ErrGone = errors.New("external object gone")

// Error wraps a destination failure with its retry class.
type Error struct {
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "transient"
	}
	return fmt.Sprintf("%s destination error: %v", kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure is worth retrying (network, 5xx,
// rate limit). Auth and validation failures are not.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// Adapter is the destination contract. Implementations must be safe for
// concurrent use; the sync worker calls them from multiple goroutines.
type Adapter interface {
	// Name returns the destination name ("notes", "webhook", ...).
	Name() string

	// Capabilities lists what the adapter supports.
	Capabilities() []Capability

	// SyncItem creates the external object for a new item.
	SyncItem(ctx context.Context, item *Item) (*SyncResult, error)

	// UpdateItem updates an existing external object. Returns an error
	// wrapping ErrGone when the object vanished destination-side.
	UpdateItem(ctx context.Context, externalID string, item *Item) (*SyncResult, error)

	// DeleteItem removes an external object. Idempotent.
	DeleteItem(ctx context.Context, externalID string) (*SyncResult, error)

	// CreateContainer creates the notebook container and returns its
	// external id. Only called when CapContainers is present.
	CreateContainer(ctx context.Context, item *Item) (*SyncResult, error)

	// CheckDuplicate looks up an external object by content hash. Used to
	// recover an external id lost between the destination call and the
	// local record insert. Returns "" when not found or unsupported.
	CheckDuplicate(ctx context.Context, contentHash string) (string, error)

	// ValidateConnection verifies the credentials still work.
	ValidateConnection(ctx context.Context) error
}

// HasCapability reports whether the adapter declares c.
func HasCapability(a Adapter, c Capability) bool {
	for _, got := range a.Capabilities() {
		if got == c {
			return true
		}
	}
	return false
}

// DefaultTimeout bounds one destination API call.
const DefaultTimeout = 30 * time.Second
