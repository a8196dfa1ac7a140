package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "rmirror", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, ClientIP("192.168.1.1"))
	})
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("ClientIP", func(t *testing.T) {
		attr := ClientIP("192.168.1.100")
		assert.Equal(t, AttrClientIP, string(attr.Key))
		assert.Equal(t, "192.168.1.100", attr.Value.AsString())
	})

	t.Run("ClientAddr", func(t *testing.T) {
		attr := ClientAddr("192.168.1.100:12345")
		assert.Equal(t, AttrClientAddr, string(attr.Key))
		assert.Equal(t, "192.168.1.100:12345", attr.Value.AsString())
	})

	t.Run("UserID", func(t *testing.T) {
		attr := UserID("user-1")
		assert.Equal(t, AttrUserID, string(attr.Key))
		assert.Equal(t, "user-1", attr.Value.AsString())
	})

	t.Run("Notebook", func(t *testing.T) {
		attr := Notebook("nb-uuid")
		assert.Equal(t, AttrNotebook, string(attr.Key))
		assert.Equal(t, "nb-uuid", attr.Value.AsString())
	})

	t.Run("Page", func(t *testing.T) {
		attr := Page("page-uuid")
		assert.Equal(t, AttrPage, string(attr.Key))
		assert.Equal(t, "page-uuid", attr.Value.AsString())
	})

	t.Run("PageNumber", func(t *testing.T) {
		attr := PageNumber(7)
		assert.Equal(t, AttrPageNumber, string(attr.Key))
		assert.Equal(t, int64(7), attr.Value.AsInt64())
	})

	t.Run("ContentHash", func(t *testing.T) {
		attr := ContentHash("abc123")
		assert.Equal(t, AttrContentHash, string(attr.Key))
		assert.Equal(t, "abc123", attr.Value.AsString())
	})

	t.Run("Destination", func(t *testing.T) {
		attr := Destination("notes")
		assert.Equal(t, AttrDestination, string(attr.Key))
		assert.Equal(t, "notes", attr.Value.AsString())
	})

	t.Run("WorkItem", func(t *testing.T) {
		attr := WorkItem("wi-1")
		assert.Equal(t, AttrWorkItem, string(attr.Key))
		assert.Equal(t, "wi-1", attr.Value.AsString())
	})

	t.Run("WorkKind", func(t *testing.T) {
		attr := WorkKind("full")
		assert.Equal(t, AttrWorkKind, string(attr.Key))
		assert.Equal(t, "full", attr.Value.AsString())
	})

	t.Run("HashHit", func(t *testing.T) {
		attr := HashHit(true)
		assert.Equal(t, AttrHashHit, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("PageCount", func(t *testing.T) {
		attr := PageCount(3)
		assert.Equal(t, AttrPageCount, string(attr.Key))
		assert.Equal(t, int64(3), attr.Value.AsInt64())
	})

	t.Run("QuotaUsed", func(t *testing.T) {
		attr := QuotaUsed(29)
		assert.Equal(t, AttrQuotaUsed, string(attr.Key))
		assert.Equal(t, int64(29), attr.Value.AsInt64())
	})

	t.Run("QuotaLimit", func(t *testing.T) {
		attr := QuotaLimit(30)
		assert.Equal(t, AttrQuotaLimit, string(attr.Key))
		assert.Equal(t, int64(30), attr.Value.AsInt64())
	})

	t.Run("Bucket", func(t *testing.T) {
		attr := Bucket("rmirror-pages")
		assert.Equal(t, AttrBucket, string(attr.Key))
		assert.Equal(t, "rmirror-pages", attr.Value.AsString())
	})

	t.Run("StorageKey", func(t *testing.T) {
		attr := StorageKey("users/u1/pages/p1/pdf")
		assert.Equal(t, AttrKey, string(attr.Key))
		assert.Equal(t, "users/u1/pages/p1/pdf", attr.Value.AsString())
	})
}

func TestStartIngestSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartIngestSpan(ctx, "upload", "user-1")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartIngestSpan(ctx, "ocr", "user-1", Page("page-uuid"), PageCount(2))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartSyncSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSyncSpan(ctx, "item", "wi-1")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	newCtx2, span2 := StartSyncSpan(ctx, "container", "wi-2", Destination("notes"))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartBlobSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartBlobSpan(ctx, "put", "users/u1/pages/p1/source", Bytes(1024))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}
