package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/CardScan/internal/model"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	scan := &model.Scan{ID: "s1", FileName: "card.png", ObjectKey: "scans/s1/card.png"}
	require.NoError(t, store.Create(ctx, scan))
	assert.Equal(t, model.StatusQueued, scan.Status)

	require.NoError(t, store.MarkProcessing(ctx, "s1"))
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)

	require.NoError(t, store.MarkFailed(ctx, "s1", "boom"))
	got, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "boom", *got.ErrorMessage)

	require.NoError(t, store.MarkCompleted(ctx, "s1", "s1.txt", "Patient: Jane Doe\n"))
	got, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Nil(t, got.ErrorMessage)
	assert.Equal(t, "Patient: Jane Doe\n", got.Report)
	require.NotNil(t, got.ProcessedKey)
	assert.Equal(t, "s1.txt", *got.ProcessedKey)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, &model.Scan{ID: "s1"}))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	got.Status = model.StatusFailed

	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, again.Status)
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.MarkProcessing(ctx, "missing"), ErrNotFound)
}
