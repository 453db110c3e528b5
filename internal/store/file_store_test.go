package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nugget/internal/convo"
	"nugget/internal/shared/jsonx"
	"nugget/internal/shared/logging"
)

func TestFileStoreStateRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), logging.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.LoadLastState(ctx, "conv-1", convo.SourceAnalytics)
	assert.ErrorIs(t, err, convo.ErrNotFound)

	state := &convo.State{
		Metrics:    []string{"activeUsers"},
		Dimensions: []string{"date"},
		StartDate:  "2026-02-02",
		EndDate:    "2026-02-08",
		Intent:     "trend",
	}
	require.NoError(t, s.SaveSuccessState(ctx, "conv-1", convo.SourceAnalytics, state))

	got, err := s.LoadLastState(ctx, "conv-1", convo.SourceAnalytics)
	require.NoError(t, err)
	assert.Equal(t, []string{"activeUsers"}, got.Metrics)
	assert.Equal(t, "2026-02-02", got.StartDate)
	assert.False(t, got.UpdatedAt.IsZero(), "save stamps UpdatedAt")

	// States of the same conversation are independent per source.
	_, err = s.LoadLastState(ctx, "conv-1", convo.SourceFile)
	assert.ErrorIs(t, err, convo.ErrNotFound)
}

func TestFileStoreOverwriteReplacesWholeDocument(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	first := &convo.State{Metrics: []string{"sessions", "activeUsers"}, EventFilter: "donation_click"}
	require.NoError(t, s.SaveSuccessState(ctx, "conv-1", convo.SourceAnalytics, first))
	second := &convo.State{Metrics: []string{"purchaseRevenue"}}
	require.NoError(t, s.SaveSuccessState(ctx, "conv-1", convo.SourceAnalytics, second))

	got, err := s.LoadLastState(ctx, "conv-1", convo.SourceAnalytics)
	require.NoError(t, err)
	assert.Equal(t, []string{"purchaseRevenue"}, got.Metrics)
	assert.Empty(t, got.EventFilter, "writes replace, never merge")
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.SaveSuccessState(ctx, "conv-1", convo.SourceAnalytics, &convo.State{Intent: "trend"}))

	path := filepath.Join(dir, "conv-1", "state_ga4.json")
	_, err = os.Stat(path)
	require.NoError(t, err, "state document exists")
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestFileStoreResultRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.LoadLastResult(ctx, "conv-1", convo.SourceAnalytics)
	assert.ErrorIs(t, err, convo.ErrNotFound)

	raw := jsonx.RawMessage(`{"status":"ok","message":"지난주 활성 사용자 12,345명"}`)
	require.NoError(t, s.SaveLastResult(ctx, "conv-1", convo.SourceAnalytics, raw))

	got, err := s.LoadLastResult(ctx, "conv-1", convo.SourceAnalytics)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(got))

	err = s.SaveLastResult(ctx, "conv-1", convo.SourceAnalytics, jsonx.RawMessage("{broken"))
	assert.Error(t, err, "invalid JSON payloads are rejected")
}

func TestFileStoreContextRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.LoadContext(ctx, "conv-1")
	assert.ErrorIs(t, err, convo.ErrNotFound)

	require.NoError(t, s.SaveContext(ctx, "conv-1", &convo.Context{
		ActiveSource: convo.SourceFile,
		FilePath:     "/tmp/donations.csv",
	}))

	got, err := s.LoadContext(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, convo.SourceFile, got.ActiveSource)
	assert.Equal(t, "/tmp/donations.csv", got.FilePath)
}

func TestFileStoreEventsSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewFileStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s1.SaveEvents(ctx, "prop-1", []string{"page_view", "donation_click"}))

	events, err := s1.GetEvents(ctx, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"page_view", "donation_click"}, events)

	// Mutating the returned slice must not poison the cache.
	events[0] = "mutated"
	again, err := s1.GetEvents(ctx, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, "page_view", again[0])

	// A fresh store over the same directory reads the document from disk.
	s2, err := NewFileStore(dir, nil)
	require.NoError(t, err)
	events, err = s2.GetEvents(ctx, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"page_view", "donation_click"}, events)

	_, err = s2.GetEvents(ctx, "prop-2")
	assert.ErrorIs(t, err, convo.ErrNotFound)
}

func TestFileStoreHonorsContextCancellation(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.LoadLastState(ctx, "conv-1", convo.SourceAnalytics)
	assert.ErrorIs(t, err, context.Canceled)
	err = s.SaveEvents(ctx, "prop-1", []string{"page_view"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSafeSegment(t *testing.T) {
	assert.Equal(t, "conv-1", safeSegment("conv-1"))
	assert.Equal(t, "a_b_c", safeSegment("a b/c"))
	assert.Equal(t, "_", safeSegment(""))
	assert.Equal(t, "_", safeSegment(".."))
	assert.Equal(t, "____1", safeSegment("한글 키1"))
}
