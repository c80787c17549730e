package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/sheet"
)

func openTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	s, err := Open(Config{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	jobs := []domain.Job{
		{
			ID:       "b-second",
			FileName: "report.pdf",
			Mode:     domain.ModeDocToSheet,
			Status:   domain.StatusSuccess,
			ResultSheets: []sheet.Sheet{
				sheet.FromRaw("Table 1", [][]string{{"h"}, {"v"}}),
			},
			OutputOptions: domain.DefaultOutputOptions(domain.ModeDocToSheet),
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			ID:            "a-first",
			FileName:      "data.xlsx",
			Mode:          domain.ModeSheetToDoc,
			Status:        domain.StatusError,
			PageRange:     "1-3",
			ErrorDetail:   "document is password protected",
			OutputOptions: domain.DefaultOutputOptions(domain.ModeSheetToDoc),
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}
	require.NoError(t, s.Save(ctx, jobs))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// Queue order is preserved, not id order.
	assert.Equal(t, "b-second", loaded[0].ID)
	assert.Equal(t, "a-first", loaded[1].ID)

	assert.Equal(t, domain.StatusSuccess, loaded[0].Status)
	require.Len(t, loaded[0].ResultSheets, 1)
	assert.Equal(t, "v", loaded[0].ResultSheets[0].Rows[1][0].Value)

	assert.Equal(t, domain.StatusError, loaded[1].Status)
	assert.Equal(t, "document is password protected", loaded[1].ErrorDetail)
	assert.Equal(t, "1-3", loaded[1].PageRange)
	assert.Equal(t, domain.OrientationLandscape, loaded[1].OutputOptions.Orientation)
	assert.Nil(t, loaded[1].ResultSheets)
}

func TestSnapshotNonTerminalBecomesError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	jobs := []domain.Job{
		{
			ID:            "queued",
			FileName:      "a.pdf",
			Mode:          domain.ModeDocToSheet,
			Status:        domain.StatusQueued,
			OutputOptions: domain.DefaultOutputOptions(domain.ModeDocToSheet),
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		},
		{
			ID:              "processing",
			FileName:        "b.pdf",
			Mode:            domain.ModeDocToSheet,
			Status:          domain.StatusProcessing,
			ProgressMessage: "converting",
			OutputOptions:   domain.DefaultOutputOptions(domain.ModeDocToSheet),
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
		},
	}
	require.NoError(t, s.Save(ctx, jobs))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for _, job := range loaded {
		assert.Equal(t, domain.StatusError, job.Status, "job %s", job.ID)
		assert.Equal(t, ReloadErrorMessage, job.ErrorDetail)
		assert.Empty(t, job.ProgressMessage)
		assert.Nil(t, job.ResultSheets)
		assert.False(t, job.HasSource())
	}
}

func TestSnapshotSaveReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := domain.Job{
		ID:            "j1",
		FileName:      "a.pdf",
		Mode:          domain.ModeDocToSheet,
		Status:        domain.StatusSuccess,
		OutputOptions: domain.DefaultOutputOptions(domain.ModeDocToSheet),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, s.Save(ctx, []domain.Job{job}))
	require.NoError(t, s.Save(ctx, nil))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}
