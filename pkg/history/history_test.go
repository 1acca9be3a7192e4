package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

	run := Run{
		ID:        "1f0c8c1e-0000-4000-8000-000000000001",
		Base:      "tone_20240309_140506",
		Source:    "tone.wav",
		Duration:  30,
		Tonality:  "tonal",
		Narrative: "steady",
		Captions:  3,
		Frames:    1292,
		Artifacts: Artifacts{
			Report: "tone_20240309_140506_Analysis_Report.txt",
			CSV:    "tone_20240309_140506_Feature_Data.csv",
			Plots:  "tone_20240309_140506_Feature_Plots.png",
			Video:  "tone_20240309_140506_visualization.mp4",
		},
		CreatedAt: at,
	}
	require.NoError(t, s.Record(ctx, run))

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, got)

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 3 {
		require.NoError(t, s.Record(ctx, Run{
			ID:        fmt.Sprintf("run-%d", i),
			Base:      "b",
			Source:    "s",
			CreatedAt: start.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
}

func TestStore_GetMissing(t *testing.T) {
	s := openStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RecordRequiresID(t *testing.T) {
	s := openStore(t)
	assert.Error(t, s.Record(context.Background(), Run{}))
}

func TestLock(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	require.NoError(t, err)

	_, err = Acquire(dir)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l.Release())
	l2, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestIsSQLiteBusy(t *testing.T) {
	assert.False(t, isSQLiteBusy(nil))
	assert.True(t, isSQLiteBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, isSQLiteBusy(errors.New("no such table")))
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
