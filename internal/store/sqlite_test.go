package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadwatch-go/internal/crossing"
	"roadwatch-go/internal/eventsink"
	"roadwatch-go/internal/models"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := models.Run{
		ID:        "run-1",
		Kind:      models.RunKindCount,
		Video:     "/data/MVI_2208_CARS_ON_590_FROM_BRIDGE.mov",
		Status:    models.RunStatusRunning,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.StartRun(ctx, run))

	for _, ev := range []crossing.Event{{Frame: 11, Previous: 1, Current: 0}, {Frame: 57, Previous: 2, Current: 1}} {
		require.NoError(t, s.Write(ctx, eventsink.Record{RunID: run.ID, Video: run.Video, Event: ev}))
	}
	require.NoError(t, s.Close())

	run.Status = models.RunStatusCompleted
	run.Frames = 120
	run.Crossings = 2
	run.Output = "/data/MVI_2208_CARS_ON_590_FROM_BRIDGE.csv"
	require.NoError(t, s.FinishRun(ctx, run))

	got, err := s.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, 120, got.Frames)
	assert.Equal(t, 2, got.Crossings)
	assert.Equal(t, run.Output, got.Output)
	assert.NotNil(t, got.FinishedAt)

	events, err := s.Crossings(ctx, run.ID)
	require.NoError(t, err)
	want := []crossing.Event{{Frame: 11, Previous: 1, Current: 0}, {Frame: 57, Previous: 2, Current: 1}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("crossings mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Run(ctx, "missing")
	require.ErrorIs(t, err, ErrRunNotFound)

	err = s.FinishRun(ctx, models.Run{ID: "missing", Status: models.RunStatusFailed})
	require.ErrorIs(t, err, ErrRunNotFound)

	events, err := s.Crossings(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.StartRun(ctx, models.Run{ID: "r", Kind: models.RunKindCount, Video: "v.mov", Status: models.RunStatusRunning, CreatedAt: time.Now()}))
	require.NoError(t, s.Shutdown())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Shutdown()

	got, err := s.Run(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "v.mov", got.Video)
}
