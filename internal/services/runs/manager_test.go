package runs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadwatch-go/internal/cli"
	"roadwatch-go/internal/config"
	"roadwatch-go/internal/models"
)

type blockingRunner struct {
	release chan struct{}
	mu      sync.Mutex
	active  int
	peak    int
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, run models.Run) (models.RunResult, error) {
	r.mu.Lock()
	r.active++
	if r.active > r.peak {
		r.peak = r.active
	}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()

	select {
	case <-r.release:
		return models.RunResult{Frames: 100, Crossings: 3, Output: run.Video + ".csv"}, r.err
	case <-ctx.Done():
		return models.RunResult{}, ctx.Err()
	}
}

type memRecorder struct {
	mu       sync.Mutex
	started  []string
	finished []models.Run
}

func (r *memRecorder) StartRun(_ context.Context, run models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, run.ID)
	return nil
}

func (r *memRecorder) FinishRun(_ context.Context, run models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, run)
	return nil
}

func testConfig(limit int) *config.Config {
	return &config.Config{VideoExtensions: []string{".mov"}, MaxConcurrentRuns: limit}
}

func video(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mov")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func waitFor(t *testing.T, m *Manager, id string) models.Run {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	run, err := m.Wait(ctx, id)
	require.NoError(t, err)
	return run
}

func TestSubmitCompletes(t *testing.T) {
	runner := newBlockingRunner()
	rec := &memRecorder{}
	m := NewManager(testConfig(2), runner, rec)
	defer m.Shutdown(context.Background())

	run, err := m.Submit(models.RunRequest{Kind: models.RunKindCount, Video: video(t)})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.RunStatusPending, run.Status)

	close(runner.release)
	done := waitFor(t, m, run.ID)
	assert.Equal(t, models.RunStatusCompleted, done.Status)
	assert.Equal(t, 3, done.Crossings)
	assert.Equal(t, 100, done.Frames)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{run.ID}, rec.started)
	require.Len(t, rec.finished, 1)
	assert.Equal(t, models.RunStatusCompleted, rec.finished[0].Status)
}

func TestSubmitRejectsBadRequests(t *testing.T) {
	m := NewManager(testConfig(1), newBlockingRunner(), nil)
	defer m.Shutdown(context.Background())

	_, err := m.Submit(models.RunRequest{Kind: "paint", Video: video(t)})
	require.ErrorIs(t, err, ErrInvalidKind)

	_, err = m.Submit(models.RunRequest{Kind: models.RunKindCount, Video: "/missing.mov"})
	require.ErrorIs(t, err, cli.ErrNotFound)

	assert.Empty(t, m.List())
}

func TestConcurrencyLimit(t *testing.T) {
	runner := newBlockingRunner()
	m := NewManager(testConfig(1), runner, nil)
	defer m.Shutdown(context.Background())

	path := video(t)
	first, err := m.Submit(models.RunRequest{Kind: models.RunKindCount, Video: path})
	require.NoError(t, err)
	second, err := m.Submit(models.RunRequest{Kind: models.RunKindFrame, Video: path})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r, _ := m.Get(first.ID)
		return r.Status == models.RunStatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	r, err := m.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, r.Status)

	close(runner.release)
	waitFor(t, m, first.ID)
	waitFor(t, m, second.ID)

	runner.mu.Lock()
	assert.Equal(t, 1, runner.peak)
	runner.mu.Unlock()

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, 2, m.Stats()[models.RunStatusCompleted])
}

func TestCancelAndFailure(t *testing.T) {
	runner := newBlockingRunner()
	m := NewManager(testConfig(2), runner, nil)
	defer m.Shutdown(context.Background())

	run, err := m.Submit(models.RunRequest{Kind: models.RunKindBirdsEye, Video: video(t)})
	require.NoError(t, err)
	require.NoError(t, m.Cancel(run.ID))
	assert.Equal(t, models.RunStatusCanceled, waitFor(t, m, run.ID).Status)

	require.ErrorIs(t, m.Cancel("nope"), ErrNotFound)
	_, err = m.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)

	failing := newBlockingRunner()
	failing.err = errors.New("no lane found")
	close(failing.release)
	m2 := NewManager(testConfig(1), failing, nil)
	defer m2.Shutdown(context.Background())

	run, err = m2.Submit(models.RunRequest{Kind: models.RunKindBirdsEye, Video: video(t)})
	require.NoError(t, err)
	done := waitFor(t, m2, run.ID)
	assert.Equal(t, models.RunStatusFailed, done.Status)
	assert.Equal(t, "no lane found", done.Error)
}

func TestShutdownStopsRuns(t *testing.T) {
	m := NewManager(testConfig(1), newBlockingRunner(), nil)
	run, err := m.Submit(models.RunRequest{Kind: models.RunKindCount, Video: video(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	r, err := m.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCanceled, r.Status)

	_, err = m.Submit(models.RunRequest{Kind: models.RunKindCount, Video: video(t)})
	require.ErrorIs(t, err, ErrClosed)
}
