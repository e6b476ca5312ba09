package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"roadwatch-go/internal/cli"
	"roadwatch-go/internal/config"
	"roadwatch-go/internal/logging"
	"roadwatch-go/internal/models"
)

var (
	ErrNotFound    = errors.New("run not found")
	ErrInvalidKind = errors.New("invalid run kind")
	ErrClosed      = errors.New("run manager is shut down")
)

// Runner performs one analysis. Each call gets its own state.
type Runner interface {
	Run(ctx context.Context, run models.Run) (models.RunResult, error)
}

// Recorder persists run lifecycle changes; store.SQLite implements it.
type Recorder interface {
	StartRun(ctx context.Context, run models.Run) error
	FinishRun(ctx context.Context, run models.Run) error
}

type entry struct {
	run    models.Run
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager executes submitted runs in the background with bounded concurrency.
type Manager struct {
	cfg      *config.Config
	runner   Runner
	recorder Recorder
	logger   zerolog.Logger

	runs  map[string]*entry
	order []string
	mutex sync.RWMutex

	slots  chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// NewManager creates a run manager. recorder may be nil.
func NewManager(cfg *config.Config, runner Runner, recorder Recorder) *Manager {
	limit := cfg.MaxConcurrentRuns
	if limit < 1 {
		limit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		runner:   runner,
		recorder: recorder,
		logger:   logging.NewServiceLogger(cfg, "runs"),
		runs:     make(map[string]*entry),
		slots:    make(chan struct{}, limit),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit validates the request and queues the run.
func (m *Manager) Submit(req models.RunRequest) (models.Run, error) {
	if !req.Kind.IsValid() {
		return models.Run{}, fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind)
	}
	if err := cli.ValidateVideo(req.Video, m.cfg.VideoExtensions, ""); err != nil {
		return models.Run{}, err
	}

	run := models.Run{
		ID:        uuid.New().String(),
		Kind:      req.Kind,
		Video:     req.Video,
		Status:    models.RunStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	m.mutex.Lock()
	if m.closed {
		m.mutex.Unlock()
		return models.Run{}, ErrClosed
	}
	ctx, cancel := context.WithCancel(m.ctx)
	e := &entry{run: run, cancel: cancel, done: make(chan struct{})}
	m.runs[run.ID] = e
	m.order = append(m.order, run.ID)
	m.wg.Add(1)
	m.mutex.Unlock()

	if m.recorder != nil {
		if err := m.recorder.StartRun(ctx, run); err != nil {
			m.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record run start")
		}
	}

	go m.execute(ctx, e)

	m.logger.Info().Str("run_id", run.ID).Str("kind", run.Kind.String()).Str("video", run.Video).Msg("Run submitted")
	return run, nil
}

func (m *Manager) execute(ctx context.Context, e *entry) {
	defer m.wg.Done()
	defer close(e.done)
	defer e.cancel()

	select {
	case m.slots <- struct{}{}:
		defer func() { <-m.slots }()
	case <-ctx.Done():
		m.finish(e, models.RunResult{}, ctx.Err())
		return
	}

	now := time.Now().UTC()
	m.update(e, func(r *models.Run) {
		r.Status = models.RunStatusRunning
		r.StartedAt = &now
	})

	res, err := m.runner.Run(ctx, m.snapshot(e))
	m.finish(e, res, err)
}

func (m *Manager) finish(e *entry, res models.RunResult, err error) {
	now := time.Now().UTC()
	m.update(e, func(r *models.Run) {
		r.Frames = res.Frames
		r.Crossings = res.Crossings
		r.Output = res.Output
		r.FinishedAt = &now
		switch {
		case err == nil:
			r.Status = models.RunStatusCompleted
		case errors.Is(err, context.Canceled):
			r.Status = models.RunStatusCanceled
			r.Error = err.Error()
		default:
			r.Status = models.RunStatusFailed
			r.Error = err.Error()
		}
	})

	run := m.snapshot(e)
	event := m.logger.Info()
	if run.Status == models.RunStatusFailed {
		event = m.logger.Error().Err(err)
	}
	event.Str("run_id", run.ID).Str("status", run.Status.String()).Int("frames", run.Frames).Int("crossings", run.Crossings).Msg("Run finished")

	if m.recorder != nil {
		// the run context may already be canceled
		if err := m.recorder.FinishRun(context.Background(), run); err != nil {
			m.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record run result")
		}
	}
}

func (m *Manager) update(e *entry, fn func(*models.Run)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	fn(&e.run)
}

func (m *Manager) snapshot(e *entry) models.Run {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return e.run
}

// Get returns a copy of the run.
func (m *Manager) Get(id string) (models.Run, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	e, ok := m.runs[id]
	if !ok {
		return models.Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.run, nil
}

// List returns all runs in submission order.
func (m *Manager) List() []models.Run {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	out := make([]models.Run, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.runs[id].run)
	}
	return out
}

// Stats returns the number of runs per status.
func (m *Manager) Stats() map[models.RunStatus]int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	stats := make(map[models.RunStatus]int)
	for _, e := range m.runs {
		stats[e.run.Status]++
	}
	return stats
}

// Cancel stops a pending or running run.
func (m *Manager) Cancel(id string) error {
	m.mutex.RLock()
	e, ok := m.runs[id]
	m.mutex.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.cancel()
	return nil
}

// Wait blocks until the run is finished or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (models.Run, error) {
	m.mutex.RLock()
	e, ok := m.runs[id]
	m.mutex.RUnlock()
	if !ok {
		return models.Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	select {
	case <-e.done:
		return m.snapshot(e), nil
	case <-ctx.Done():
		return m.snapshot(e), ctx.Err()
	}
}

// Shutdown cancels every run and waits for them to stop.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mutex.Lock()
	m.closed = true
	m.mutex.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Msg("All runs stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
