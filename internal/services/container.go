package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"roadwatch-go/internal/config"
	"roadwatch-go/internal/eventsink"
	"roadwatch-go/internal/models"
	"roadwatch-go/internal/services/analysis"
	"roadwatch-go/internal/services/messaging"
	"roadwatch-go/internal/services/runs"
	"roadwatch-go/internal/store"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config    *config.Config
	Store     *store.SQLite      // nil without EVENTS_DB_PATH
	Messaging *messaging.Service // nil unless NATS_ENABLED
	Analysis  *analysis.Service
	Runs      *runs.Manager
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	sc := &ServiceContainer{Config: cfg}

	var sink eventsink.Sink
	if cfg.EventsDBPath != "" {
		st, err := store.Open(cfg.EventsDBPath)
		if err != nil {
			return nil, err
		}
		sc.Store = st
		sink = st
		log.Info().Str("path", cfg.EventsDBPath).Msg("Event store opened")
	}

	var pub eventsink.Publisher
	if cfg.NatsEnabled {
		msg, err := messaging.NewService(cfg)
		if err != nil {
			// crossings still reach the CSV and the store
			log.Warn().Err(err).Msg("NATS unavailable, crossing events will not be published")
		} else {
			sc.Messaging = msg
			pub = msg
		}
	}

	sc.Analysis = analysis.NewService(cfg, sink, pub)

	var recorder runs.Recorder
	if sc.Store != nil {
		recorder = sc.Store
	}
	sc.Runs = runs.NewManager(cfg, sc.Analysis, recorder)

	return sc, nil
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var errs []error
	if sc.Runs != nil {
		if err := sc.Runs.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if sc.Store != nil {
		if err := sc.Store.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// RunNow executes one analysis in the foreground and records it in the event store
// when one is configured.
func (sc *ServiceContainer) RunNow(ctx context.Context, kind models.RunKind, video string, fn func(ctx context.Context, runID string) (models.RunResult, error)) error {
	run := models.Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Video:     video,
		Status:    models.RunStatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	if sc.Store != nil {
		if err := sc.Store.StartRun(ctx, run); err != nil {
			return err
		}
	}

	res, err := fn(ctx, run.ID)

	run.Frames = res.Frames
	run.Crossings = res.Crossings
	run.Output = res.Output
	switch {
	case err == nil:
		run.Status = models.RunStatusCompleted
	case errors.Is(err, context.Canceled):
		run.Status = models.RunStatusCanceled
		run.Error = err.Error()
	default:
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
	}
	if sc.Store != nil {
		if ferr := sc.Store.FinishRun(context.Background(), run); ferr != nil {
			log.Warn().Err(ferr).Str("run_id", run.ID).Msg("Failed to record run result")
		}
	}
	return err
}
