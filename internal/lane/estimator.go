package lane

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrNoLaneFound is returned when the video ends, or the frame ceiling is reached,
// before both lane lines could be fitted.
var ErrNoLaneFound = errors.New("no lane found")

// NextFunc yields the segments of the next frame. ok is false at end of stream.
type NextFunc func(ctx context.Context) (segments []Segment, ok bool, err error)

// Estimator repeatedly fits frames until both lanes converge.
type Estimator struct {
	Height      int
	MinSegments int // Frames with fewer segments are skipped
	MaxFrames   int // 0 disables the ceiling
	Logger      zerolog.Logger
}

// Converge returns the first successful fit and the 1-based frame it came from.
func (e *Estimator) Converge(ctx context.Context, next NextFunc) (Lanes, int, error) {
	minSegments := e.MinSegments
	if minSegments < 1 {
		minSegments = 1
	}

	for frame := 1; ; frame++ {
		if e.MaxFrames > 0 && frame > e.MaxFrames {
			return Lanes{}, frame - 1, fmt.Errorf("%w within %d frames", ErrNoLaneFound, e.MaxFrames)
		}
		if err := ctx.Err(); err != nil {
			return Lanes{}, frame - 1, err
		}

		segments, ok, err := next(ctx)
		if err != nil {
			return Lanes{}, frame, fmt.Errorf("read segments at frame %d: %w", frame, err)
		}
		if !ok {
			return Lanes{}, frame - 1, fmt.Errorf("%w: video ended after %d frames", ErrNoLaneFound, frame-1)
		}
		if len(segments) < minSegments {
			continue
		}

		lanes, err := Fit(segments, e.Height)
		if errors.Is(err, ErrInsufficientData) {
			e.Logger.Debug().Int("frame", frame).Int("segments", len(segments)).Err(err).Msg("Lane fit not converged")
			continue
		}
		if err != nil {
			return Lanes{}, frame, err
		}

		e.Logger.Info().
			Int("frame", frame).
			Int("segments", len(segments)).
			Interface("left", lanes.Left).
			Interface("right", lanes.Right).
			Msg("Lane lines found")
		return lanes, frame, nil
	}
}
