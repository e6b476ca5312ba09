package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"roadwatch-go/internal/crossing"
	"roadwatch-go/internal/eventsink"
)

// MaxBackgroundFrames bounds the background learning pass.
const MaxBackgroundFrames = 1000

// Counter learns a background model, then counts vehicles crossing the reference
// line frame by frame.
type Counter[F any] struct {
	Foreground ForegroundModel[F]
	Filter     MaskFilter[F]
	Blobs      BlobCounter[F]
	Viewer     Viewer[F]

	Validity         crossing.Validity // FrameWidth 0 uses the source width
	Policy           crossing.Policy
	BackgroundFrames int

	RunID string
	Video string

	// Observer, when set, sees every valid count; ev is non-nil on crossing frames.
	Observer func(frame, count int, ev *crossing.Event)

	// Out receives the progress lines; nil discards them.
	Out    io.Writer
	Logger zerolog.Logger
}

type CountResult struct {
	LearnedFrames int
	Frames        int
	Events        []crossing.Event
	SinkErrors    int
	Quit          bool
}

func (c *Counter[F]) printf(format string, args ...interface{}) {
	if c.Out != nil {
		fmt.Fprintf(c.Out, format, args...)
	}
}

// Run counts crossings in src and hands each one to sink. End of stream ends the
// run normally; ctx cancellation returns the partial result with ctx.Err().
// Sink errors are counted unless they match eventsink.ErrRequired, which stops the run.
func (c *Counter[F]) Run(ctx context.Context, src FrameSource[F], sink eventsink.Sink) (CountResult, error) {
	var res CountResult
	viewer := c.Viewer
	if viewer == nil {
		viewer = NopViewer[F]{}
	}
	if sink == nil {
		sink = eventsink.Discard{}
	}

	limit := c.BackgroundFrames
	if limit <= 0 || limit > MaxBackgroundFrames {
		limit = MaxBackgroundFrames
	}

	c.printf("Building background model..\n")
	for res.LearnedFrames < limit {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		frame, ok := src.Read()
		if !ok {
			break
		}
		if err := c.Foreground.Learn(frame); err != nil {
			return res, fmt.Errorf("learn background at frame %d: %w", res.LearnedFrames+1, err)
		}
		res.LearnedFrames++
	}
	c.Logger.Info().Int("frames", res.LearnedFrames).Msg("Background model built")

	if err := src.Seek(0); err != nil {
		return res, fmt.Errorf("rewind video: %w", err)
	}

	validity := c.Validity
	if validity.FrameWidth == 0 {
		validity.FrameWidth = src.Size().X
	}
	det := crossing.NewDetector(c.Policy)

	c.printf("Detecting cars..\n")
	for {
		if err := ctx.Err(); err != nil {
			res.Events = det.Events()
			return res, err
		}
		frame, ok := src.Read()
		if !ok {
			break
		}
		res.Frames++
		index := res.Frames

		count, err := c.count(frame, validity)
		if err != nil {
			res.Events = det.Events()
			return res, fmt.Errorf("frame %d: %w", index, err)
		}

		ev, crossed := det.Observe(index, count)
		var evp *crossing.Event
		if crossed {
			evp = &ev
			c.printf("Vehicle detected at frame: %d\n", index)
			c.Logger.Info().Int("frame", index).Int("previous", ev.Previous).Int("current", ev.Current).Msg("Vehicle detected")

			rec := eventsink.Record{RunID: c.RunID, Video: c.Video, Event: ev}
			if err := sink.Write(ctx, rec); err != nil {
				res.SinkErrors++
				if errors.Is(err, eventsink.ErrRequired) {
					res.Events = det.Events()
					return res, fmt.Errorf("frame %d: %w", index, err)
				}
				c.Logger.Error().Err(err).Int("frame", index).Msg("Failed to write crossing event")
			}
		}
		if c.Observer != nil {
			c.Observer(index, count, evp)
		}

		caption := fmt.Sprintf("Frame %d  Vehicles %d  Crossings %d", index, count, det.Len())
		if viewer.Show(frame, caption) {
			res.Quit = true
			break
		}
	}

	res.Events = det.Events()
	return res, nil
}

func (c *Counter[F]) count(frame F, v crossing.Validity) (int, error) {
	fg, err := c.Foreground.Apply(frame)
	if err != nil {
		return 0, fmt.Errorf("foreground: %w", err)
	}
	mask, err := c.Filter.Filter(fg)
	if err != nil {
		return 0, fmt.Errorf("region filter: %w", err)
	}
	blobs, err := c.Blobs.Blobs(mask)
	if err != nil {
		return 0, fmt.Errorf("contours: %w", err)
	}
	return v.Count(blobs), nil
}
