package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"roadwatch-go/internal/lane"
	"roadwatch-go/internal/perspective"
)

// BirdsEye converges the lane lines, then warps every frame of the video.
type BirdsEye[F any] struct {
	Segments  SegmentSource[F]
	NewWarper WarperFactory[F]
	Viewer    Viewer[F]
	Estimator lane.Estimator
	Options   perspective.Options

	// Optional hooks
	OnLanes  func(frame F, lanes lane.Lanes)
	OnWarped func(index int, frame F) error

	Logger zerolog.Logger
}

type BirdsEyeResult struct {
	Lanes     lane.Lanes
	LaneFrame int // 1-based frame the lanes converged on
	Mapper    *perspective.Mapper
	Frames    int // Frames warped
	Quit      bool
}

// Run processes src until end of stream, a quit request, or ctx cancellation.
func (b *BirdsEye[F]) Run(ctx context.Context, src FrameSource[F]) (BirdsEyeResult, error) {
	var res BirdsEyeResult
	viewer := b.Viewer
	if viewer == nil {
		viewer = NopViewer[F]{}
	}

	size := src.Size()
	est := b.Estimator
	est.Height = size.Y
	est.Logger = b.Logger

	var last F
	next := func(ctx context.Context) ([]lane.Segment, bool, error) {
		frame, ok := src.Read()
		if !ok {
			return nil, false, nil
		}
		last = frame
		segs, err := b.Segments.Segments(frame)
		return segs, true, err
	}

	lanes, at, err := est.Converge(ctx, next)
	if err != nil {
		return res, err
	}
	res.Lanes = lanes
	res.LaneFrame = at
	if b.OnLanes != nil {
		b.OnLanes(last, lanes)
	}

	mapper, err := perspective.NewMapper(lanes, size.X, size.Y, b.Options)
	if err != nil {
		return res, err
	}
	res.Mapper = mapper

	b.Logger.Info().
		Int("lane_frame", at).
		Str("policy", b.Options.Policy.String()).
		Interface("output_size", mapper.OutputSize).
		Msg("Bird's-eye transform ready")

	warper, err := b.NewWarper(mapper)
	if err != nil {
		return res, fmt.Errorf("create warper: %w", err)
	}
	defer warper.Close()

	if err := src.Seek(0); err != nil {
		return res, fmt.Errorf("rewind video: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		frame, ok := src.Read()
		if !ok {
			return res, nil
		}
		warped, err := warper.Warp(frame)
		if err != nil {
			return res, fmt.Errorf("warp frame %d: %w", res.Frames+1, err)
		}
		res.Frames++

		if b.OnWarped != nil {
			if err := b.OnWarped(res.Frames, warped); err != nil {
				b.Logger.Warn().Err(err).Int("frame", res.Frames).Msg("Warped frame hook failed")
			}
		}
		if viewer.Show(warped, "") {
			res.Quit = true
			return res, nil
		}
	}
}

// IsNoLane reports whether err means the lanes never converged.
func IsNoLane(err error) bool {
	return errors.Is(err, lane.ErrNoLaneFound)
}
