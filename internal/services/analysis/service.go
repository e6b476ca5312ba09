package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"roadwatch-go/internal/config"
	"roadwatch-go/internal/crossing"
	"roadwatch-go/internal/eventsink"
	"roadwatch-go/internal/lane"
	"roadwatch-go/internal/logging"
	"roadwatch-go/internal/models"
	"roadwatch-go/internal/perspective"
	"roadwatch-go/internal/pipeline"
	"roadwatch-go/internal/report"
	"roadwatch-go/internal/vision"
)

// Service runs the video analyses against files on disk.
type Service struct {
	cfg    *config.Config
	store  eventsink.Sink
	pub    eventsink.Publisher
	logger zerolog.Logger
}

// NewService creates a new analysis service. store and pub may be nil.
func NewService(cfg *config.Config, store eventsink.Sink, pub eventsink.Publisher) *Service {
	return &Service{
		cfg:    cfg,
		store:  store,
		pub:    pub,
		logger: logging.NewServiceLogger(cfg, "analysis"),
	}
}

// Options control the interactive parts of a run.
type Options struct {
	RunID   string
	Display bool
	Out     io.Writer // progress lines; nil for none
}

// CountResult is a finished counting run.
type CountResult struct {
	pipeline.CountResult
	CSVPath  string
	PlotPath string
}

// CountCars counts the vehicles crossing the reference line and writes their frame
// indices to <video>.csv. A CSV write or close failure fails the run; the store and
// NATS outputs are best effort.
func (s *Service) CountCars(ctx context.Context, path string, opts Options) (res CountResult, err error) {
	logger := logging.WithVideo(logging.WithRun(s.logger, opts.RunID), path)
	printf(opts.Out, "Processing video.. %s\n", path)

	policy, err := crossing.ParsePolicy(s.cfg.CrossingPolicy, s.cfg.CrossingConsecutive)
	if err != nil {
		return res, err
	}

	video, err := vision.OpenVideo(path)
	if err != nil {
		return res, err
	}
	defer video.Close()

	res.CSVPath = eventsink.CSVPath(path)
	csvSink, err := eventsink.NewCSV(res.CSVPath)
	if err != nil {
		return res, err
	}
	sinks := []eventsink.Sink{eventsink.Required(csvSink)}
	if s.store != nil {
		sinks = append(sinks, s.store)
	}
	if s.pub != nil {
		sinks = append(sinks, eventsink.NewNATS(s.pub, s.cfg.EventsSubject))
	}
	sink := eventsink.NewMulti(sinks...)
	defer func() {
		cerr := sink.Close()
		if cerr == nil {
			return
		}
		logger.Error().Err(cerr).Msg("Failed to close event sinks")
		if err == nil && errors.Is(cerr, eventsink.ErrRequired) {
			err = cerr
		}
	}()

	fg := vision.NewForeground(s.cfg)
	defer fg.Close()
	filter := vision.NewRegionFilter(s.cfg)
	defer filter.Close()

	counter := &pipeline.Counter[gocv.Mat]{
		Foreground: fg,
		Filter:     filter,
		Blobs:      vision.ContourCounter{},
		Validity: crossing.Validity{
			LineY:   s.cfg.CrossingLineY,
			MinArea: s.cfg.MinContourArea,
		},
		Policy:           policy,
		BackgroundFrames: s.cfg.BackgroundFrames,
		RunID:            opts.RunID,
		Video:            path,
		Out:              opts.Out,
		Logger:           logger,
	}

	var timeline *report.Timeline
	if s.cfg.CountPlotEnabled {
		timeline = report.NewTimeline(filepath.Base(path))
		counter.Observer = timeline.Record
	}
	if opts.Display {
		w := vision.NewWindow("video")
		defer w.Close()
		w.LineY = s.cfg.CrossingLineY
		counter.Viewer = w
	}

	res.CountResult, err = counter.Run(ctx, video, sink)
	if err != nil {
		return res, err
	}

	if timeline != nil && timeline.Len() > 0 {
		res.PlotPath = report.PlotPath(path)
		if err := timeline.Save(res.PlotPath); err != nil {
			logger.Warn().Err(err).Msg("Failed to save count timeline")
			res.PlotPath = ""
		}
	}

	logger.Info().
		Int("frames", res.Frames).
		Int("crossings", len(res.Events)).
		Int("sink_errors", res.SinkErrors).
		Str("csv", res.CSVPath).
		Msg("Vehicle counting finished")
	return res, nil
}

// BirdsEyeResult is a finished bird's-eye run.
type BirdsEyeResult struct {
	pipeline.BirdsEyeResult
	SnapshotPath string
}

// BirdsEye fits the center lane of the video and displays its rectified view.
func (s *Service) BirdsEye(ctx context.Context, path string, opts Options) (BirdsEyeResult, error) {
	var res BirdsEyeResult
	logger := logging.WithVideo(logging.WithRun(s.logger, opts.RunID), path)
	printf(opts.Out, "Processing video.. %s\n", path)

	policy, err := perspective.ParsePolicy(s.cfg.BirdsEyePolicy)
	if err != nil {
		return res, err
	}

	video, err := vision.OpenVideo(path)
	if err != nil {
		return res, err
	}
	defer video.Close()

	segments := vision.NewSegmentExtractor(s.cfg)
	defer segments.Close()

	b := &pipeline.BirdsEye[gocv.Mat]{
		Segments: segments,
		NewWarper: func(m *perspective.Mapper) (pipeline.Warper[gocv.Mat], error) {
			return vision.NewWarper(m)
		},
		Estimator: lane.Estimator{
			MinSegments: s.cfg.LaneMinSegments,
			MaxFrames:   s.cfg.LaneMaxFrames,
		},
		Options: perspective.Options{
			Policy:       policy,
			Scale:        s.cfg.BirdsEyeScale,
			MaxCondition: s.cfg.MaxConditionNumber,
		},
		Logger: logger,
	}

	if s.cfg.BirdsEyeSnapshot {
		base := strings.TrimSuffix(path, filepath.Ext(path))
		b.OnLanes = func(frame gocv.Mat, lanes lane.Lanes) {
			annotated := frame.Clone()
			defer annotated.Close()
			vision.DrawLanes(&annotated, lanes)
			if err := vision.WriteImage(base+"_lanes.jpg", annotated); err != nil {
				logger.Warn().Err(err).Msg("Failed to save lane snapshot")
			}
		}
		b.OnWarped = func(index int, frame gocv.Mat) error {
			if index != 1 {
				return nil
			}
			res.SnapshotPath = base + "_birdseye.jpg"
			return vision.WriteImage(res.SnapshotPath, frame)
		}
	}
	if opts.Display {
		w := vision.NewWindow("video")
		defer w.Close()
		b.Viewer = w
	}

	res.BirdsEyeResult, err = b.Run(ctx, video)
	if err != nil {
		return res, err
	}
	logger.Info().Int("frames", res.Frames).Bool("quit", res.Quit).Msg("Bird's-eye run finished")
	return res, nil
}

// ReadFrame saves the configured frame of the video as <video>_frame_<index>.jpg.
func (s *Service) ReadFrame(path string, opts Options) (string, error) {
	printf(opts.Out, "Processing video.. %s\n", path)
	out, err := vision.ExtractFrame(path, s.cfg.SnapshotFrameIndex)
	if err != nil {
		return "", err
	}
	logging.WithVideo(s.logger, path).Info().Str("output", out).Msg("Frame saved")
	return out, nil
}

// Run executes a queued run headless. It satisfies runs.Runner.
func (s *Service) Run(ctx context.Context, run models.Run) (models.RunResult, error) {
	opts := Options{RunID: run.ID}

	switch run.Kind {
	case models.RunKindCount:
		res, err := s.CountCars(ctx, run.Video, opts)
		return models.RunResult{Frames: res.Frames, Crossings: len(res.Events), Output: res.CSVPath}, err
	case models.RunKindBirdsEye:
		res, err := s.BirdsEye(ctx, run.Video, opts)
		return models.RunResult{Frames: res.Frames, Output: res.SnapshotPath}, err
	case models.RunKindFrame:
		out, err := s.ReadFrame(run.Video, opts)
		return models.RunResult{Output: out}, err
	default:
		return models.RunResult{}, fmt.Errorf("unknown run kind %q", run.Kind)
	}
}

func printf(out io.Writer, format string, args ...interface{}) {
	if out != nil {
		fmt.Fprintf(out, format, args...)
	}
}
