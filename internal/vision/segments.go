package vision

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"roadwatch-go/internal/config"
	"roadwatch-go/internal/lane"
)

// SegmentExtractor finds candidate lane-marking segments: grayscale, blur, Canny,
// lane region mask and probabilistic Hough.
type SegmentExtractor struct {
	region    polygonMask
	blur      image.Point
	cannyLow  float32
	cannyHigh float32
	rho       float32
	theta     float32
	threshold int
	minLength float32
	maxGap    float32

	gray    gocv.Mat
	blurred gocv.Mat
	edges   gocv.Mat
	lines   gocv.Mat
}

func NewSegmentExtractor(cfg *config.Config) *SegmentExtractor {
	k := cfg.BlurKernel
	if k%2 == 0 {
		k++
	}
	return &SegmentExtractor{
		region:    newPolygonMask(cfg.LaneROI),
		blur:      image.Pt(k, k),
		cannyLow:  cfg.CannyLow,
		cannyHigh: cfg.CannyHigh,
		rho:       cfg.HoughRho,
		theta:     cfg.HoughThetaDegrees * math.Pi / 180,
		threshold: cfg.HoughThreshold,
		minLength: cfg.HoughMinLineLength,
		maxGap:    cfg.HoughMaxLineGap,
		gray:      gocv.NewMat(),
		blurred:   gocv.NewMat(),
		edges:     gocv.NewMat(),
		lines:     gocv.NewMat(),
	}
}

func (e *SegmentExtractor) Segments(frame gocv.Mat) ([]lane.Segment, error) {
	gocv.CvtColor(frame, &e.gray, gocv.ColorBGRToGray)
	gocv.GaussianBlur(e.gray, &e.blurred, e.blur, 0, 0, gocv.BorderDefault)
	gocv.Canny(e.blurred, &e.edges, e.cannyLow, e.cannyHigh)
	cropped := e.region.apply(e.edges)

	gocv.HoughLinesPWithParams(cropped, &e.lines, e.rho, e.theta, e.threshold, e.minLength, e.maxGap)

	segments := make([]lane.Segment, 0, e.lines.Rows())
	for i := 0; i < e.lines.Rows(); i++ {
		v := e.lines.GetVeciAt(i, 0)
		segments = append(segments, lane.Segment{X1: int(v[0]), Y1: int(v[1]), X2: int(v[2]), Y2: int(v[3])})
	}
	return segments, nil
}

func (e *SegmentExtractor) Close() error {
	e.region.close()
	e.gray.Close()
	e.blurred.Close()
	e.edges.Close()
	return e.lines.Close()
}
