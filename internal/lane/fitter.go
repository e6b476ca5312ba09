// Package lane reduces noisy line segments from an edge detector into the two
// boundary lines of the center lane.
package lane

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInsufficientData means the segment set cannot produce both lane lines yet.
// Callers retry on a later frame.
var ErrInsufficientData = errors.New("insufficient line segments")

// Segment is a raw line segment in image pixel space.
type Segment struct {
	X1, Y1, X2, Y2 int
}

// Params is a first-degree fit y = Slope*x + Intercept.
type Params struct {
	Slope     float64
	Intercept float64
}

// X returns the x coordinate where the line reaches y.
func (p Params) X(y float64) float64 {
	return (y - p.Intercept) / p.Slope
}

// Line is a lane boundary re-projected to the bottom (y = frame height) and top (y = 0)
// of the frame.
type Line struct {
	Params
	Bottom image.Point
	Top    image.Point
}

// Lanes is the frozen left/right pair for one video.
type Lanes struct {
	Left  Line
	Right Line
}

// FitSegment fits a line through the segment's endpoints. Vertical segments have no
// slope and report false.
func FitSegment(s Segment) (Params, bool) {
	if s.X1 == s.X2 {
		return Params{}, false
	}
	slope := float64(s.Y2-s.Y1) / float64(s.X2-s.X1)
	return Params{
		Slope:     slope,
		Intercept: float64(s.Y1) - slope*float64(s.X1),
	}, true
}

// Average returns the arithmetic mean of slope and intercept.
func Average(fits []Params) Params {
	var avg Params
	if len(fits) == 0 {
		return avg
	}
	for _, f := range fits {
		avg.Slope += f.Slope
		avg.Intercept += f.Intercept
	}
	n := float64(len(fits))
	avg.Slope /= n
	avg.Intercept /= n
	return avg
}

// Project builds the lane line endpoints at y = height and y = 0. Coordinates are
// truncated toward zero.
func Project(p Params, height int) (Line, error) {
	if p.Slope == 0 {
		return Line{}, fmt.Errorf("%w: zero slope", ErrInsufficientData)
	}
	xb, xt := p.X(float64(height)), p.X(0)
	if !finite(xb) || !finite(xt) {
		return Line{}, fmt.Errorf("%w: non-finite projection", ErrInsufficientData)
	}
	return Line{
		Params: p,
		Bottom: image.Pt(int(xb), height),
		Top:    image.Pt(int(xt), 0),
	}, nil
}

// Fit partitions segments by slope sign (negative is left) and averages each side.
func Fit(segments []Segment, height int) (Lanes, error) {
	var left, right []Params
	for _, s := range segments {
		p, ok := FitSegment(s)
		if !ok {
			continue
		}
		if p.Slope < 0 {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		return Lanes{}, fmt.Errorf("%w: left=%d right=%d", ErrInsufficientData, len(left), len(right))
	}

	l, err := Project(Average(left), height)
	if err != nil {
		return Lanes{}, fmt.Errorf("left lane: %w", err)
	}
	r, err := Project(Average(right), height)
	if err != nil {
		return Lanes{}, fmt.Errorf("right lane: %w", err)
	}
	return Lanes{Left: l, Right: r}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
