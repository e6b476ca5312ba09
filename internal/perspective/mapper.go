package perspective

import (
	"fmt"
	"image"
	"strings"

	"roadwatch-go/internal/lane"
)

// Policy selects the destination rectangle built from the two lane lines.
type Policy int

const (
	// InPlace straightens each lane line vertically at its own top x. The road is
	// rectified but not rescaled to a canonical lane width.
	InPlace Policy = iota
	// SharedWidth maps both lines onto the rectangle spanned by their bottom points.
	SharedWidth
)

func (p Policy) String() string {
	switch p {
	case InPlace:
		return "in_place"
	case SharedWidth:
		return "shared_width"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts "in_place" or "shared_width".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "in_place", "inplace":
		return InPlace, nil
	case "shared_width", "shared":
		return SharedWidth, nil
	}
	return InPlace, fmt.Errorf("unknown perspective policy %q", s)
}

func pt(p image.Point) Point {
	return Point{X: float64(p.X), Y: float64(p.Y)}
}

// Correspondence returns the source quad bounded by the lane lines and the destination
// rectangle it maps onto.
func Correspondence(l lane.Lanes, policy Policy) (src, dst Quad) {
	src = Quad{pt(l.Right.Top), pt(l.Left.Top), pt(l.Left.Bottom), pt(l.Right.Bottom)}

	switch policy {
	case SharedWidth:
		dst = Quad{
			{X: float64(l.Right.Bottom.X), Y: float64(l.Right.Top.Y)},
			{X: float64(l.Left.Bottom.X), Y: float64(l.Left.Top.Y)},
			pt(l.Left.Bottom),
			pt(l.Right.Bottom),
		}
	default:
		dst = Quad{
			pt(l.Right.Top),
			pt(l.Left.Top),
			{X: float64(l.Left.Top.X), Y: float64(l.Left.Bottom.Y)},
			{X: float64(l.Right.Top.X), Y: float64(l.Right.Bottom.Y)},
		}
	}
	return src, dst
}

// Options configures NewMapper.
type Options struct {
	Policy       Policy
	Scale        float64 // Output downsampling factor; <= 0 keeps full size
	MaxCondition float64
}

// Mapper is computed once per video and applied to every frame.
type Mapper struct {
	H          Homography
	Src        Quad
	Dst        Quad
	FrameSize  image.Point
	OutputSize image.Point
}

// NewMapper derives the bird's-eye transform for frames of the given size.
func NewMapper(l lane.Lanes, width, height int, opts Options) (*Mapper, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	src, dst := Correspondence(l, opts.Policy)
	h, err := Solve(src, dst, opts.MaxCondition)
	if err != nil {
		return nil, fmt.Errorf("bird's-eye transform: %w", err)
	}

	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	out := image.Pt(int(scale*float64(width)), int(scale*float64(height)))
	if out.X < 1 {
		out.X = 1
	}
	if out.Y < 1 {
		out.Y = 1
	}

	return &Mapper{
		H:          h,
		Src:        src,
		Dst:        dst,
		FrameSize:  image.Pt(width, height),
		OutputSize: out,
	}, nil
}
