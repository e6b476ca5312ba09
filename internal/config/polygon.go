package config

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Vertex is a region-of-interest corner in pixel coordinates. When AtHeight is set the
// Y coordinate is taken from the frame height at the time the polygon is resolved.
type Vertex struct {
	X        int
	Y        int
	AtHeight bool
}

// Polygon is a camera-placement specific region of interest.
type Polygon []Vertex

var (
	// DefaultLaneROI keeps only the white lines of the center lane.
	DefaultLaneROI = Polygon{{X: 200, AtHeight: true}, {X: 1100, AtHeight: true}, {X: 550, Y: 250}}

	// DefaultCountROI keeps only vehicles travelling in the center lane.
	DefaultCountROI = Polygon{{X: 320, AtHeight: true}, {X: 850, AtHeight: true}, {X: 600, Y: 0}, {X: 550, Y: 0}}
)

// Points resolves the polygon against a frame of the given height.
func (p Polygon) Points(height int) []image.Point {
	pts := make([]image.Point, len(p))
	for i, v := range p {
		y := v.Y
		if v.AtHeight {
			y = height
		}
		pts[i] = image.Pt(v.X, y)
	}
	return pts
}

func (p Polygon) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		y := strconv.Itoa(v.Y)
		if v.AtHeight {
			y = "H"
		}
		parts[i] = fmt.Sprintf("%d,%s", v.X, y)
	}
	return strings.Join(parts, " ")
}

// ParsePolygon parses a vertex list such as "320,H 850,H 600,0 550,0". Vertices are
// separated by spaces or semicolons; "H" stands for the frame height.
func ParsePolygon(s string) (Polygon, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ';' })
	if len(fields) < 3 {
		return nil, fmt.Errorf("polygon needs at least 3 vertices, got %d", len(fields))
	}

	poly := make(Polygon, 0, len(fields))
	for _, f := range fields {
		xy := strings.Split(f, ",")
		if len(xy) != 2 {
			return nil, fmt.Errorf("invalid vertex %q", f)
		}
		x, err := strconv.Atoi(strings.TrimSpace(xy[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid vertex x %q: %w", f, err)
		}

		v := Vertex{X: x}
		ys := strings.TrimSpace(xy[1])
		if strings.EqualFold(ys, "h") {
			v.AtHeight = true
		} else if v.Y, err = strconv.Atoi(ys); err != nil {
			return nil, fmt.Errorf("invalid vertex y %q: %w", f, err)
		}
		poly = append(poly, v)
	}
	return poly, nil
}
