package crossing

import "image"

// Blob is a connected foreground component: its bounding box and contour area.
type Blob struct {
	Box  image.Rectangle
	Area float64
}

// Validity is the predicate that makes a blob count as a vehicle below the reference line.
type Validity struct {
	FrameWidth int
	LineY      int
	MinArea    float64
}

// Valid reports whether b starts inside the frame width, below LineY, with enough area.
func (v Validity) Valid(b Blob) bool {
	return b.Box.Min.X <= v.FrameWidth && b.Box.Min.Y >= v.LineY && b.Area >= v.MinArea
}

// Count returns the number of valid blobs.
func (v Validity) Count(blobs []Blob) int {
	n := 0
	for _, b := range blobs {
		if v.Valid(b) {
			n++
		}
	}
	return n
}
