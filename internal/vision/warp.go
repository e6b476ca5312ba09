package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"roadwatch-go/internal/perspective"
)

// Warper applies a bird's-eye mapper to frames and downsamples the result.
type Warper struct {
	m       gocv.Mat
	size    image.Point
	out     image.Point
	warped  gocv.Mat
	resized gocv.Mat
}

func NewWarper(mapper *perspective.Mapper) (*Warper, error) {
	if mapper == nil {
		return nil, fmt.Errorf("nil mapper")
	}
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	rows := mapper.H.Rows()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, rows[r][c])
		}
	}
	return &Warper{
		m:       m,
		size:    mapper.FrameSize,
		out:     mapper.OutputSize,
		warped:  gocv.NewMat(),
		resized: gocv.NewMat(),
	}, nil
}

func (w *Warper) Warp(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() {
		return frame, fmt.Errorf("empty frame")
	}
	gocv.WarpPerspective(frame, &w.warped, w.m, w.size)
	if w.out == w.size {
		return w.warped, nil
	}
	gocv.Resize(w.warped, &w.resized, w.out, 0, 0, gocv.InterpolationArea)
	return w.resized, nil
}

func (w *Warper) Close() error {
	w.warped.Close()
	w.resized.Close()
	return w.m.Close()
}
