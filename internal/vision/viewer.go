package vision

import (
	"image/color"

	"gocv.io/x/gocv"
)

// Window shows frames in a HighGUI window; pressing q requests a stop.
// A positive LineY overlays the counting line.
type Window struct {
	LineY int
	w     *gocv.Window
}

func NewWindow(name string) *Window {
	return &Window{w: gocv.NewWindow(name)}
}

func (w *Window) Show(frame gocv.Mat, caption string) bool {
	if w.LineY > 0 {
		DrawReferenceLine(&frame, w.LineY)
	}
	if caption != "" {
		DrawText(&frame, caption, 20, 40, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	}
	w.w.IMShow(frame)
	return w.w.WaitKey(1)&0xFF == 'q'
}

func (w *Window) Close() error {
	return w.w.Close()
}
