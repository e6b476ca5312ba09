package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"roadwatch-go/internal/lane"
)

var (
	laneColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	lineColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// DrawText draws text with a dark background box
func DrawText(mat *gocv.Mat, text string, x, y int, textColor color.RGBA) {
	fontFace := gocv.FontHersheySimplex
	fontScale := 0.7
	thickness := 2
	textSize := gocv.GetTextSize(text, fontFace, fontScale, thickness)

	padding := 8
	bgRect := image.Rect(x-padding, y-textSize.Y-padding, x+textSize.X+padding, y+padding)
	gocv.Rectangle(mat, bgRect, color.RGBA{A: 200}, -1)
	gocv.Rectangle(mat, bgRect, color.RGBA{R: 40, G: 40, B: 40, A: 255}, 1)

	gocv.PutText(mat, text, image.Pt(x+1, y+1), fontFace, fontScale, color.RGBA{A: 100}, thickness)
	gocv.PutText(mat, text, image.Pt(x, y), fontFace, fontScale, textColor, thickness)
}

// DrawLanes draws both fitted lane lines across the full frame height
func DrawLanes(mat *gocv.Mat, lanes lane.Lanes) {
	gocv.Line(mat, lanes.Left.Bottom, lanes.Left.Top, laneColor, 4)
	gocv.Line(mat, lanes.Right.Bottom, lanes.Right.Top, laneColor, 4)
}

// DrawReferenceLine marks the counting line at y
func DrawReferenceLine(mat *gocv.Mat, y int) {
	gocv.Line(mat, image.Pt(0, y), image.Pt(mat.Cols(), y), lineColor, 2)
}
