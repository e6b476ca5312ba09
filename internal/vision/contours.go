package vision

import (
	"gocv.io/x/gocv"

	"roadwatch-go/internal/crossing"
)

// ContourCounter extracts every contour of a binary mask as a blob.
type ContourCounter struct{}

func (ContourCounter) Blobs(mask gocv.Mat) ([]crossing.Blob, error) {
	contours := gocv.FindContours(mask, gocv.RetrievalTree, gocv.ChainApproxNone)
	defer contours.Close()

	blobs := make([]crossing.Blob, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		blobs = append(blobs, crossing.Blob{
			Box:  gocv.BoundingRect(c),
			Area: gocv.ContourArea(c),
		})
	}
	return blobs, nil
}
