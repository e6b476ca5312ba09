// Package vision wraps the OpenCV operations used by the pipelines.
package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Video is a file-backed frame source. Read reuses one frame buffer.
type Video struct {
	cap   *gocv.VideoCapture
	frame gocv.Mat
	size  image.Point
}

func OpenVideo(path string) (*Video, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture is not opened for %s", path)
	}

	return &Video{
		cap:   capture,
		frame: gocv.NewMat(),
		size: image.Pt(
			int(capture.Get(gocv.VideoCaptureFrameWidth)),
			int(capture.Get(gocv.VideoCaptureFrameHeight)),
		),
	}, nil
}

// Read returns false at end of stream.
func (v *Video) Read() (gocv.Mat, bool) {
	if !v.cap.Read(&v.frame) || v.frame.Empty() {
		return v.frame, false
	}
	if v.size.X == 0 || v.size.Y == 0 {
		v.size = image.Pt(v.frame.Cols(), v.frame.Rows())
	}
	return v.frame, true
}

// Seek positions the stream so the next Read returns the given 0-based frame.
func (v *Video) Seek(frame int) error {
	if frame < 0 {
		return fmt.Errorf("invalid frame index %d", frame)
	}
	v.cap.Set(gocv.VideoCapturePosFrames, float64(frame))
	return nil
}

func (v *Video) Size() image.Point { return v.size }

// FrameCount is the container's frame count estimate.
func (v *Video) FrameCount() int {
	return int(v.cap.Get(gocv.VideoCaptureFrameCount))
}

func (v *Video) Close() error {
	v.frame.Close()
	return v.cap.Close()
}
