package vision

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrShortVideo is returned when the requested frame is past the end of the video.
var ErrShortVideo = errors.New("video is too short")

// FramePath names the snapshot written for frame index of the video at path.
func FramePath(path string, index int) string {
	return fmt.Sprintf("%s_frame_%d.jpg", path, index)
}

// ExtractFrame saves the 0-based frame index of the video as a JPEG next to it.
func ExtractFrame(path string, index int) (string, error) {
	v, err := OpenVideo(path)
	if err != nil {
		return "", err
	}
	defer v.Close()

	if n := v.FrameCount(); n > 0 && index >= n {
		return "", fmt.Errorf("%w: %d frames", ErrShortVideo, n)
	}
	if err := v.Seek(index); err != nil {
		return "", err
	}
	frame, ok := v.Read()
	if !ok {
		return "", fmt.Errorf("%w: no frame %d", ErrShortVideo, index)
	}
	out := FramePath(path, index)
	if err := WriteImage(out, frame); err != nil {
		return "", err
	}
	return out, nil
}

// WriteImage encodes mat by the file extension of path.
func WriteImage(path string, mat gocv.Mat) error {
	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}
