package vision

import (
	"gocv.io/x/gocv"

	"roadwatch-go/internal/config"
)

// Foreground is an adaptive MOG2 background model. Learning and applying both
// update the model; Apply also returns the foreground mask.
type Foreground struct {
	mog  gocv.BackgroundSubtractorMOG2
	mask gocv.Mat
}

func NewForeground(cfg *config.Config) *Foreground {
	return &Foreground{
		mog:  gocv.NewBackgroundSubtractorMOG2WithParams(cfg.MOGHistory, cfg.MOGVarThreshold, cfg.MOGDetectShadows),
		mask: gocv.NewMat(),
	}
}

func (f *Foreground) Learn(frame gocv.Mat) error {
	f.mog.Apply(frame, &f.mask)
	return nil
}

func (f *Foreground) Apply(frame gocv.Mat) (gocv.Mat, error) {
	f.mog.Apply(frame, &f.mask)
	return f.mask, nil
}

func (f *Foreground) Close() error {
	f.mask.Close()
	return f.mog.Close()
}
