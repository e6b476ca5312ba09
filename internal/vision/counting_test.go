package vision

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"roadwatch-go/internal/crossing"
	"roadwatch-go/internal/eventsink"
	"roadwatch-go/internal/pipeline"
)

// maskVideo replays prepared foreground masks as frames.
type maskVideo struct {
	masks []gocv.Mat
	pos   int
}

func (v *maskVideo) Read() (gocv.Mat, bool) {
	if v.pos >= len(v.masks) {
		return gocv.Mat{}, false
	}
	v.pos++
	return v.masks[v.pos-1], true
}

func (v *maskVideo) Seek(frame int) error {
	v.pos = frame
	return nil
}

func (v *maskVideo) Size() image.Point { return image.Pt(1280, 720) }

func (v *maskVideo) close() {
	for _, m := range v.masks {
		m.Close()
	}
}

// identityForeground treats every frame as its own foreground mask.
type identityForeground struct{}

func (identityForeground) Learn(gocv.Mat) error { return nil }

func (identityForeground) Apply(frame gocv.Mat) (gocv.Mat, error) { return frame, nil }

func TestCountingMasksEndToEnd(t *testing.T) {
	video := &maskVideo{}
	defer video.close()
	for i := 1; i <= 20; i++ {
		if i <= 10 {
			video.masks = append(video.masks, syntheticMask(image.Rect(300, 250, 600, 550)))
			continue
		}
		video.masks = append(video.masks, gocv.Zeros(720, 1280, gocv.MatTypeCV8U))
	}

	cfg := regionConfig(true)
	cfg.ErodeIterations = 3
	cfg.DilateIterations = 2
	filter := NewRegionFilter(cfg)
	defer filter.Close()

	path := filepath.Join(t.TempDir(), "cars.csv")
	csv, err := eventsink.NewCSV(path)
	require.NoError(t, err)
	sink := eventsink.Required(csv)

	counter := &pipeline.Counter[gocv.Mat]{
		Foreground:       identityForeground{},
		Filter:           filter,
		Blobs:            ContourCounter{},
		Validity:         crossing.Validity{LineY: cfg.CrossingLineY, MinArea: 35000},
		BackgroundFrames: 20,
	}
	res, err := counter.Run(context.Background(), video, sink)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assert.Equal(t, 20, res.Frames)
	assert.Equal(t, []crossing.Event{{Frame: 11, Previous: 1, Current: 0}}, res.Events)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "11\n", string(data))
}
