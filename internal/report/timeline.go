// Package report renders the per-frame vehicle count of a counting run.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"roadwatch-go/internal/crossing"
)

var ErrNoSamples = errors.New("timeline has no samples")

// Timeline records the valid count of every frame and the crossings among them.
type Timeline struct {
	title  string
	counts plotter.XYs
	events plotter.XYs
}

func NewTimeline(title string) *Timeline {
	return &Timeline{title: title}
}

// Record matches pipeline.Counter.Observer.
func (t *Timeline) Record(frame, count int, ev *crossing.Event) {
	t.counts = append(t.counts, plotter.XY{X: float64(frame), Y: float64(count)})
	if ev != nil {
		t.events = append(t.events, plotter.XY{X: float64(frame), Y: float64(ev.Previous)})
	}
}

// Len returns the number of recorded frames.
func (t *Timeline) Len() int { return len(t.counts) }

// Crossings returns the number of recorded crossing frames.
func (t *Timeline) Crossings() int { return len(t.events) }

// Save writes the plot; the format follows the file extension.
func (t *Timeline) Save(path string) error {
	if len(t.counts) == 0 {
		return ErrNoSamples
	}

	p := plot.New()
	p.Title.Text = t.title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Vehicles below line"
	p.Y.Min = 0

	line, err := plotter.NewLine(t.counts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("count", line)

	if len(t.events) > 0 {
		marks, err := plotter.NewScatter(t.events)
		if err != nil {
			return err
		}
		marks.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		marks.GlyphStyle.Radius = vg.Points(3)
		marks.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(marks)
		p.Legend.Add(fmt.Sprintf("crossing (%d)", len(t.events)), marks)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save timeline %s: %w", path, err)
	}
	return nil
}

// PlotPath names the timeline image of the video at path.
func PlotPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_counts.png"
}
