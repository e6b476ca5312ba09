// Package pipeline runs the per-frame loops of the bird's-eye and vehicle counting
// tools. It is generic over the frame type so the loops do not depend on OpenCV.
package pipeline

import (
	"image"

	"roadwatch-go/internal/crossing"
	"roadwatch-go/internal/lane"
	"roadwatch-go/internal/perspective"
)

// FrameSource yields decoded frames in order. A returned frame stays valid until the
// next Read or Seek.
type FrameSource[F any] interface {
	Read() (F, bool)
	Seek(frame int) error
	Size() image.Point
}

type SegmentSource[F any] interface {
	Segments(frame F) ([]lane.Segment, error)
}

type Warper[F any] interface {
	Warp(frame F) (F, error)
	Close() error
}

// WarperFactory builds the per-video warper once the mapper is known.
type WarperFactory[F any] func(m *perspective.Mapper) (Warper[F], error)

type ForegroundModel[F any] interface {
	Learn(frame F) error
	Apply(frame F) (F, error)
}

type MaskFilter[F any] interface {
	Filter(mask F) (F, error)
}

type BlobCounter[F any] interface {
	Blobs(mask F) ([]crossing.Blob, error)
}

// Viewer presents a frame. Show reports true when the user asked to quit.
type Viewer[F any] interface {
	Show(frame F, caption string) bool
	Close() error
}

// NopViewer is the headless viewer.
type NopViewer[F any] struct{}

func (NopViewer[F]) Show(F, string) bool { return false }
func (NopViewer[F]) Close() error        { return nil }
