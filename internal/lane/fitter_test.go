package lane

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSegments() []Segment {
	return []Segment{
		// left side, slope -1 and -0.9
		{X1: 300, Y1: 700, X2: 500, Y2: 500},
		{X1: 310, Y1: 690, X2: 510, Y2: 510},
		// right side, slope 1 and 1.1
		{X1: 700, Y1: 500, X2: 900, Y2: 700},
		{X1: 710, Y1: 490, X2: 910, Y2: 710},
	}
}

func TestFitSegment(t *testing.T) {
	p, ok := FitSegment(Segment{X1: 0, Y1: 10, X2: 10, Y2: 30})
	require.True(t, ok)
	assert.InDelta(t, 2.0, p.Slope, 1e-12)
	assert.InDelta(t, 10.0, p.Intercept, 1e-12)

	_, ok = FitSegment(Segment{X1: 5, Y1: 0, X2: 5, Y2: 100})
	assert.False(t, ok, "vertical segments have no slope")
}

func TestFitReturnsTwoLinesAtFrameEdges(t *testing.T) {
	const height = 720
	lanes, err := Fit(sampleSegments(), height)
	require.NoError(t, err)

	for name, l := range map[string]Line{"left": lanes.Left, "right": lanes.Right} {
		assert.Equal(t, height, l.Bottom.Y, name)
		assert.Equal(t, 0, l.Top.Y, name)
	}
	assert.Less(t, lanes.Left.Slope, 0.0)
	assert.GreaterOrEqual(t, lanes.Right.Slope, 0.0)

	// left average: slope (-1 - 0.9) / 2, intercept (1000 + 969) / 2
	assert.InDelta(t, -0.95, lanes.Left.Slope, 1e-12)
	assert.InDelta(t, 984.5, lanes.Left.Intercept, 1e-9)
	assert.Equal(t, 278, lanes.Left.Bottom.X)
	assert.Equal(t, 1036, lanes.Left.Top.X)
}

func TestFitIsOrderIndependent(t *testing.T) {
	segs := sampleSegments()
	segs = append(segs,
		Segment{X1: 320, Y1: 705, X2: 480, Y2: 540},
		Segment{X1: 690, Y1: 520, X2: 880, Y2: 690},
	)
	want, err := Fit(segs, 720)
	require.NoError(t, err)

	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		shuffled := append([]Segment(nil), segs...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := Fit(shuffled, 720)
		require.NoError(t, err)
		assert.InDelta(t, want.Left.Slope, got.Left.Slope, 1e-9)
		assert.InDelta(t, want.Left.Intercept, got.Left.Intercept, 1e-9)
		assert.InDelta(t, want.Right.Slope, got.Right.Slope, 1e-9)
		assert.InDelta(t, want.Right.Intercept, got.Right.Intercept, 1e-9)
	}
}

func TestFitInsufficientData(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
	}{
		{name: "empty", segments: nil},
		{name: "all left", segments: []Segment{{0, 100, 100, 0}, {10, 90, 90, 10}}},
		{name: "all right", segments: []Segment{{0, 0, 100, 100}, {10, 10, 90, 90}}},
		{name: "only vertical", segments: []Segment{{5, 0, 5, 100}, {7, 0, 7, 100}}},
		{name: "vertical plus one side", segments: []Segment{{5, 0, 5, 100}, {0, 100, 100, 0}}},
		{name: "horizontal right partition", segments: []Segment{{0, 100, 100, 0}, {0, 50, 100, 50}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.segments, 720)
			require.ErrorIs(t, err, ErrInsufficientData)
		})
	}
}

func TestFitSkipsVerticalSegments(t *testing.T) {
	segs := append(sampleSegments(), Segment{X1: 600, Y1: 0, X2: 600, Y2: 720})
	withVertical, err := Fit(segs, 720)
	require.NoError(t, err)

	without, err := Fit(sampleSegments(), 720)
	require.NoError(t, err)
	assert.Equal(t, without, withVertical)
}

func TestConvergeRetriesUntilBothSidesFound(t *testing.T) {
	frames := [][]Segment{
		nil,
		{{0, 100, 100, 0}},                   // below MinSegments
		{{0, 100, 100, 0}, {10, 90, 90, 10}}, // one sided
		sampleSegments(),                     // converges here
		{{0, 0, 100, 100}, {100, 100, 0, 0}},
	}
	i := 0
	next := func(context.Context) ([]Segment, bool, error) {
		if i >= len(frames) {
			return nil, false, nil
		}
		i++
		return frames[i-1], true, nil
	}

	e := Estimator{Height: 720, MinSegments: 2, MaxFrames: 10, Logger: zerolog.Nop()}
	lanes, frame, err := e.Converge(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, 4, frame)
	assert.Equal(t, 0, lanes.Left.Top.Y)
	assert.Equal(t, 720, lanes.Right.Bottom.Y)
}

func TestConvergeFailsAtEndOfStream(t *testing.T) {
	next := func(context.Context) ([]Segment, bool, error) { return nil, false, nil }
	e := Estimator{Height: 720, MinSegments: 2, Logger: zerolog.Nop()}

	_, frame, err := e.Converge(context.Background(), next)
	require.ErrorIs(t, err, ErrNoLaneFound)
	assert.Equal(t, 0, frame)
}

func TestConvergeHonoursFrameCeiling(t *testing.T) {
	calls := 0
	next := func(context.Context) ([]Segment, bool, error) {
		calls++
		return []Segment{{0, 100, 100, 0}, {10, 90, 90, 10}}, true, nil
	}
	e := Estimator{Height: 720, MinSegments: 2, MaxFrames: 25, Logger: zerolog.Nop()}

	_, _, err := e.Converge(context.Background(), next)
	require.ErrorIs(t, err, ErrNoLaneFound)
	assert.Equal(t, 25, calls)
}

func TestConvergeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := func(context.Context) ([]Segment, bool, error) { return nil, true, nil }
	e := Estimator{Height: 720, Logger: zerolog.Nop()}

	_, _, err := e.Converge(ctx, next)
	require.ErrorIs(t, err, context.Canceled)
}
