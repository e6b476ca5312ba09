package logging

import (
	"testing"

	"github.com/logdyhq/logdy-core/logdy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadwatch-go/internal/config"
)

type fakeLogdy struct {
	fields []logdy.Fields
	lines  []string
}

func (f *fakeLogdy) Config() *logdy.Config { return &logdy.Config{} }

func (f *fakeLogdy) Log(fields logdy.Fields) error {
	f.fields = append(f.fields, fields)
	return nil
}

func (f *fakeLogdy) LogString(message string) error {
	f.lines = append(f.lines, message)
	return nil
}

func TestLogdyWriterTagsStructuredLines(t *testing.T) {
	ui := &fakeLogdy{}
	w := &logdyWriter{ui: ui, app: logdyApp}

	l := zerolog.New(w)
	l.Info().Str("run_id", "run-1").Int("frame", 11).Msg("Vehicle detected")

	require.Len(t, ui.fields, 1)
	got := ui.fields[0]
	assert.Equal(t, "roadwatch", got["app"])
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, float64(11), got["frame"])
	assert.Equal(t, "Vehicle detected", got["message"])
}

func TestLogdyWriterFallsBackToText(t *testing.T) {
	ui := &fakeLogdy{}
	w := &logdyWriter{ui: ui, app: logdyApp}

	n, err := w.Write([]byte("plain text\n\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, []string{"plain text"}, ui.lines)
	assert.Empty(t, ui.fields)
}

func TestStartLogdyRejectsBadPort(t *testing.T) {
	_, _, err := StartLogdy(&config.Config{LogdyHost: "localhost", LogdyPort: 0})
	require.Error(t, err)
}
