package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadwatch-go/internal/config"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	drainErr error
	closed   bool
	drained  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}
func (f *fakeConn) Flush() error      { return nil }
func (f *fakeConn) Drain() error      { f.drained = true; return f.drainErr }
func (f *fakeConn) Close()            { f.closed = true }
func (f *fakeConn) IsConnected() bool { return !f.closed }

func TestPublishMarshalsJSON(t *testing.T) {
	conn := &fakeConn{}
	svc := NewServiceWithConn(&config.Config{}, conn)

	require.NoError(t, svc.Publish("roadwatch.crossings", map[string]int{"frame": 11}))
	require.Len(t, conn.payloads, 1)
	assert.Equal(t, "roadwatch.crossings", conn.subjects[0])

	var got map[string]int
	require.NoError(t, json.Unmarshal(conn.payloads[0], &got))
	assert.Equal(t, 11, got["frame"])
	assert.True(t, svc.IsConnected())
}

func TestShutdownFallsBackToClose(t *testing.T) {
	conn := &fakeConn{drainErr: errors.New("drain failed")}
	svc := NewServiceWithConn(&config.Config{}, conn)

	require.NoError(t, svc.Shutdown(context.Background()))
	assert.True(t, conn.drained)
	assert.True(t, conn.closed)
}
