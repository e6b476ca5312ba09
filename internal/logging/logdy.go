package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/logdyhq/logdy-core/logdy"
	"github.com/rs/zerolog/log"

	"roadwatch-go/internal/config"
)

const logdyApp = "roadwatch"

// logdyWriter forwards zerolog's JSON lines to the Logdy UI as structured fields,
// tagged with the app name so runs from several tools can share one viewer.
type logdyWriter struct {
	ui  logdy.Logdy
	app string
}

func (w *logdyWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		fields := logdy.Fields{}
		if err := json.Unmarshal(line, &fields); err != nil {
			w.ui.LogString(string(line))
			continue
		}
		fields["app"] = w.app
		w.ui.Log(fields)
	}
	return len(p), nil
}

// StartLogdy starts the embedded Logdy web UI and returns a writer to tee logs into,
// plus the UI URL.
func StartLogdy(cfg *config.Config) (io.Writer, string, error) {
	if cfg.LogdyPort <= 0 {
		return nil, "", fmt.Errorf("invalid logdy port %d", cfg.LogdyPort)
	}
	port := strconv.Itoa(cfg.LogdyPort)
	ui := logdy.InitializeLogdy(logdy.Config{
		ServerIp:   cfg.LogdyHost,
		ServerPort: port,
		LogLevel:   logdy.LOG_LEVEL_SILENT,
	}, nil)

	url := fmt.Sprintf("http://%s:%s", cfg.LogdyHost, port)
	log.Info().Str("url", url).Str("app", logdyApp).Msg("Logdy UI available")
	return &logdyWriter{ui: ui, app: logdyApp}, url, nil
}
