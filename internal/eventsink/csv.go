package eventsink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CSV writes one frame index per line and flushes after every event, so the file is
// complete up to the last detection even if the run is interrupted.
type CSV struct {
	path string
	file *os.File
	w    *csv.Writer
}

// NewCSV creates or truncates the file at path.
func NewCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &CSV{path: path, file: f, w: csv.NewWriter(f)}, nil
}

// Path returns the output file.
func (c *CSV) Path() string { return c.path }

func (c *CSV) Write(_ context.Context, rec Record) error {
	if err := c.w.Write([]string{strconv.Itoa(rec.Frame)}); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *CSV) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}

// CSVPath names the event file of the video at path: same directory and base name.
func CSVPath(video string) string {
	return strings.TrimSuffix(video, filepath.Ext(video)) + ".csv"
}
