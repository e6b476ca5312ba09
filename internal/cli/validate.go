// Package cli holds the interactive surface shared by the command line tools.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound    = errors.New("file does not exist")
	ErrUnsupported = errors.New("file type is not supported")
	ErrWrongName   = errors.New("incorrect file name")
)

// RejectError explains why an input video was refused.
type RejectError struct {
	Path     string
	Err      error
	Required string // Expected file name, set with ErrWrongName
}

func (e *RejectError) Error() string {
	if e.Required != "" {
		return fmt.Sprintf("%s: %v, required %s", e.Path, e.Err, e.Required)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *RejectError) Unwrap() error { return e.Err }

// Message is the line printed to the user for a validation failure.
func Message(err error) string {
	var rej *RejectError
	switch {
	case errors.Is(err, ErrNotFound):
		return "File doesn't exist"
	case errors.Is(err, ErrUnsupported):
		return "File isn't supported"
	case errors.As(err, &rej) && rej.Required != "":
		return "Incorrect file name. Required file: " + rej.Required
	case errors.Is(err, ErrWrongName):
		return "Incorrect file name"
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}

// ValidateVideo checks that path exists, has one of exts (case-insensitive) and,
// when expectedBase is set, that its base name without extension equals it.
func ValidateVideo(path string, exts []string, expectedBase string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &RejectError{Path: path, Err: ErrNotFound}
	}
	if info.IsDir() || !hasExtension(path, exts) {
		return &RejectError{Path: path, Err: ErrUnsupported}
	}
	if expectedBase == "" {
		return nil
	}

	base := filepath.Base(path)
	if strings.TrimSuffix(base, filepath.Ext(base)) != expectedBase {
		ext := ".mov"
		if len(exts) > 0 {
			ext = exts[0]
		}
		return &RejectError{Path: path, Err: ErrWrongName, Required: expectedBase + ext}
	}
	return nil
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
