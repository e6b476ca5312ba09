// Command readframe saves one frame of a video next to it as <video>_frame_<n>.jpg.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"roadwatch-go/internal/cli"
	"roadwatch-go/internal/config"
	"roadwatch-go/internal/logging"
	"roadwatch-go/internal/models"
	"roadwatch-go/internal/services"
	"roadwatch-go/internal/services/analysis"
	"roadwatch-go/internal/vision"
)

func main() {
	os.Exit(run())
}

func run() int {
	input := flag.String("input", "", "path to the video file (prompted when empty)")
	flag.Parse()

	cfg := config.Load()
	logging.Setup(cfg)

	path, err := cli.InputPath(*input, os.Stdin, os.Stdout, "Enter filepath:")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file path")
	}
	if err := cli.ValidateVideo(path, cfg.VideoExtensions, ""); err != nil {
		fmt.Println(cli.Message(err))
		return 0
	}

	container, err := services.NewServiceContainer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create services")
	}
	defer container.Shutdown(context.Background())

	err = container.RunNow(context.Background(), models.RunKindFrame, path, func(_ context.Context, _ string) (models.RunResult, error) {
		out, err := container.Analysis.ReadFrame(path, analysis.Options{Out: os.Stdout})
		return models.RunResult{Output: out}, err
	})
	if errors.Is(err, vision.ErrShortVideo) {
		fmt.Printf("Video doesn't have %d frames\n", cfg.SnapshotFrameIndex)
		return 0
	}
	if err != nil {
		log.Error().Err(err).Str("video", path).Msg("Frame extraction failed")
		return 1
	}
	return 0
}
