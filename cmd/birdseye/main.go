// Command birdseye shows a road video rectified into a bird's-eye view of its
// center lane.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"roadwatch-go/internal/cli"
	"roadwatch-go/internal/config"
	"roadwatch-go/internal/logging"
	"roadwatch-go/internal/models"
	"roadwatch-go/internal/perspective"
	"roadwatch-go/internal/pipeline"
	"roadwatch-go/internal/services"
	"roadwatch-go/internal/services/analysis"
)

func main() {
	os.Exit(run())
}

func run() int {
	input := flag.String("input", "", "path to the video file (prompted when empty)")
	headless := flag.Bool("headless", false, "do not open a display window")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := services.NewServiceContainer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create services")
	}
	defer container.Shutdown(context.Background())

	err = container.RunNow(ctx, models.RunKindBirdsEye, path, func(ctx context.Context, runID string) (models.RunResult, error) {
		res, err := container.Analysis.BirdsEye(ctx, path, analysis.Options{
			RunID:   runID,
			Display: cfg.BirdsEyeDisplay && !*headless,
			Out:     os.Stdout,
		})
		return models.RunResult{Frames: res.Frames, Output: res.SnapshotPath}, err
	})
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case pipeline.IsNoLane(err):
		fmt.Println("Lane lines not found")
		return 1
	case errors.Is(err, perspective.ErrDegenerate):
		fmt.Println("Lane lines do not form a usable quadrilateral")
		return 1
	default:
		log.Error().Err(err).Str("video", path).Msg("Bird's-eye transformation failed")
		return 1
	}
	return 0
}
