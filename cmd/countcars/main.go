// Command countcars counts the vehicles leaving the center lane of a road video and
// writes the frame of every crossing to <video>.csv.
package main

import (
	"context"
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
	"roadwatch-go/internal/services"
	"roadwatch-go/internal/services/analysis"
)

func main() {
	os.Exit(run())
}

func run() int {
	input := flag.String("input", "", "path to the video file (prompted when empty)")
	display := flag.Bool("display", false, "show the frames while counting")
	flag.Parse()

	cfg := config.Load()
	logging.Setup(cfg)

	path, err := cli.InputPath(*input, os.Stdin, os.Stdout, "Enter filepath::")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file path")
	}
	if err := cli.ValidateVideo(path, cfg.VideoExtensions, cfg.ExpectedVideoName); err != nil {
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

	err = container.RunNow(ctx, models.RunKindCount, path, func(ctx context.Context, runID string) (models.RunResult, error) {
		res, err := container.Analysis.CountCars(ctx, path, analysis.Options{
			RunID:   runID,
			Display: *display || cfg.CountDisplay,
			Out:     os.Stdout,
		})
		return models.RunResult{Frames: res.Frames, Crossings: len(res.Events), Output: res.CSVPath}, err
	})
	if err != nil {
		log.Error().Err(err).Str("video", path).Msg("Vehicle counting failed")
		return 1
	}
	return 0
}
