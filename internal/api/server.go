package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"roadwatch-go/internal/api/handlers"
	"roadwatch-go/internal/api/middleware"
	"roadwatch-go/internal/config"
	"roadwatch-go/internal/models"
)

// RunManager is the run service plus the stats used by /system/stats.
type RunManager interface {
	handlers.RunService
	Stats() map[models.RunStatus]int
}

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server
	health *HealthServer

	healthHandler *handlers.HealthHandler
	systemHandler *handlers.SystemHandler
	runsHandler   *handlers.RunsHandler
}

// NewServer wires the HTTP API. crossings may be nil.
func NewServer(cfg *config.Config, runs RunManager, crossings handlers.CrossingSource) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	return &Server{
		config:        cfg,
		router:        router,
		health:        NewHealthServer(),
		healthHandler: handlers.NewHealthHandler(cfg.WorkerID, cfg.Version),
		systemHandler: handlers.NewSystemHandler(cfg.WorkerID, runs.Stats),
		runsHandler:   handlers.NewRunsHandler(runs, crossings),
	}
}

func (s *Server) Setup() error {
	s.setupMiddleware()

	s.setupRoutes()

	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestContext())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
}

// Start serves HTTP and the gRPC health service until Stop is called.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen gRPC on port %d: %w", s.config.GRPCPort, err)
	}
	go func() {
		if err := s.health.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC health server stopped")
		}
	}()

	log.Info().Int("port", s.config.Port).Int("grpc_port", s.config.GRPCPort).Msg("Starting RoadWatch API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping RoadWatch API...")
	s.health.Stop()
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
