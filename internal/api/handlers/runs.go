package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"roadwatch-go/internal/cli"
	"roadwatch-go/internal/crossing"
	"roadwatch-go/internal/logging"
	"roadwatch-go/internal/models"
	"roadwatch-go/internal/services/runs"
	"roadwatch-go/internal/store"
)

// RunService is satisfied by runs.Manager.
type RunService interface {
	Submit(req models.RunRequest) (models.Run, error)
	Get(id string) (models.Run, error)
	List() []models.Run
	Cancel(id string) error
}

// CrossingSource is satisfied by store.SQLite.
type CrossingSource interface {
	Crossings(ctx context.Context, runID string) ([]crossing.Event, error)
}

// RunsHandler handles run submission and lookup
type RunsHandler struct {
	runs      RunService
	crossings CrossingSource
}

// NewRunsHandler creates a runs handler. crossings may be nil when no event store is configured.
func NewRunsHandler(runs RunService, crossings CrossingSource) *RunsHandler {
	return &RunsHandler{runs: runs, crossings: crossings}
}

type ErrorResponse struct {
	Error string `json:"error" example:"run not found"`
}

type RunListResponse struct {
	Runs  []models.Run `json:"runs"`
	Count int          `json:"count"`
}

type CrossingsResponse struct {
	RunID     string           `json:"run_id"`
	Crossings []crossing.Event `json:"crossings"`
	Count     int              `json:"count"`
}

// @Summary List runs
// @Description List every submitted run in submission order
// @Tags runs
// @Produce json
// @Success 200 {object} RunListResponse
// @Router /runs [get]
func (h *RunsHandler) ListRuns(c *gin.Context) {
	list := h.runs.List()
	c.JSON(http.StatusOK, RunListResponse{Runs: list, Count: len(list)})
}

// @Summary Submit a run
// @Description Queue a counting, bird's-eye or frame extraction run for a video on the server
// @Tags runs
// @Accept json
// @Produce json
// @Param request body models.RunRequest true "Run request"
// @Success 202 {object} models.Run
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /runs [post]
func (h *RunsHandler) SubmitRun(c *gin.Context) {
	var req models.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	run, err := h.runs.Submit(req)
	switch {
	case err == nil:
	case errors.Is(err, runs.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, runs.ErrInvalidKind):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	default:
		logging.Warn(c).Err(err).Str("video", req.Video).Msg("Run rejected")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: cli.Message(err)})
		return
	}

	c.Set(logging.RunIDKey, run.ID)
	logging.Info(c).Str("kind", run.Kind.String()).Msg("Run accepted")
	c.JSON(http.StatusAccepted, run)
}

// @Summary Get run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} models.Run
// @Failure 404 {object} ErrorResponse
// @Router /runs/{id} [get]
func (h *RunsHandler) GetRun(c *gin.Context) {
	run, err := h.runs.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

// @Summary Cancel run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 202 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /runs/{id} [delete]
func (h *RunsHandler) CancelRun(c *gin.Context) {
	id := c.Param("id")
	if err := h.runs.Cancel(id); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": id, "canceling": true})
}

// @Summary List run crossings
// @Description Crossing events stored for a counting run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} CrossingsResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /runs/{id}/crossings [get]
func (h *RunsHandler) GetCrossings(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.runs.Get(id); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	if h.crossings == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "event store is not configured"})
		return
	}

	events, err := h.crossings.Crossings(c.Request.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		logging.Error(c).Err(err).Str("run_id", id).Msg("Failed to load crossings")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load crossings"})
		return
	}
	c.JSON(http.StatusOK, CrossingsResponse{RunID: id, Crossings: events, Count: len(events)})
}
