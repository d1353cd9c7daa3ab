package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/sahilpatel/media-summarizer/internal/jobs"
	"github.com/sahilpatel/media-summarizer/internal/validate"
)

// Launcher starts the pipeline for a created job without blocking.
type Launcher interface {
	Launch(jobID, sourceURL string)
}

// JobsHandler serves job creation, status reads and cancellation.
type JobsHandler struct {
	registry *jobs.Registry
	runner   Launcher
}

func NewJobsHandler(registry *jobs.Registry, runner Launcher) *JobsHandler {
	return &JobsHandler{
		registry: registry,
		runner:   runner,
	}
}

// CreateJobRequest is the POST /api/jobs body.
type CreateJobRequest struct {
	URL string `json:"url"`
}

// Create validates the source reference, registers the job and launches its
// pipeline. Responds with the initial snapshot before any stage has run.
func (h *JobsHandler) Create(c *fiber.Ctx) error {
	var req CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	if err := validate.SourceURL(req.URL); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INVALID_URL",
		})
	}

	jobID := uuid.New().String()
	snap := h.registry.Create(jobID)
	log.Printf("Job %s created (source: %s, ip: %s)", jobID, req.URL, c.IP())

	h.runner.Launch(jobID, req.URL)

	return c.JSON(snap)
}

// Get returns the current snapshot of one job.
func (h *JobsHandler) Get(c *fiber.Ctx) error {
	snap, ok := h.registry.Snapshot(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	return c.JSON(snap)
}

// Cancel flags the job for cooperative cancellation. Idempotent; unknown and
// already-terminal ids are silently accepted.
func (h *JobsHandler) Cancel(c *fiber.Ctx) error {
	h.registry.RequestCancel(c.Params("id"))
	return c.SendStatus(fiber.StatusOK)
}
