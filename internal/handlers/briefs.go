package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/sahilpatel/media-summarizer/internal/storage"
)

// BriefsHandler serves the archive of completed briefs.
type BriefsHandler struct {
	archive *storage.Archive
}

func NewBriefsHandler(archive *storage.Archive) *BriefsHandler {
	return &BriefsHandler{archive: archive}
}

// List returns the most recent briefs.
func (h *BriefsHandler) List(c *fiber.Ctx) error {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	briefs, err := h.archive.ListBriefs(limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if briefs == nil {
		briefs = []storage.Brief{}
	}
	return c.JSON(briefs)
}

// Get returns one archived brief by job id.
func (h *BriefsHandler) Get(c *fiber.Ctx) error {
	brief, err := h.archive.GetBrief(c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Brief not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(brief)
}
