package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/sahilpatel/media-summarizer/internal/broadcast"
	"github.com/sahilpatel/media-summarizer/internal/jobs"
	"github.com/sahilpatel/media-summarizer/internal/types"
)

const keepAliveInterval = 15 * time.Second

// EventsHandler implements the streamed-event transport: a one-directional
// SSE feed per job. Event names are "status" while the job runs, "done" on
// success and "error" on failure; the data payload is always the full
// snapshot. Keep-alive comments defeat intermediary idle timeouts.
type EventsHandler struct {
	registry *jobs.Registry
	hub      *broadcast.Hub
}

func NewEventsHandler(registry *jobs.Registry, hub *broadcast.Hub) *EventsHandler {
	return &EventsHandler{
		registry: registry,
		hub:      hub,
	}
}

// Handle serves GET /api/jobs/:id/events.
func (h *EventsHandler) Handle(c *fiber.Ctx) error {
	id := c.Params("id")

	// Subscribe first, snapshot second: a transition landing between the
	// two is then already sitting in the channel rather than lost.
	ch := h.hub.Subscribe(id)

	snap, ok := h.registry.Snapshot(id)
	if !ok {
		h.hub.Unsubscribe(id, ch)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
			"code":  "ERR_NOT_FOUND",
		})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.hub.Unsubscribe(id, ch)
		h.stream(w, id, snap, ch)
	}))

	return nil
}

// stream writes the initial snapshot, then one event per received update
// until the job reaches a terminal state or the client goes away. The hub
// drops updates when a subscriber backs up, so each receive is only a wakeup:
// the payload is re-read from the registry, which always has the current
// state, including a terminal transition whose broadcast was dropped.
func (h *EventsHandler) stream(w *bufio.Writer, id string, snap types.JobSnapshot, ch <-chan types.JobSnapshot) {
	if err := writeEvent(w, snap); err != nil {
		return
	}
	if snap.Status.Terminal() {
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
			current, ok := h.registry.Snapshot(id)
			if !ok {
				// Expired by the janitor; no more updates will come.
				return
			}
			if err := writeEvent(w, current); err != nil {
				return
			}
			if current.Status.Terminal() {
				return
			}
		case <-keepAlive.C:
			// A failed flush is how we learn the client left.
			fmt.Fprint(w, ": keep-alive\n\n")
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}

func eventName(status types.Status) string {
	switch status {
	case types.StatusCompleted:
		return "done"
	case types.StatusFailed:
		return "error"
	default:
		return "status"
	}
}

func writeEvent(w *bufio.Writer, snap types.JobSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName(snap.Status), data); err != nil {
		return err
	}
	return w.Flush()
}
