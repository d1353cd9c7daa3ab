package handlers

import (
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/sahilpatel/media-summarizer/internal/broadcast"
	"github.com/sahilpatel/media-summarizer/internal/jobs"
	"github.com/sahilpatel/media-summarizer/internal/types"
)

// WSHandler implements the push transport: a long-lived connection the client
// binds to one job with a subscribe message, after which every update to that
// job is pushed as a full snapshot.
type WSHandler struct {
	registry *jobs.Registry
	hub      *broadcast.Hub
}

func NewWSHandler(registry *jobs.Registry, hub *broadcast.Hub) *WSHandler {
	return &WSHandler{
		registry: registry,
		hub:      hub,
	}
}

type wsClientMessage struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
}

type wsJobUpdate struct {
	Type string            `json:"type"`
	Job  types.JobSnapshot `json:"job"`
}

// Handle runs one websocket session.
func (h *WSHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	// Liveness ack; a connection that never subscribes gets nothing else.
	if err := c.WriteJSON(fiber.Map{"type": "connected"}); err != nil {
		return
	}

	var jobID string
	for jobID == "" {
		_, message, err := c.ReadMessage()
		if err != nil {
			return
		}
		var msg wsClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // ignore non-JSON messages
		}
		if msg.Type == "subscribe" && msg.JobID != "" {
			jobID = msg.JobID
		}
	}

	// Subscribe first, snapshot second, so a transition in between is
	// waiting in the channel instead of lost.
	ch := h.hub.Subscribe(jobID)
	defer h.hub.Unsubscribe(jobID, ch)

	snap, ok := h.registry.Snapshot(jobID)
	if !ok {
		_ = c.WriteJSON(fiber.Map{"type": "error", "message": "job not found"})
		return
	}

	log.Printf("WebSocket subscriber attached to job %s", jobID)

	// Reader goroutine exists only to notice the client going away.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.push(c, jobID, snap, ch, disconnected)
}

type jsonWriter interface {
	WriteJSON(v interface{}) error
}

// push sends the snapshot on subscribe, then one update per channel receive
// until the job is terminal or the client disconnects. The hub drops updates
// on a full subscriber buffer, so the receive is only a wakeup; the payload is
// re-read from the registry so a dropped terminal broadcast still ends the
// session with the final state.
func (h *WSHandler) push(conn jsonWriter, jobID string, snap types.JobSnapshot, ch <-chan types.JobSnapshot, disconnected <-chan struct{}) {
	if err := conn.WriteJSON(wsJobUpdate{Type: "job:update", Job: snap}); err != nil {
		return
	}
	if snap.Status.Terminal() {
		return
	}

	for {
		select {
		case <-disconnected:
			return
		case _, open := <-ch:
			if !open {
				return
			}
			current, ok := h.registry.Snapshot(jobID)
			if !ok {
				// Expired by the janitor; no more updates will come.
				return
			}
			if err := conn.WriteJSON(wsJobUpdate{Type: "job:update", Job: current}); err != nil {
				return
			}
			if current.Status.Terminal() {
				return
			}
		}
	}
}
