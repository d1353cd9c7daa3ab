package broadcast

import (
	"sync"

	"github.com/sahilpatel/media-summarizer/internal/types"
)

// Hub fans job snapshots out to subscribers. Subscriptions are keyed by job id
// and live outside the job record, so transport lifecycle never touches the
// registry. A publish with no subscribers is a no-op; nothing is buffered for
// later delivery.
type Hub struct {
	mu   sync.RWMutex
	subs map[string][]chan types.JobSnapshot
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string][]chan types.JobSnapshot),
	}
}

// Subscribe registers interest in one job and returns the channel updates
// arrive on. The channel is buffered; a subscriber that falls behind loses
// intermediate updates rather than blocking the publisher.
func (h *Hub) Subscribe(jobID string) chan types.JobSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan types.JobSnapshot, 16)
	h.subs[jobID] = append(h.subs[jobID], ch)
	return ch
}

// Unsubscribe removes ch from the job's fan-out set and closes it.
func (h *Hub) Unsubscribe(jobID string, ch chan types.JobSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[jobID]
	for i, sub := range subs {
		if sub == ch {
			h.subs[jobID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(h.subs[jobID]) == 0 {
		delete(h.subs, jobID)
	}
}

// Publish delivers snap to every current subscriber of the job. Sends never
// block: a full subscriber buffer drops the update, and the subscriber catches
// up on the next one.
func (h *Hub) Publish(jobID string, snap types.JobSnapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[jobID] {
		select {
		case ch <- snap:
		default:
		}
	}
}

// SubscriberCount reports the current fan-out size for a job.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jobID])
}
