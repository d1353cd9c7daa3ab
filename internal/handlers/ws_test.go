package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilpatel/media-summarizer/internal/broadcast"
	"github.com/sahilpatel/media-summarizer/internal/jobs"
	"github.com/sahilpatel/media-summarizer/internal/types"
)

type recordingConn struct {
	updates []wsJobUpdate
}

func (r *recordingConn) WriteJSON(v interface{}) error {
	if u, ok := v.(wsJobUpdate); ok {
		r.updates = append(r.updates, u)
	}
	return nil
}

func TestPushSendsSnapshotThenTerminalUpdate(t *testing.T) {
	registry := jobs.NewRegistry()
	hub := broadcast.NewHub()
	h := NewWSHandler(registry, hub)

	registry.Create("job-1")
	snap, ok := registry.Snapshot("job-1")
	require.True(t, ok)

	ch := hub.Subscribe("job-1")
	registry.Apply("job-1", func(j *jobs.Job) {
		j.Status = types.StatusFailed
		j.Error = "no audio track"
	})
	failed, _ := registry.Snapshot("job-1")
	hub.Publish("job-1", failed)

	conn := &recordingConn{}
	h.push(conn, "job-1", snap, ch, make(chan struct{}))

	require.Len(t, conn.updates, 2)
	assert.Equal(t, types.StatusQueued, conn.updates[0].Job.Status)
	assert.Equal(t, types.StatusFailed, conn.updates[1].Job.Status)
	assert.Equal(t, "no audio track", conn.updates[1].Job.Error)
}

func TestPushDeliversTerminalStateAfterDroppedBroadcast(t *testing.T) {
	registry := jobs.NewRegistry()
	hub := broadcast.NewHub()
	h := NewWSHandler(registry, hub)

	registry.Create("job-1")
	registry.Apply("job-1", func(j *jobs.Job) {
		j.Status = types.StatusSummarizing
		j.Phase = types.StatusSummarizing.Phase()
	})
	stale, ok := registry.Snapshot("job-1")
	require.True(t, ok)

	// Fill the subscriber buffer, then complete the job; the terminal
	// broadcast is dropped.
	ch := hub.Subscribe("job-1")
	for i := 0; i < cap(ch); i++ {
		hub.Publish("job-1", stale)
	}
	registry.Apply("job-1", func(j *jobs.Job) {
		j.Status = types.StatusCompleted
		j.OverallProgress = 100
		j.Result = &types.Result{Transcript: "t", Summary: "s"}
	})
	done, _ := registry.Snapshot("job-1")
	hub.Publish("job-1", done)
	require.Len(t, ch, cap(ch), "terminal broadcast must have been dropped")

	conn := &recordingConn{}
	h.push(conn, "job-1", stale, ch, make(chan struct{}))

	require.NotEmpty(t, conn.updates)
	last := conn.updates[len(conn.updates)-1].Job
	assert.Equal(t, types.StatusCompleted, last.Status, "session must still end with the terminal state")
	require.NotNil(t, last.Result)
	assert.Equal(t, "s", last.Result.Summary)
}

func TestPushEndsWhenJobExpires(t *testing.T) {
	registry := jobs.NewRegistry()
	hub := broadcast.NewHub()
	h := NewWSHandler(registry, hub)

	registry.Create("job-1")
	stale, ok := registry.Snapshot("job-1")
	require.True(t, ok)

	ch := hub.Subscribe("job-1")
	hub.Publish("job-1", stale)
	registry.ExpireOlderThan(0)

	conn := &recordingConn{}
	h.push(conn, "job-1", stale, ch, make(chan struct{}))

	require.Len(t, conn.updates, 1, "only the initial snapshot goes out for an expired job")
}