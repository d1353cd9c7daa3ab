package handlers

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilpatel/media-summarizer/internal/broadcast"
	"github.com/sahilpatel/media-summarizer/internal/jobs"
	"github.com/sahilpatel/media-summarizer/internal/types"
)

func TestEventName(t *testing.T) {
	assert.Equal(t, "status", eventName(types.StatusQueued))
	assert.Equal(t, "status", eventName(types.StatusDownloading))
	assert.Equal(t, "status", eventName(types.StatusTranscribing))
	assert.Equal(t, "status", eventName(types.StatusSummarizing))
	assert.Equal(t, "status", eventName(types.StatusCancelled))
	assert.Equal(t, "done", eventName(types.StatusCompleted))
	assert.Equal(t, "error", eventName(types.StatusFailed))
}

func TestWriteEventFormat(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	snap := types.JobSnapshot{
		ID:            "job-1",
		Status:        types.StatusTranscribing,
		Phase:         "Transcribing",
		PhaseProgress: 42,
	}
	require.NoError(t, writeEvent(w, snap))

	out := buf.String()
	assert.Contains(t, out, "event: status\n")
	assert.Contains(t, out, `"id":"job-1"`)
	assert.Contains(t, out, `"phaseProgress":42`)
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n\n")), "SSE events end with a blank line")
}

func TestStreamDeliversTerminalStateAfterDroppedBroadcast(t *testing.T) {
	registry := jobs.NewRegistry()
	hub := broadcast.NewHub()
	h := NewEventsHandler(registry, hub)

	registry.Create("job-1")
	registry.Apply("job-1", func(j *jobs.Job) {
		j.Status = types.StatusSummarizing
		j.Phase = types.StatusSummarizing.Phase()
	})
	stale, ok := registry.Snapshot("job-1")
	require.True(t, ok)

	// Back the subscriber up until its buffer is full, then complete the
	// job. The terminal broadcast is dropped on the full buffer.
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

	var buf bytes.Buffer
	h.stream(bufio.NewWriter(&buf), "job-1", stale, ch)

	out := buf.String()
	assert.Contains(t, out, "event: done\n", "stream must still end with the terminal state")
	assert.Contains(t, out, `"summary":"s"`)
}

func TestStreamEndsWhenJobExpires(t *testing.T) {
	registry := jobs.NewRegistry()
	hub := broadcast.NewHub()
	h := NewEventsHandler(registry, hub)

	registry.Create("job-1")
	stale, ok := registry.Snapshot("job-1")
	require.True(t, ok)

	ch := hub.Subscribe("job-1")
	hub.Publish("job-1", stale)
	registry.ExpireOlderThan(0)

	var buf bytes.Buffer
	h.stream(bufio.NewWriter(&buf), "job-1", stale, ch)

	assert.Contains(t, buf.String(), "event: status\n")
}

func TestWriteEventCarriesResultOnDone(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	snap := types.JobSnapshot{
		ID:              "job-1",
		Status:          types.StatusCompleted,
		OverallProgress: 100,
		Result:          &types.Result{Transcript: "t", Summary: "s"},
	}
	require.NoError(t, writeEvent(w, snap))

	out := buf.String()
	assert.Contains(t, out, "event: done\n")
	assert.Contains(t, out, `"transcript":"t"`)
	assert.Contains(t, out, `"summary":"s"`)
}
