package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilpatel/media-summarizer/internal/jobs"
	"github.com/sahilpatel/media-summarizer/internal/types"
)

type fakeLauncher struct {
	launched [][2]string
}

func (f *fakeLauncher) Launch(jobID, sourceURL string) {
	f.launched = append(f.launched, [2]string{jobID, sourceURL})
}

func newTestApp() (*fiber.App, *jobs.Registry, *fakeLauncher) {
	registry := jobs.NewRegistry()
	launcher := &fakeLauncher{}
	h := NewJobsHandler(registry, launcher)

	app := fiber.New()
	app.Post("/api/jobs", h.Create)
	app.Get("/api/jobs/:id", h.Get)
	app.Post("/api/jobs/:id/cancel", h.Cancel)
	return app, registry, launcher
}

func TestCreateJob(t *testing.T) {
	app, registry, launcher := newTestApp()

	req := httptest.NewRequest("POST", "/api/jobs",
		strings.NewReader(`{"url":"https://youtu.be/dQw4w9WgXcQ"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var snap types.JobSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, types.StatusQueued, snap.Status)
	assert.Equal(t, 0, snap.OverallProgress)
	assert.Nil(t, snap.Result)

	require.Len(t, launcher.launched, 1)
	assert.Equal(t, snap.ID, launcher.launched[0][0])
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", launcher.launched[0][1])

	_, ok := registry.Snapshot(snap.ID)
	assert.True(t, ok)
}

func TestCreateJobRejectsBadURL(t *testing.T) {
	app, _, launcher := newTestApp()

	req := httptest.NewRequest("POST", "/api/jobs",
		strings.NewReader(`{"url":"https://vimeo.com/12345678"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ERR_INVALID_URL", body["code"])
	assert.Empty(t, launcher.launched, "no job may be created for an invalid URL")
}

func TestCreateJobRejectsMissingURL(t *testing.T) {
	app, _, _ := newTestApp()

	req := httptest.NewRequest("POST", "/api/jobs", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetJob(t *testing.T) {
	app, registry, _ := newTestApp()
	registry.Create("known")

	resp, err := app.Test(httptest.NewRequest("GET", "/api/jobs/known", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var snap types.JobSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "known", snap.ID)
}

func TestGetJobNotFound(t *testing.T) {
	app, _, _ := newTestApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/jobs/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCancelJob(t *testing.T) {
	app, registry, _ := newTestApp()
	registry.Create("job-1")

	resp, err := app.Test(httptest.NewRequest("POST", "/api/jobs/job-1/cancel", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	snap, _ := registry.Snapshot("job-1")
	assert.True(t, snap.Canceled)
	assert.Equal(t, types.StatusQueued, snap.Status, "cancel sets the flag, not the status")
}

func TestCancelUnknownJobIsIdempotent(t *testing.T) {
	app, _, _ := newTestApp()

	resp, err := app.Test(httptest.NewRequest("POST", "/api/jobs/ghost/cancel", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
