package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilpatel/media-summarizer/internal/jobs"
	"github.com/sahilpatel/media-summarizer/internal/types"
)

func TestSweepExpiresOldJobsAndDirs(t *testing.T) {
	registry := jobs.NewRegistry()
	tempDir := t.TempDir()

	registry.Create("old-job")
	registry.Apply("old-job", func(j *jobs.Job) {
		j.CreatedAt = time.Now().Add(-2 * time.Hour)
	})
	registry.Create("fresh-job")

	oldDir := filepath.Join(tempDir, "old-job")
	require.NoError(t, os.MkdirAll(oldDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(oldDir, "audio.wav"), []byte("x"), 0644))

	j := NewJanitor(registry, nil, tempDir, time.Minute, time.Hour)
	j.Sweep()

	_, ok := registry.Snapshot("old-job")
	assert.False(t, ok)
	_, ok = registry.Snapshot("fresh-job")
	assert.True(t, ok)

	_, err := os.Stat(oldDir)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, int64(1), j.Removed())
}

func TestSweepExpiresActiveJobs(t *testing.T) {
	registry := jobs.NewRegistry()

	registry.Create("stuck")
	registry.Apply("stuck", func(j *jobs.Job) {
		j.Status = types.StatusTranscribing
		j.CreatedAt = time.Now().Add(-time.Hour)
	})

	j := NewJanitor(registry, nil, t.TempDir(), time.Minute, time.Minute)
	j.Sweep()

	_, ok := registry.Snapshot("stuck")
	assert.False(t, ok, "even active jobs are force-expired past the TTL")
}

func TestSweepRemovesOrphanedFiles(t *testing.T) {
	registry := jobs.NewRegistry()
	tempDir := t.TempDir()

	orphan := filepath.Join(tempDir, "leftover.wav")
	require.NoError(t, os.WriteFile(orphan, []byte("stale"), 0644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(orphan, past, past))

	fresh := filepath.Join(tempDir, "inuse.wav")
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0644))

	j := NewJanitor(registry, nil, tempDir, time.Minute, time.Hour)
	j.Sweep()

	_, err := os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestSweepSurvivesMissingTempDir(t *testing.T) {
	registry := jobs.NewRegistry()
	j := NewJanitor(registry, nil, filepath.Join(t.TempDir(), "does-not-exist"), time.Minute, time.Hour)

	// Must log, not panic.
	j.Sweep()
	assert.Equal(t, int64(0), j.Removed())
}

func TestStartStop(t *testing.T) {
	registry := jobs.NewRegistry()
	j := NewJanitor(registry, nil, t.TempDir(), 10*time.Millisecond, time.Hour)

	j.Start()
	time.Sleep(30 * time.Millisecond)
	j.Stop()
}
