package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sahilpatel/media-summarizer/internal/jobs"
	"github.com/sahilpatel/media-summarizer/internal/ratelimit"
)

// Janitor periodically expires registry entries past their TTL and removes
// their working directories, bounding memory growth even for jobs that never
// finish. It also sweeps orphaned temp files and prunes stale rate-limiter
// windows.
type Janitor struct {
	registry *jobs.Registry
	limiters []*ratelimit.Limiter
	tempDir  string
	interval time.Duration
	ttl      time.Duration
	stopChan chan struct{}

	removed atomic.Int64
}

func NewJanitor(registry *jobs.Registry, limiters []*ratelimit.Limiter, tempDir string, interval, ttl time.Duration) *Janitor {
	return &Janitor{
		registry: registry,
		limiters: limiters,
		tempDir:  tempDir,
		interval: interval,
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}
}

// Start runs an initial sweep and then sweeps on a fixed interval until Stop.
func (j *Janitor) Start() {
	log.Println("Running initial janitor sweep...")
	j.Sweep()

	ticker := time.NewTicker(j.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				j.Sweep()
			case <-j.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	log.Printf("Janitor started (interval: %s, ttl: %s)", j.interval, j.ttl)
}

func (j *Janitor) Stop() {
	close(j.stopChan)
	log.Println("Janitor stopped")
}

// Removed reports the total number of registry entries expired so far.
func (j *Janitor) Removed() int64 {
	return j.removed.Load()
}

// Sweep runs one pass. A failing sweep is logged and never takes the ticker
// loop down with it.
func (j *Janitor) Sweep() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Janitor sweep panicked: %v", r)
		}
	}()

	expired := j.registry.ExpireOlderThan(j.ttl)
	for _, id := range expired {
		jobDir := filepath.Join(j.tempDir, id)
		if err := os.RemoveAll(jobDir); err != nil {
			log.Printf("Janitor: failed to remove %s: %v", jobDir, err)
		}
	}
	if len(expired) > 0 {
		j.removed.Add(int64(len(expired)))
		log.Printf("Janitor: expired %d jobs (total: %d)", len(expired), j.Removed())
	}

	j.sweepOrphans()

	for _, l := range j.limiters {
		l.Prune()
	}
}

// sweepOrphans removes leftover files in the temp root older than the TTL.
// Covers scratch state whose registry entry is already gone, e.g. after a
// crash mid-teardown.
func (j *Janitor) sweepOrphans() {
	now := time.Now()
	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(j.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age > j.ttl {
			size := info.Size()
			if err := os.Remove(path); err != nil {
				log.Printf("Janitor: failed to delete orphan %s: %v", path, err)
			} else {
				deletedCount++
				deletedSize += size
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("Janitor: orphan sweep error: %v", err)
	}

	if deletedCount > 0 {
		log.Printf("Janitor: deleted %d orphaned files, %.2fMB freed",
			deletedCount, float64(deletedSize)/(1024*1024))
	}
}

// EnsureTempDirExists creates the temp directory if it doesn't exist.
func EnsureTempDirExists(tempDir string) error {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return err
	}
	log.Printf("Temp directory ready: %s", tempDir)
	return nil
}
