package pipeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/sahilpatel/media-summarizer/internal/broadcast"
	"github.com/sahilpatel/media-summarizer/internal/jobs"
	"github.com/sahilpatel/media-summarizer/internal/types"
)

// Stage adapters. Each runs one external operation to completion, reporting
// fractional progress (0-100) through onProgress as it goes.
type Downloader interface {
	Download(jobDir, sourceURL string, onProgress func(int)) (audioPath string, err error)
}

type Transcriber interface {
	Transcribe(audioPath string, onProgress func(int)) (transcript string, err error)
}

type Summarizer interface {
	Summarize(transcript string, onProgress func(int)) (summary string, err error)
}

// Archiver records completed briefs for later retrieval.
type Archiver interface {
	SaveBrief(jobID, sourceURL, transcript, summary string, createdAt time.Time) error
}

// Fixed stage weights mapping per-stage progress onto the overall percentage.
// The remaining 5 points are granted at the completed transition.
const (
	weightDownload   = 25
	weightTranscribe = 45
	weightSummarize  = 25
)

// Runner drives one job at a time through download, transcription and
// summarization, updating the registry and broadcasting after every
// transition. One goroutine per job; the runner is that job's only writer.
type Runner struct {
	registry    *jobs.Registry
	hub         *broadcast.Hub
	archive     Archiver
	downloader  Downloader
	transcriber Transcriber
	summarizer  Summarizer
	tempDir     string
}

func NewRunner(
	registry *jobs.Registry,
	hub *broadcast.Hub,
	archive Archiver,
	downloader Downloader,
	transcriber Transcriber,
	summarizer Summarizer,
	tempDir string,
) *Runner {
	return &Runner{
		registry:    registry,
		hub:         hub,
		archive:     archive,
		downloader:  downloader,
		transcriber: transcriber,
		summarizer:  summarizer,
		tempDir:     tempDir,
	}
}

// Launch starts the pipeline for a freshly created job without blocking the
// caller.
func (r *Runner) Launch(jobID, sourceURL string) {
	go r.run(jobID, sourceURL)
}

func (r *Runner) run(jobID, sourceURL string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Job %s: PANIC in pipeline: %v\n%s", jobID, rec, string(debug.Stack()))
			r.fail(jobID, &StageError{Stage: "pipeline", Err: fmt.Errorf("internal failure: %v", rec)})
		}
	}()

	jobDir := filepath.Join(r.tempDir, jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		r.fail(jobID, &StageError{Stage: "setup", Err: fmt.Errorf("create working directory: %v", err)})
		return
	}
	// Teardown is best-effort on every terminal path and must never change
	// the job's outcome.
	defer r.removeJobDir(jobID, jobDir)

	log.Printf("Job %s: started (source: %s)", jobID, sourceURL)

	if r.stopAtBoundary(jobID) {
		return
	}
	r.enterStage(jobID, types.StatusDownloading, 0)
	audioPath, err := r.downloader.Download(jobDir, sourceURL, r.progressFn(jobID, 0, weightDownload))
	if err != nil {
		r.fail(jobID, &StageError{Stage: "download", Err: err})
		return
	}
	log.Printf("Job %s: downloaded %s", jobID, audioPath)

	if r.stopAtBoundary(jobID) {
		return
	}
	r.enterStage(jobID, types.StatusTranscribing, weightDownload)
	transcript, err := r.transcriber.Transcribe(audioPath, r.progressFn(jobID, weightDownload, weightTranscribe))
	if err != nil {
		r.fail(jobID, &StageError{Stage: "transcribe", Err: err})
		return
	}
	log.Printf("Job %s: transcribed (%d chars)", jobID, len(transcript))

	if r.stopAtBoundary(jobID) {
		return
	}
	r.enterStage(jobID, types.StatusSummarizing, weightDownload+weightTranscribe)
	summary, err := r.summarizer.Summarize(transcript, r.progressFn(jobID, weightDownload+weightTranscribe, weightSummarize))
	if err != nil {
		r.fail(jobID, &StageError{Stage: "summarize", Err: err})
		return
	}

	r.complete(jobID, sourceURL, transcript, summary)
}

// stopAtBoundary checks the cooperative stop conditions between stages: the
// job was expired by the janitor, or its cancellation flag was set. A stage
// already in flight is never interrupted; this is the only place cancellation
// takes effect.
func (r *Runner) stopAtBoundary(jobID string) bool {
	snap, ok := r.registry.Snapshot(jobID)
	if !ok {
		log.Printf("Job %s: expired mid-pipeline, abandoning", jobID)
		return true
	}
	if snap.Status.Terminal() {
		return true
	}
	if snap.Canceled {
		r.registry.Apply(jobID, func(j *jobs.Job) {
			j.Status = types.StatusCancelled
			j.Phase = types.StatusCancelled.Phase()
		})
		log.Printf("Job %s: cancelled", jobID)
		r.broadcast(jobID)
		return true
	}
	return false
}

func (r *Runner) enterStage(jobID string, status types.Status, base int) {
	r.registry.Apply(jobID, func(j *jobs.Job) {
		j.Status = status
		j.Phase = status.Phase()
		j.PhaseProgress = 0
		if base > j.OverallProgress {
			j.OverallProgress = base
		}
	})
	log.Printf("Job %s: %s", jobID, status)
	r.broadcast(jobID)
}

// progressFn maps a stage's own 0-100 progress into the job record and the
// derived overall percentage, re-broadcasting on every report. Overall
// progress only ever moves forward.
func (r *Runner) progressFn(jobID string, base, weight int) func(int) {
	return func(percent int) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		r.registry.Apply(jobID, func(j *jobs.Job) {
			j.PhaseProgress = percent
			if overall := base + weight*percent/100; overall > j.OverallProgress {
				j.OverallProgress = overall
			}
		})
		r.broadcast(jobID)
	}
}

func (r *Runner) fail(jobID string, serr *StageError) {
	log.Printf("Job %s: %s stage failed: %v", jobID, serr.Stage, serr.Err)
	r.registry.Apply(jobID, func(j *jobs.Job) {
		if j.Status.Terminal() {
			return
		}
		j.Status = types.StatusFailed
		j.Phase = types.StatusFailed.Phase()
		j.Error = serr.Err.Error()
	})
	r.broadcast(jobID)
}

func (r *Runner) complete(jobID, sourceURL, transcript, summary string) {
	r.registry.Apply(jobID, func(j *jobs.Job) {
		j.Status = types.StatusCompleted
		j.Phase = types.StatusCompleted.Phase()
		j.PhaseProgress = 100
		j.OverallProgress = 100
		j.Result = &types.Result{Transcript: transcript, Summary: summary}
	})
	log.Printf("Job %s: completed", jobID)
	r.broadcast(jobID)

	if r.archive != nil {
		snap, ok := r.registry.Snapshot(jobID)
		createdAt := time.Now()
		if ok {
			createdAt = snap.CreatedAt
		}
		if err := r.archive.SaveBrief(jobID, sourceURL, transcript, summary, createdAt); err != nil {
			// Archiving is write-behind; a failure never demotes a
			// completed job.
			log.Printf("Job %s: archive save failed: %v", jobID, err)
		}
	}
}

func (r *Runner) broadcast(jobID string) {
	if snap, ok := r.registry.Snapshot(jobID); ok {
		r.hub.Publish(jobID, snap)
	}
}

func (r *Runner) removeJobDir(jobID, jobDir string) {
	if err := os.RemoveAll(jobDir); err != nil {
		log.Printf("Job %s: failed to remove working directory %s: %v", jobID, jobDir, err)
		return
	}
	log.Printf("Job %s: removed working directory", jobID)
}
