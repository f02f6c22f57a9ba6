package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"storyforge/internal/models"
	"storyforge/internal/store"
)

// ErrPollTimeout is returned when a job does not reach a terminal state
// within the poller's wait ceiling. It is distinct from a job-reported
// failure: the job may still complete later and remain readable until
// eviction.
var ErrPollTimeout = errors.New("orchestrator: timed out waiting for job to finish")

// JobFailedError reports a job that reached the failed state.
type JobFailedError struct {
	JobID    string
	Reason   string
	Progress int
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Reason)
}

// JobReader is the poller's view of the registry: the in-process store
// satisfies it directly, and an HTTP status client satisfies it from another
// process.
type JobReader interface {
	Get(ctx context.Context, id string) (*models.Job, error)
}

// ProgressWindow linearly rescales the registry's 0-100 progress into a
// slice of the caller's overall progress bar.
type ProgressWindow struct {
	Lo int
	Hi int
}

func (w ProgressWindow) rescale(progress int) int {
	if w.Hi <= w.Lo {
		return progress
	}
	return w.Lo + int(math.Round(float64(w.Hi-w.Lo)*float64(progress)/100))
}

// Poller watches a job until it settles or the wait ceiling elapses.
type Poller struct {
	reader   JobReader
	interval time.Duration
	ceiling  time.Duration
	window   ProgressWindow
}

// NewPoller builds a poller. Zero values fall back to the standard knobs:
// 2s interval, 15m ceiling, 30-95 progress window.
func NewPoller(reader JobReader, interval, ceiling time.Duration, window ProgressWindow) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if ceiling <= 0 {
		ceiling = 15 * time.Minute
	}
	if window == (ProgressWindow{}) {
		window = ProgressWindow{Lo: 30, Hi: 95}
	}
	return &Poller{reader: reader, interval: interval, ceiling: ceiling, window: window}
}

// AwaitJob polls the job until it is terminal. A single not-found or errored
// read is logged and retried on the next tick rather than treated as job
// failure. onProgress (optional) receives the window-rescaled progress.
func (p *Poller) AwaitJob(ctx context.Context, jobID string, onProgress func(int)) ([]models.PageResult, error) {
	logger := log.WithField("job_id", jobID)
	deadline := time.Now().Add(p.ceiling)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		job, err := p.reader.Get(ctx, jobID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			logger.Warn("poll: job not found, retrying on next tick")
		case err != nil:
			logger.Warnf("poll: status read failed, retrying: %v", err)
		default:
			if onProgress != nil {
				onProgress(p.window.rescale(job.Progress))
			}
			switch job.Status {
			case models.JobStatusCompleted:
				return job.Result, nil
			case models.JobStatusFailed:
				return nil, &JobFailedError{JobID: jobID, Reason: job.Error, Progress: job.Progress}
			}
		}

		if time.Now().After(deadline) {
			return nil, ErrPollTimeout
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
