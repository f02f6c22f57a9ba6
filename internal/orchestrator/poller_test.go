package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/internal/models"
	"storyforge/internal/store"
)

// scriptedReader returns one scripted job snapshot per Get call, holding the
// last one once the script runs out.
type scriptedReader struct {
	script []*models.Job
	errs   []error
	calls  int
}

func (r *scriptedReader) Get(context.Context, string) (*models.Job, error) {
	idx := r.calls
	r.calls++
	if idx >= len(r.script) {
		idx = len(r.script) - 1
	}
	var err error
	if idx < len(r.errs) {
		err = r.errs[idx]
	}
	return r.script[idx], err
}

func snapshot(status models.JobStatus, progress int) *models.Job {
	return &models.Job{ID: "job-1", Status: status, Progress: progress}
}

func testPoller(reader JobReader, ceiling time.Duration) *Poller {
	return NewPoller(reader, time.Millisecond, ceiling, ProgressWindow{Lo: 30, Hi: 95})
}

func TestAwaitJob_ReturnsResultsOnCompletion(t *testing.T) {
	done := snapshot(models.JobStatusCompleted, 100)
	done.Result = []models.PageResult{{PageNumber: 1, Image: &models.ImageData{B64: "aW1n"}}}
	reader := &scriptedReader{script: []*models.Job{
		snapshot(models.JobStatusQueued, 0),
		snapshot(models.JobStatusProcessing, 50),
		done,
	}}

	var progress []int
	results, err := testPoller(reader, time.Second).AwaitJob(context.Background(), "job-1", func(p int) {
		progress = append(progress, p)
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	// 0 -> 30, 50 -> 63 (rounded), 100 -> 95 inside the 30-95 window.
	assert.Equal(t, []int{30, 63, 95}, progress)
}

func TestAwaitJob_FailedJobCarriesReasonAndProgress(t *testing.T) {
	failed := snapshot(models.JobStatusFailed, 40)
	failed.Error = "quota exceeded"
	reader := &scriptedReader{script: []*models.Job{
		snapshot(models.JobStatusProcessing, 20),
		failed,
	}}

	_, err := testPoller(reader, time.Second).AwaitJob(context.Background(), "job-1", nil)
	var jf *JobFailedError
	require.ErrorAs(t, err, &jf)
	assert.Equal(t, "job-1", jf.JobID)
	assert.Equal(t, "quota exceeded", jf.Reason)
	assert.Equal(t, 40, jf.Progress)
}

func TestAwaitJob_ToleratesNotFoundReads(t *testing.T) {
	reader := &scriptedReader{
		script: []*models.Job{nil, snapshot(models.JobStatusCompleted, 100)},
		errs:   []error{store.ErrNotFound, nil},
	}

	_, err := testPoller(reader, time.Second).AwaitJob(context.Background(), "job-1", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, reader.calls, 2)
}

func TestAwaitJob_TimesOutOnStuckJob(t *testing.T) {
	reader := &scriptedReader{script: []*models.Job{snapshot(models.JobStatusProcessing, 10)}}

	_, err := testPoller(reader, 10*time.Millisecond).AwaitJob(context.Background(), "job-1", nil)
	require.ErrorIs(t, err, ErrPollTimeout)

	// A poll timeout is not a job failure.
	var jf *JobFailedError
	assert.False(t, errors.As(err, &jf))
}

func TestAwaitJob_RespectsContextCancellation(t *testing.T) {
	reader := &scriptedReader{script: []*models.Job{snapshot(models.JobStatusProcessing, 10)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testPoller(reader, time.Minute).AwaitJob(ctx, "job-1", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestProgressWindow_Rescale(t *testing.T) {
	w := ProgressWindow{Lo: 30, Hi: 95}
	assert.Equal(t, 30, w.rescale(0))
	assert.Equal(t, 63, w.rescale(50))
	assert.Equal(t, 95, w.rescale(100))

	// Degenerate window passes progress through untouched.
	assert.Equal(t, 42, ProgressWindow{}.rescale(42))
}
