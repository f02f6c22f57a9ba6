// Package orchestrator turns a batch of image prompts into an ordered list of
// page results under one of three execution strategies sized to the host's
// execution-time ceiling.
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sync"

	log "github.com/sirupsen/logrus"

	"storyforge/internal/models"
	"storyforge/internal/services"
	"storyforge/internal/store"
)

// ImageGenerator is the orchestrator's view of the generation stack
// (provider router wrapped in the retry policy). *services.Client satisfies
// it.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req services.ImageRequest) (*models.ImageData, error)
}

// readyChecker is implemented by generators that can report a fatal
// configuration problem before any sub-task runs.
type readyChecker interface {
	Ready() error
}

// Executor fans a job's prompts out concurrently and reports every outcome
// through the job store. Fan-out is deliberately unbounded: one goroutine per
// prompt, suspended on network I/O.
type Executor struct {
	gen  ImageGenerator
	jobs store.JobStore
}

func NewExecutor(gen ImageGenerator, jobs store.JobStore) *Executor {
	return &Executor{gen: gen, jobs: jobs}
}

// Run executes the batch for jobID. It never returns a value to its invoker;
// results, progress, and the terminal state all flow through the job store.
func (e *Executor) Run(ctx context.Context, jobID string, req GenerateRequest) {
	logger := log.WithField("job_id", jobID)
	prompts := req.Prompts

	// Startup failures abort the whole job before any sub-task runs. Past
	// this point an individual page failure is recorded per page and never
	// fails the job.
	if len(prompts) == 0 {
		e.fail(ctx, jobID, "no image prompts to generate")
		return
	}
	if rc, ok := e.gen.(readyChecker); ok {
		if err := rc.Ready(); err != nil {
			logger.Errorf("batch cannot start: %v", err)
			e.fail(ctx, jobID, err.Error())
			return
		}
	}

	if _, err := e.jobs.Update(ctx, jobID, store.JobUpdate{
		Status:  store.StatusPtr(models.JobStatusProcessing),
		Message: store.StrPtr(fmt.Sprintf("generating %d illustrations", len(prompts))),
	}); err != nil {
		logger.Errorf("failed to mark job processing: %v", err)
		return
	}

	total := len(prompts)
	results := make([]models.PageResult, total)

	var (
		mu        sync.Mutex
		completed int
		wg        sync.WaitGroup
	)

	for i, prompt := range prompts {
		wg.Add(1)
		go func(idx int, p models.ImagePrompt) {
			defer wg.Done()

			result := models.PageResult{
				PageNumber: p.PageNumber,
				Text:       p.Text,
				IsCover:    p.IsCover,
			}
			img, err := e.gen.GenerateImage(ctx, services.ImageRequest{
				Prompt:    p.Prompt,
				Location:  p.Location,
				Subject:   req.Subject,
				Context:   req.Context,
				Photo:     req.Photo,
				PhotoMIME: req.PhotoMIME,
			})
			if err != nil {
				logger.Warnf("page %d generation failed: %v", p.PageNumber, err)
				result.Error = err.Error()
			} else {
				result.Image = img
			}

			mu.Lock()
			results[idx] = result
			completed++
			done := completed
			mu.Unlock()

			progress := int(math.Round(100 * float64(done) / float64(total)))
			if _, err := e.jobs.Update(ctx, jobID, store.JobUpdate{
				Progress: store.ProgressPtr(progress),
				Message:  store.StrPtr(fmt.Sprintf("%d/%d illustrations settled", done, total)),
			}); err != nil {
				logger.Warnf("progress update failed: %v", err)
			}
		}(i, prompt)
	}

	wg.Wait()

	// results is ordered by original prompt index, not settlement order.
	if _, err := e.jobs.Update(ctx, jobID, store.JobUpdate{
		Status:   store.StatusPtr(models.JobStatusCompleted),
		Progress: store.ProgressPtr(100),
		Message:  store.StrPtr("all illustrations settled"),
		Result:   results,
	}); err != nil {
		logger.Errorf("failed to complete job: %v", err)
	}
	logger.Infof("job completed: %d/%d pages succeeded", succeededCount(results), total)
}

func (e *Executor) fail(ctx context.Context, jobID, reason string) {
	if _, err := e.jobs.Update(ctx, jobID, store.JobUpdate{
		Status:  store.StatusPtr(models.JobStatusFailed),
		Message: store.StrPtr("job failed"),
		Error:   store.StrPtr(reason),
	}); err != nil {
		log.WithField("job_id", jobID).Errorf("failed to mark job failed: %v", err)
	}
}

func succeededCount(results []models.PageResult) int {
	n := 0
	for _, r := range results {
		if r.Image != nil {
			n++
		}
	}
	return n
}
