package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"storyforge/internal/models"
	"storyforge/internal/services"
	"storyforge/internal/store"
)

// Strategy is one of the three execution modes for a generation batch.
type Strategy string

const (
	// StrategyAuto picks a mode from the configured execution budget.
	StrategyAuto Strategy = "auto"
	// StrategyParallel fans all calls out at once and awaits them in the
	// caller; used when the host tolerates the full batch duration.
	StrategyParallel Strategy = "parallel"
	// StrategySequential issues calls one at a time, each bounded well under
	// the host's per-invocation ceiling.
	StrategySequential Strategy = "sequential"
	// StrategyBackground runs the batch on the dispatcher and polls the job
	// registry for completion.
	StrategyBackground Strategy = "background"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyAuto, StrategyParallel, StrategySequential, StrategyBackground:
		return Strategy(s), nil
	case "":
		return StrategyAuto, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// GenerateRequest is one batch of illustrations sharing a consistency
// context. Subject and Photo are optional; when set they ride along into
// every image call of the batch.
type GenerateRequest struct {
	Prompts   []models.ImagePrompt
	Context   models.ConsistencyContext
	Subject   string
	Photo     []byte
	PhotoMIME string
}

// SelectorConfig carries the deployment facts the selector decides on.
type SelectorConfig struct {
	Strategy Strategy
	// ExecBudget is the host's known execution-time ceiling for one
	// synchronous invocation; 0 means unconstrained.
	ExecBudget time.Duration
	// PerCallTimeout bounds each call in the sequential strategy; 0 disables
	// the bound.
	PerCallTimeout time.Duration
	// BackgroundRetention is the registry window for background jobs.
	BackgroundRetention time.Duration
}

// Selector chooses a generation strategy per request and executes it,
// always returning the ordered PageResult list or an explicit failure.
type Selector struct {
	gen        ImageGenerator
	jobs       store.JobStore
	executor   *Executor
	dispatcher *Dispatcher
	poller     *Poller
	cfg        SelectorConfig
}

func NewSelector(gen ImageGenerator, jobs store.JobStore, executor *Executor, dispatcher *Dispatcher, poller *Poller, cfg SelectorConfig) *Selector {
	return &Selector{
		gen:        gen,
		jobs:       jobs,
		executor:   executor,
		dispatcher: dispatcher,
		poller:     poller,
		cfg:        cfg,
	}
}

// Generate runs the batch under the chosen strategy. Per-page failures are
// recorded in the corresponding PageResult; the returned slice always has
// len(req.Prompts) entries in prompt order. onProgress is optional.
func (s *Selector) Generate(ctx context.Context, req GenerateRequest, onProgress func(int)) ([]models.PageResult, error) {
	strategy := s.pick()
	log.Infof("strategy selector: generating %d illustrations via %s", len(req.Prompts), strategy)

	switch strategy {
	case StrategyParallel:
		return s.generateParallel(ctx, req, onProgress)
	case StrategyBackground:
		results, err := s.generateBackground(ctx, req, onProgress)
		if err != nil && s.shouldFallBack(err) {
			log.Warnf("background strategy failed before producing results (%v), falling back to sequential", err)
			return s.generateSequential(ctx, req, onProgress)
		}
		return results, err
	default:
		return s.generateSequential(ctx, req, onProgress)
	}
}

// GenerateSync runs the batch under a synchronous strategy only: parallel
// when the execution budget is unconstrained, sequential otherwise. Callers
// that must return results in-band (the synchronous HTTP endpoint) use it so
// a background-configured deployment cannot hijack their response.
func (s *Selector) GenerateSync(ctx context.Context, req GenerateRequest, onProgress func(int)) ([]models.PageResult, error) {
	switch s.cfg.Strategy {
	case StrategyParallel:
		return s.generateParallel(ctx, req, onProgress)
	case StrategySequential:
		return s.generateSequential(ctx, req, onProgress)
	}
	if s.cfg.ExecBudget == 0 {
		return s.generateParallel(ctx, req, onProgress)
	}
	return s.generateSequential(ctx, req, onProgress)
}

// StartBackground creates a queued job and hands the batch to the
// dispatcher. A dispatch rejection moves the job to failed before returning
// so the start error is never lost.
func (s *Selector) StartBackground(ctx context.Context, req GenerateRequest) (*models.Job, error) {
	job, err := s.jobs.Create(ctx, s.cfg.BackgroundRetention)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	task := Task{
		JobID: job.ID,
		Run: func(runCtx context.Context) {
			s.executor.Run(runCtx, job.ID, req)
		},
	}
	if err := s.dispatcher.Submit(task); err != nil {
		if _, uerr := s.jobs.Update(ctx, job.ID, store.JobUpdate{
			Status:  store.StatusPtr(models.JobStatusFailed),
			Message: store.StrPtr("job failed"),
			Error:   store.StrPtr(err.Error()),
		}); uerr != nil {
			log.WithField("job_id", job.ID).Errorf("failed to record dispatch rejection: %v", uerr)
		}
		return nil, fmt.Errorf("dispatch job %s: %w", job.ID, err)
	}
	return job, nil
}

func (s *Selector) pick() Strategy {
	if s.cfg.Strategy != StrategyAuto && s.cfg.Strategy != "" {
		return s.cfg.Strategy
	}
	if s.cfg.ExecBudget == 0 {
		return StrategyParallel
	}
	if s.dispatcher != nil && s.poller != nil {
		return StrategyBackground
	}
	return StrategySequential
}

// shouldFallBack reports whether the background failure happened before any
// result was produced; only then is a transparent sequential retry safe.
func (s *Selector) shouldFallBack(err error) bool {
	if errors.Is(err, ErrDispatcherBusy) {
		return true
	}
	var jf *JobFailedError
	if errors.As(err, &jf) {
		return jf.Progress == 0
	}
	return false
}

func (s *Selector) generateParallel(ctx context.Context, req GenerateRequest, onProgress func(int)) ([]models.PageResult, error) {
	if err := s.preflight(req); err != nil {
		return nil, err
	}

	total := len(req.Prompts)
	results := make([]models.PageResult, total)

	var (
		mu        sync.Mutex
		completed int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, prompt := range req.Prompts {
		idx, p := i, prompt
		g.Go(func() error {
			results[idx] = s.generateOne(gctx, p, req)

			mu.Lock()
			completed++
			done := completed
			mu.Unlock()
			reportProgress(onProgress, done, total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Selector) generateSequential(ctx context.Context, req GenerateRequest, onProgress func(int)) ([]models.PageResult, error) {
	if err := s.preflight(req); err != nil {
		return nil, err
	}

	total := len(req.Prompts)
	results := make([]models.PageResult, total)
	for i, prompt := range req.Prompts {
		callCtx := ctx
		if s.cfg.PerCallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.cfg.PerCallTimeout)
			results[i] = s.generateOne(callCtx, prompt, req)
			cancel()
		} else {
			results[i] = s.generateOne(callCtx, prompt, req)
		}
		reportProgress(onProgress, i+1, total)
	}
	return results, nil
}

func (s *Selector) generateBackground(ctx context.Context, req GenerateRequest, onProgress func(int)) ([]models.PageResult, error) {
	job, err := s.StartBackground(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.poller.AwaitJob(ctx, job.ID, onProgress)
}

func (s *Selector) generateOne(ctx context.Context, prompt models.ImagePrompt, req GenerateRequest) models.PageResult {
	result := models.PageResult{
		PageNumber: prompt.PageNumber,
		Text:       prompt.Text,
		IsCover:    prompt.IsCover,
	}
	img, err := s.gen.GenerateImage(ctx, services.ImageRequest{
		Prompt:    prompt.Prompt,
		Location:  prompt.Location,
		Subject:   req.Subject,
		Context:   req.Context,
		Photo:     req.Photo,
		PhotoMIME: req.PhotoMIME,
	})
	if err != nil {
		log.Warnf("page %d generation failed: %v", prompt.PageNumber, err)
		result.Error = err.Error()
	} else {
		result.Image = img
	}
	return result
}

// preflight surfaces fatal startup problems (empty batch, missing
// credentials) before any call is attempted.
func (s *Selector) preflight(req GenerateRequest) error {
	if len(req.Prompts) == 0 {
		return fmt.Errorf("no image prompts to generate")
	}
	if rc, ok := s.gen.(readyChecker); ok {
		if err := rc.Ready(); err != nil {
			return err
		}
	}
	return nil
}

func reportProgress(onProgress func(int), done, total int) {
	if onProgress == nil {
		return
	}
	onProgress(int(math.Round(100 * float64(done) / float64(total))))
}
