package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"storyforge/internal/config"
	"storyforge/internal/costtracker"
	"storyforge/internal/models"
	"storyforge/internal/orchestrator"
	"storyforge/internal/retry"
	"storyforge/internal/services"
	"storyforge/internal/store"
)

// App wires the job registry, the provider stack, and the orchestrator from
// configuration. Commands retrieve it from the cobra context.
type App struct {
	Config *config.Config

	JobStore store.JobStore
	Client   *services.Client
	Usage    costtracker.Tracker

	Executor   *orchestrator.Executor
	Dispatcher *orchestrator.Dispatcher
	Poller     *orchestrator.Poller
	Selector   *orchestrator.Selector
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	a := &App{Config: cfg}

	a.JobStore = store.NewMemoryJobStore()

	openaiProvider := services.NewOpenAIProvider(
		cfg.Provider.OpenAI.APIKey,
		cfg.Provider.OpenAI.StoryModel,
		cfg.Provider.OpenAI.ImageModel,
		cfg.Provider.OpenAI.ImageSize,
	)
	geminiProvider, err := services.NewGeminiProvider(
		ctx,
		cfg.Provider.Gemini.APIKey,
		cfg.Provider.Gemini.StoryModel,
		cfg.Provider.Gemini.ImageModel,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini provider: %w", err)
	}

	router, err := services.NewRouter(cfg.Provider.Selected, openaiProvider, geminiProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider router: %w", err)
	}

	policy := retry.NewPolicy(cfg.Retry.MaxRetries, cfg.RetryInitialDelay(), cfg.RetryMaxDelay())
	a.Usage = costtracker.New()
	a.Client = services.NewClient(router, policy).WithUsage(a.Usage)

	a.Executor = orchestrator.NewExecutor(a.Client, a.JobStore)
	a.Dispatcher = orchestrator.NewDispatcher(
		cfg.Orchestrator.Workers,
		cfg.Orchestrator.QueueDepth,
		a.failJob,
	)
	a.Poller = orchestrator.NewPoller(
		a.JobStore,
		cfg.PollInterval(),
		cfg.PollCeiling(),
		orchestrator.ProgressWindow{Lo: cfg.Polling.WindowLo, Hi: cfg.Polling.WindowHi},
	)

	strategy, err := orchestrator.ParseStrategy(cfg.Orchestrator.Strategy)
	if err != nil {
		return nil, err
	}
	a.Selector = orchestrator.NewSelector(a.Client, a.JobStore, a.Executor, a.Dispatcher, a.Poller, orchestrator.SelectorConfig{
		Strategy:            strategy,
		ExecBudget:          cfg.ExecBudget(),
		PerCallTimeout:      cfg.PerCallTimeout(),
		BackgroundRetention: cfg.BackgroundRetention(),
	})

	return a, nil
}

// failJob is the dispatcher's supervision callback: a task that died without
// reporting must still reach the registry's failure path.
func (a *App) failJob(jobID string, err error) {
	if _, uerr := a.JobStore.Update(context.Background(), jobID, store.JobUpdate{
		Status:  store.StatusPtr(models.JobStatusFailed),
		Message: store.StrPtr("job failed"),
		Error:   store.StrPtr(err.Error()),
	}); uerr != nil {
		log.WithField("job_id", jobID).Errorf("failed to record supervision failure: %v", uerr)
	}
}

// Shutdown drains the dispatcher.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Dispatcher.Shutdown(ctx)
}
