package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyforge/internal/app"
	"storyforge/internal/config"
)

// testConfig builds a config by hand so the tests never depend on a config
// file or real credentials.
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Provider.Selected = "openai"
	cfg.Orchestrator.Strategy = "auto"
	cfg.Orchestrator.Workers = 2
	cfg.Orchestrator.QueueDepth = 4
	cfg.Retry.MaxRetries = 1
	cfg.Retry.InitialDelayMs = 1
	cfg.Retry.MaxDelayMs = 1
	cfg.Registry.SyncRetentionMins = 30
	cfg.Registry.BackgroundRetentionMins = 60
	cfg.Polling.IntervalMs = 5
	cfg.Polling.CeilingMins = 1
	cfg.Polling.WindowLo = 30
	cfg.Polling.WindowHi = 95
	return cfg
}

func TestAppInitialization(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	a, err := app.NewApp(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { a.Shutdown(context.Background()) })

	assert.NotNil(t, a.JobStore)
	assert.NotNil(t, a.Client)
	assert.NotNil(t, a.Executor)
	assert.NotNil(t, a.Dispatcher)
	assert.NotNil(t, a.Poller)
	assert.NotNil(t, a.Selector)

	// Registry round trip across the wired store.
	job, err := a.JobStore.Create(context.Background(), a.Config.BackgroundRetention())
	require.NoError(t, err)
	got, err := a.JobStore.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestAppRejectsUnknownProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg := testConfig()
	cfg.Provider.Selected = "midjourney"

	_, err := app.NewApp(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "midjourney")
}

func TestAppRejectsUnknownStrategy(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg := testConfig()
	cfg.Orchestrator.Strategy = "turbo"

	_, err := app.NewApp(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "turbo")
}
