// Package costtracker accumulates per-operation usage counts and estimated
// spend for generation calls.
package costtracker

import (
	"context"
	"sync"
)

// Operation names for recorded events.
const (
	OpStory         = "story"
	OpPhotoAnalysis = "photo_analysis"
	OpImage         = "image"
)

// Event represents a single successful provider call and its estimated cost.
type Event struct {
	Provider  string
	Operation string
	AmountUSD float64
}

// Summary is a snapshot of everything recorded so far.
type Summary struct {
	// Calls counts events per operation name.
	Calls    map[string]int
	TotalUSD float64
}

// Tracker records usage events and reports totals.
type Tracker interface {
	Record(ctx context.Context, event Event) error
	Summary(ctx context.Context) (Summary, error)
}

// New returns an in-memory tracker. Totals reset with the process, which
// matches the lifetime of the job registry.
func New() Tracker {
	return &memoryTracker{calls: make(map[string]int)}
}

type memoryTracker struct {
	mu    sync.Mutex
	calls map[string]int
	total float64
}

func (t *memoryTracker) Record(ctx context.Context, event Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[event.Operation]++
	t.total += event.AmountUSD
	return nil
}

func (t *memoryTracker) Summary(ctx context.Context) (Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	calls := make(map[string]int, len(t.calls))
	for op, n := range t.calls {
		calls[op] = n
	}
	return Summary{Calls: calls, TotalUSD: t.total}, nil
}

// EstimateImageUSD returns the published per-image price for a backend's
// default image model. Unknown backends estimate zero rather than guessing.
func EstimateImageUSD(provider string) float64 {
	switch provider {
	case "openai":
		return 0.04 // DALL-E 3 standard 1024x1024
	default:
		return 0
	}
}
