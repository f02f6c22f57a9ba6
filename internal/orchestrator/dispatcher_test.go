package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsSubmittedTasks(t *testing.T) {
	d := NewDispatcher(2, 4, nil)
	defer d.Shutdown(context.Background())

	var (
		mu   sync.Mutex
		seen []string
	)
	done := make(chan struct{})
	var once sync.Once

	for _, id := range []string{"a", "b", "c"} {
		jobID := id
		err := d.Submit(Task{JobID: jobID, Run: func(context.Context) {
			mu.Lock()
			seen = append(seen, jobID)
			if len(seen) == 3 {
				once.Do(func() { close(done) })
			}
			mu.Unlock()
		}})
		require.NoError(t, err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}
	mu.Lock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
	mu.Unlock()
}

func TestDispatcher_RejectsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(1, 1, nil)
	defer d.Shutdown(context.Background())

	block := make(chan struct{})
	// Occupy the single worker, then fill the single queue slot.
	require.NoError(t, d.Submit(Task{JobID: "busy", Run: func(context.Context) { <-block }}))
	// The worker may not have picked the first task up yet; keep feeding
	// until the queue itself is full.
	var rejected error
	for i := 0; i < 3; i++ {
		if err := d.Submit(Task{JobID: "queued", Run: func(context.Context) { <-block }}); err != nil {
			rejected = err
			break
		}
	}
	require.ErrorIs(t, rejected, ErrDispatcherBusy)
	close(block)
}

func TestDispatcher_RejectsAfterShutdown(t *testing.T) {
	d := NewDispatcher(1, 1, nil)
	require.NoError(t, d.Shutdown(context.Background()))

	err := d.Submit(Task{JobID: "late", Run: func(context.Context) {}})
	assert.ErrorIs(t, err, ErrDispatcherBusy)
}

func TestDispatcher_RecoversPanicsViaCallback(t *testing.T) {
	type failure struct {
		jobID string
		err   error
	}
	failures := make(chan failure, 1)
	d := NewDispatcher(1, 2, func(jobID string, err error) {
		failures <- failure{jobID: jobID, err: err}
	})
	defer d.Shutdown(context.Background())

	require.NoError(t, d.Submit(Task{JobID: "doomed", Run: func(context.Context) {
		panic("generation stack blew up")
	}}))

	select {
	case f := <-failures:
		assert.Equal(t, "doomed", f.jobID)
		assert.Contains(t, f.err.Error(), "generation stack blew up")
	case <-time.After(2 * time.Second):
		t.Fatal("panic never reached the error callback")
	}

	// The worker survived the panic and keeps serving tasks.
	ran := make(chan struct{})
	require.NoError(t, d.Submit(Task{JobID: "next", Run: func(context.Context) { close(ran) }}))
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

func TestDispatcher_ShutdownWaitsForInflight(t *testing.T) {
	d := NewDispatcher(1, 1, nil)

	started := make(chan struct{})
	finished := make(chan struct{})
	require.NoError(t, d.Submit(Task{JobID: "slow", Run: func(context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		close(finished)
	}}))

	<-started
	require.NoError(t, d.Shutdown(context.Background()))
	select {
	case <-finished:
	default:
		t.Fatal("shutdown returned before the in-flight task finished")
	}
}
