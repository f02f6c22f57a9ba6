package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"storyforge/internal/models"
)

// MemoryJobStore is the process-local job registry backing the background
// generation strategy. Jobs live in a mutex-guarded map and are evicted by
// age on every access rather than by a dedicated timer.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.Job

	now func() time.Time // test hook
}

var _ JobStore = (*MemoryJobStore)(nil)

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*models.Job),
		now:  time.Now,
	}
}

func (s *MemoryJobStore) Create(ctx context.Context, maxAge time.Duration) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	job := &models.Job{
		ID:        uuid.NewString(),
		Status:    models.JobStatusQueued,
		Progress:  0,
		Message:   "queued",
		CreatedAt: now,
		UpdatedAt: now,
		MaxAge:    maxAge,
	}
	s.jobs[job.ID] = job
	return cloneJob(job), nil
}

func (s *MemoryJobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryJobStore) Update(ctx context.Context, id string, upd JobUpdate) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	// Terminal jobs are immutable. Late sub-task reports after a fatal abort
	// land here and are deliberately not an error.
	if job.Status.Terminal() {
		return cloneJob(job), nil
	}

	if upd.Status != nil && validTransition(job.Status, *upd.Status) {
		job.Status = *upd.Status
	}
	if upd.Progress != nil && *upd.Progress > job.Progress {
		job.Progress = *upd.Progress
	}
	if upd.Message != nil {
		job.Message = *upd.Message
	}
	if upd.Result != nil {
		job.Result = upd.Result
	}
	if upd.Error != nil {
		job.Error = *upd.Error
	}
	job.UpdatedAt = s.now()

	return cloneJob(job), nil
}

// List snapshots every live job, sweeping expired ones first. Order is
// unspecified.
func (s *MemoryJobStore) List(ctx context.Context) []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())

	out := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, cloneJob(job))
	}
	return out
}

func (s *MemoryJobStore) Sweep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *MemoryJobStore) sweepLocked(now time.Time) int {
	evicted := 0
	for id, job := range s.jobs {
		if now.Sub(job.CreatedAt) > job.MaxAge {
			delete(s.jobs, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Debugf("job store: evicted %d expired job(s), %d remaining", evicted, len(s.jobs))
	}
	return evicted
}

// validTransition enforces the forward-only lifecycle:
// queued -> processing -> completed | failed.
func validTransition(from, to models.JobStatus) bool {
	switch from {
	case models.JobStatusQueued:
		return to == models.JobStatusProcessing || to.Terminal()
	case models.JobStatusProcessing:
		return to.Terminal()
	default:
		return false
	}
}

// cloneJob returns a defensive copy so callers never share the slice backing
// a live record with settling sub-tasks.
func cloneJob(job *models.Job) *models.Job {
	out := *job
	if job.Result != nil {
		out.Result = make([]models.PageResult, len(job.Result))
		copy(out.Result, job.Result)
	}
	return &out
}
