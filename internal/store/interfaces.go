package store

import (
	"context"
	"time"

	"storyforge/internal/models"
)

// JobUpdate is a partial mutation applied to a job record. Nil fields are
// left untouched; Result replaces the whole slice when non-nil.
type JobUpdate struct {
	Status   *models.JobStatus
	Progress *int
	Message  *string
	Result   []models.PageResult
	Error    *string
}

// JobStore is the registry of illustration jobs. Implementations must be
// safe for concurrent use: the background executor's sub-tasks all report
// through Update.
type JobStore interface {
	// Create mints a new job in the queued state. maxAge is the retention
	// window after which the job becomes eligible for eviction.
	Create(ctx context.Context, maxAge time.Duration) (*models.Job, error)

	// Get returns a snapshot of the job, or ErrNotFound for unknown or
	// evicted ids.
	Get(ctx context.Context, id string) (*models.Job, error)

	// Update merges the given fields into the job and bumps UpdatedAt.
	// Updates against a terminal job are silent no-ops so that late-settling
	// sub-tasks can still report after a fatal abort.
	Update(ctx context.Context, id string, upd JobUpdate) (*models.Job, error)

	// List returns a snapshot of every live job, sweeping expired ones
	// first. Order is unspecified.
	List(ctx context.Context) []*models.Job

	// Sweep evicts every job whose retention window has elapsed and returns
	// the number of evicted jobs. Implementations also sweep opportunistically
	// on Create and Get.
	Sweep(ctx context.Context) int
}

// StatusPtr, ProgressPtr and StrPtr build JobUpdate fields without local
// temporaries at call sites.
func StatusPtr(s models.JobStatus) *models.JobStatus { return &s }

func ProgressPtr(p int) *int { return &p }

func StrPtr(s string) *string { return &s }
