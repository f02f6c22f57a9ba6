package models

import "time"

// JobStatus represents the lifecycle state of an illustration job.
// Transitions are forward-only: queued -> processing -> completed | failed.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is a final state that must never
// change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ImageData is a generated image payload. Providers return either inline
// base64 data or a hosted URL depending on the backend; at least one of the
// two is set.
type ImageData struct {
	B64  string `json:"b64,omitempty"`
	MIME string `json:"mime,omitempty"`
	URL  string `json:"url,omitempty"`
}

// PageResult is the outcome of one illustration within a job. A nil Image is
// the explicit "no image" marker; Image and Error are mutually exclusive.
type PageResult struct {
	PageNumber int        `json:"pageNumber"` // 0 is reserved for the cover
	Text       string     `json:"text"`
	Image      *ImageData `json:"image"`
	Error      string     `json:"error,omitempty"`
	IsCover    bool       `json:"isCover"`
}

// Job tracks one batch illustration request through the registry.
type Job struct {
	ID        string       `json:"jobId"`
	Status    JobStatus    `json:"status"`
	Progress  int          `json:"progress"` // 0-100, non-decreasing
	Message   string       `json:"message,omitempty"`
	Result    []PageResult `json:"result,omitempty"` // set only when completed
	Error     string       `json:"error,omitempty"`  // set only when failed
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`

	// MaxAge is the retention window after CreatedAt; the registry sweeps
	// the job once it is exceeded.
	MaxAge time.Duration `json:"-"`
}
