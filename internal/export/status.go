// Package export turns the user activity report into CSV files in object storage,
// asynchronously through the job queue.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aura-webinar/webcast/pkg/cache"
)

// Job states.
const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// StatusTTL is how long a job status stays readable.
const StatusTTL = 24 * time.Hour

// Status is the stored state of one export job.
type Status struct {
	JobID          string    `json:"job_id"`
	State          string    `json:"state"`
	CourseModuleID int64     `json:"cmid"`
	ViewerID       int64     `json:"viewer_id"`
	Rows           int       `json:"rows,omitempty"`
	Key            string    `json:"key,omitempty"`
	Error          string    `json:"error,omitempty"`
	Attempt        int       `json:"attempt,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Statuses keeps job statuses under export:<job>.
type Statuses struct {
	cache cache.Cache
}

// NewStatuses creates a status store.
func NewStatuses(c cache.Cache) *Statuses {
	return &Statuses{cache: c}
}

func statusKey(jobID string) string { return "export:" + jobID }

// Put stores st, stamping UpdatedAt.
func (s *Statuses) Put(ctx context.Context, st Status) error {
	st.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return s.cache.Set(ctx, statusKey(st.JobID), string(raw), StatusTTL)
}

// Get returns the status of a job; ok is false when it is unknown or expired.
func (s *Statuses) Get(ctx context.Context, jobID string) (Status, bool, error) {
	raw, ok, err := s.cache.Get(ctx, statusKey(jobID))
	if err != nil || !ok {
		return Status{}, false, err
	}
	var st Status
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return Status{}, false, fmt.Errorf("unmarshal status: %w", err)
	}
	return st, true, nil
}
