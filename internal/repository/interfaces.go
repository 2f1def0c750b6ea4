// Package repository provides data access interfaces and GORM-backed
// implementations for mediaworker's persistent state.
package repository

import (
	"context"
	"time"

	"github.com/pixelharbor/mediaworker/internal/models"
)

// MediaJobRepository defines media job data access, including the claim
// protocol used by workers to take exclusive ownership of pending jobs.
type MediaJobRepository interface {
	// Create persists a new media job.
	Create(ctx context.Context, job *models.MediaJob) error

	// GetByID retrieves a media job by its ID.
	GetByID(ctx context.Context, id models.ULID) (*models.MediaJob, error)

	// GetByStatus retrieves jobs in the given status, oldest first.
	GetByStatus(ctx context.Context, status models.JobStatus, limit int) ([]*models.MediaJob, error)

	// CountByStatus counts jobs in the given status.
	CountByStatus(ctx context.Context, status models.JobStatus) (int64, error)

	// ClaimNext atomically claims the oldest pending job for processing.
	// Returns (nil, nil) when no pending job exists or another worker won
	// the claim race.
	ClaimNext(ctx context.Context) (*models.MediaJob, error)

	// UpdateProgress records a progress percentage for a processing job.
	// Writes that would move progress backwards are dropped.
	UpdateProgress(ctx context.Context, id models.ULID, progress int) error

	// Complete marks a job as completed and records its output fields.
	// The write is fenced on attempt: if the job has been reclaimed since
	// the caller claimed it, ErrSuperseded is returned and nothing changes.
	Complete(ctx context.Context, job *models.MediaJob, attempt int) error

	// Fail marks a job as terminally failed. Fenced like Complete.
	Fail(ctx context.Context, id models.ULID, attempt int, message string) error

	// ResetStale returns processing jobs that have not been touched since
	// the cutoff back to pending so they can be claimed again. Returns the
	// number of jobs reset.
	ResetStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// PostRepository defines the subset of post data access mediaworker needs:
// propagating processed media fields onto the owning post.
type PostRepository interface {
	// UpdateMediaFields writes processed media metadata onto a post.
	UpdateMediaFields(ctx context.Context, postID models.ULID, fields models.PostMediaFields) error
}
