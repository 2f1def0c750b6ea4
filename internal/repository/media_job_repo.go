package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pixelharbor/mediaworker/internal/models"
)

// mediaJobRepository implements MediaJobRepository using GORM.
type mediaJobRepository struct {
	db *gorm.DB
}

// NewMediaJobRepository creates a new media job repository.
func NewMediaJobRepository(db *gorm.DB) MediaJobRepository {
	return &mediaJobRepository{db: db}
}

// Compile-time interface check.
var _ MediaJobRepository = (*mediaJobRepository)(nil)

func (r *mediaJobRepository) Create(ctx context.Context, job *models.MediaJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validating media job: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("creating media job: %w", err)
	}
	return nil
}

func (r *mediaJobRepository) GetByID(ctx context.Context, id models.ULID) (*models.MediaJob, error) {
	var job models.MediaJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("media job not found: %s", id)
		}
		return nil, fmt.Errorf("getting media job: %w", err)
	}
	return &job, nil
}

func (r *mediaJobRepository) GetByStatus(ctx context.Context, status models.JobStatus, limit int) ([]*models.MediaJob, error) {
	var jobs []*models.MediaJob
	q := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("getting media jobs by status: %w", err)
	}
	return jobs, nil
}

func (r *mediaJobRepository) CountByStatus(ctx context.Context, status models.JobStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MediaJob{}).
		Where("status = ?", status).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting media jobs by status: %w", err)
	}
	return count, nil
}

// ClaimNext implements the two-step claim protocol: select the oldest
// pending job, then flip it to processing with a conditional update keyed
// on the pending status. When two workers race for the same row, exactly
// one update matches; the loser sees zero rows affected and reports no job
// rather than an error, so its poll loop simply tries again next tick.
func (r *mediaJobRepository) ClaimNext(ctx context.Context) (*models.MediaJob, error) {
	var candidate models.MediaJob
	err := r.db.WithContext(ctx).
		Where("status = ?", models.JobStatusPending).
		Order("created_at ASC").
		First(&candidate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting pending job: %w", err)
	}

	res := r.db.WithContext(ctx).
		Model(&models.MediaJob{}).
		Where("id = ? AND status = ?", candidate.ID, models.JobStatusPending).
		Updates(map[string]interface{}{
			"status":        models.JobStatusProcessing,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"progress":      0,
			"error_message": "",
		})
	if res.Error != nil {
		return nil, fmt.Errorf("claiming job %s: %w", candidate.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race to another worker.
		return nil, nil
	}

	var claimed models.MediaJob
	if err := r.db.WithContext(ctx).Where("id = ?", candidate.ID).First(&claimed).Error; err != nil {
		return nil, fmt.Errorf("re-reading claimed job %s: %w", candidate.ID, err)
	}
	return &claimed, nil
}

// UpdateProgress writes a progress percentage. The guard keeps progress
// monotonic within an attempt: a late write from a slow earlier stage
// cannot move the bar backwards, and writes against a job no longer in
// processing are silently dropped.
func (r *mediaJobRepository) UpdateProgress(ctx context.Context, id models.ULID, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	err := r.db.WithContext(ctx).
		Model(&models.MediaJob{}).
		Where("id = ? AND status = ? AND progress <= ?", id, models.JobStatusProcessing, progress).
		Update("progress", progress).Error
	if err != nil {
		return fmt.Errorf("updating progress for job %s: %w", id, err)
	}
	return nil
}

// Complete records a job's terminal success. The update is fenced on the
// attempt count observed at claim time: if a stale-job sweep has handed the
// job to another worker since, attempt_count no longer matches, zero rows
// are updated, and ErrSuperseded tells the caller its result was discarded.
func (r *mediaJobRepository) Complete(ctx context.Context, job *models.MediaJob, attempt int) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.MediaJob{}).
		Where("id = ? AND status = ? AND attempt_count = ?", job.ID, models.JobStatusProcessing, attempt).
		Updates(map[string]interface{}{
			"status":           models.JobStatusCompleted,
			"progress":         100,
			"output_url":       job.OutputURL,
			"thumbnail_url":    job.ThumbnailURL,
			"waveform_url":     job.WaveformURL,
			"duration_seconds": job.DurationSeconds,
			"width":            job.Width,
			"height":           job.Height,
			"error_message":    "",
			"processed_at":     &now,
		})
	if res.Error != nil {
		return fmt.Errorf("completing job %s: %w", job.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("completing job %s: %w", job.ID, models.ErrSuperseded)
	}
	return nil
}

// Fail records a job's terminal failure, fenced the same way as Complete.
func (r *mediaJobRepository) Fail(ctx context.Context, id models.ULID, attempt int, message string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.MediaJob{}).
		Where("id = ? AND status = ? AND attempt_count = ?", id, models.JobStatusProcessing, attempt).
		Updates(map[string]interface{}{
			"status":        models.JobStatusFailed,
			"error_message": message,
			"processed_at":  &now,
		})
	if res.Error != nil {
		return fmt.Errorf("failing job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failing job %s: %w", id, models.ErrSuperseded)
	}
	return nil
}

// ResetStale returns jobs stuck in processing back to pending. A job whose
// last write is older than the cutoff is assumed to belong to a crashed or
// hung worker; resetting it makes it claimable again, and the bumped
// attempt count fences out any late write from the original worker.
func (r *mediaJobRepository) ResetStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.MediaJob{}).
		Where("status = ? AND updated_at < ?", models.JobStatusProcessing, olderThan).
		Updates(map[string]interface{}{
			"status":        models.JobStatusPending,
			"progress":      0,
			"error_message": "processing timed out; requeued",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("resetting stale jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
