package models

import (
	"time"

	"gorm.io/gorm"
)

// MediaType identifies which processing pipeline a job is dispatched to.
type MediaType string

const (
	// MediaTypeVideo is a video transcoding job.
	MediaTypeVideo MediaType = "video"
	// MediaTypeAudio is an audio normalization job.
	MediaTypeAudio MediaType = "audio"
)

// Valid returns true for a known media type.
func (m MediaType) Valid() bool {
	return m == MediaTypeVideo || m == MediaTypeAudio
}

// JobStatus represents the current status of a media job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be claimed.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates a worker holds the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed terminally.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled is reserved for future use; no code path sets it.
	JobStatusCancelled JobStatus = "cancelled"
)

// UserTier is the service plan snapshot captured at job submission.
// A job is always validated against the tier it was created with, never a
// live re-read of the user's plan.
type UserTier string

const (
	// TierFree is the free plan.
	TierFree UserTier = "free"
	// TierStandard is the standard paid plan.
	TierStandard UserTier = "standard"
	// TierPro is the professional plan.
	TierPro UserTier = "pro"
)

// MediaJob is one unit of work: a single raw media upload awaiting
// transformation into web-ready derivatives.
type MediaJob struct {
	BaseModel

	// MediaType selects the video or audio pipeline.
	MediaType MediaType `gorm:"not null;size:10;index" json:"media_type"`

	// Status is the current lifecycle state.
	Status JobStatus `gorm:"not null;default:'pending';size:20;index" json:"status"`

	// RawFileURL is the as-submitted file's location in object storage.
	RawFileURL string `gorm:"not null;size:2048" json:"raw_file_url"`

	// RawFileKey is the object key of the raw upload.
	RawFileKey string `gorm:"not null;size:1024" json:"raw_file_key"`

	// RawFileSize is the raw upload size in bytes.
	RawFileSize int64 `gorm:"not null" json:"raw_file_size"`

	// UserID identifies the submitter.
	UserID ULID `gorm:"type:varchar(26);not null;index" json:"user_id"`

	// UserTier is the plan snapshot at submission time.
	UserTier UserTier `gorm:"not null;size:20" json:"user_tier"`

	// PostID optionally references the content record this job's output is
	// attached to. Nullable because a job may be created before its post.
	PostID *ULID `gorm:"type:varchar(26);index" json:"post_id,omitempty"`

	// Progress is 0-100, non-decreasing within a single processing attempt.
	Progress int `gorm:"not null;default:0" json:"progress"`

	// AttemptCount is incremented on every successful claim and acts as a
	// fencing token: terminal writes carry the attempt they were claimed
	// with and are discarded when a stale reclaim has superseded them.
	AttemptCount int `gorm:"not null;default:0" json:"attempt_count"`

	// OutputURL is the processed artifact, set only on completion.
	OutputURL string `gorm:"size:2048" json:"output_url,omitempty"`

	// ThumbnailURL is set only for completed video jobs.
	ThumbnailURL string `gorm:"size:2048" json:"thumbnail_url,omitempty"`

	// WaveformURL is set only for completed audio jobs.
	WaveformURL string `gorm:"size:2048" json:"waveform_url,omitempty"`

	// DurationSeconds is the probed media duration.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`

	// Width and Height are the final output dimensions (video only).
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// ErrorMessage is set on failure, and transiently carries the timeout
	// note when a stale job is swept back to pending.
	ErrorMessage string `gorm:"size:4096" json:"error_message,omitempty"`

	// ProcessedAt is the timestamp of the terminal write.
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// TableName returns the table name for MediaJob.
func (MediaJob) TableName() string {
	return "media_jobs"
}

// IsPending returns true if the job is waiting to be claimed.
func (j *MediaJob) IsPending() bool {
	return j.Status == JobStatusPending
}

// IsProcessing returns true if a worker currently holds the job.
func (j *MediaJob) IsProcessing() bool {
	return j.Status == JobStatusProcessing
}

// IsFinished returns true if the job reached a terminal state.
func (j *MediaJob) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Validate performs basic validation on the job.
func (j *MediaJob) Validate() error {
	if !j.MediaType.Valid() {
		return ErrMediaTypeInvalid
	}
	if j.RawFileKey == "" {
		return ErrRawFileKeyRequired
	}
	if j.UserID.IsZero() {
		return ErrUserIDRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the job and generates a ULID.
func (j *MediaJob) BeforeCreate(tx *gorm.DB) error {
	if err := j.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.UserTier == "" {
		j.UserTier = TierFree
	}
	return j.Validate()
}

// NewMediaJob creates a pending job for a raw upload. This mirrors the row
// the upload-finalization service inserts; the worker itself never creates
// jobs outside of tests.
func NewMediaJob(mediaType MediaType, userID ULID, tier UserTier, rawKey, rawURL string, rawSize int64) *MediaJob {
	return &MediaJob{
		MediaType:   mediaType,
		Status:      JobStatusPending,
		RawFileKey:  rawKey,
		RawFileURL:  rawURL,
		RawFileSize: rawSize,
		UserID:      userID,
		UserTier:    tier,
	}
}
