package models

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupModelTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&MediaJob{}, &Post{})
	require.NoError(t, err)

	return db
}

func TestMediaJob_BeforeCreate(t *testing.T) {
	db := setupModelTestDB(t)

	job := NewMediaJob(MediaTypeVideo, NewULID(), TierFree, "raw/abc.mp4", "http://store/raw/abc.mp4", 1024)
	require.NoError(t, db.Create(job).Error)

	assert.False(t, job.ID.IsZero())
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, 0, job.AttemptCount)
}

func TestMediaJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		job     MediaJob
		wantErr error
	}{
		{
			name: "valid",
			job: MediaJob{
				MediaType:  MediaTypeAudio,
				RawFileKey: "raw/a.mp3",
				UserID:     NewULID(),
			},
		},
		{
			name: "bad media type",
			job: MediaJob{
				MediaType:  "image",
				RawFileKey: "raw/a.png",
				UserID:     NewULID(),
			},
			wantErr: ErrMediaTypeInvalid,
		},
		{
			name: "missing raw key",
			job: MediaJob{
				MediaType: MediaTypeVideo,
				UserID:    NewULID(),
			},
			wantErr: ErrRawFileKeyRequired,
		},
		{
			name: "missing user",
			job: MediaJob{
				MediaType:  MediaTypeVideo,
				RawFileKey: "raw/a.mp4",
			},
			wantErr: ErrUserIDRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestMediaJob_StatusHelpers(t *testing.T) {
	job := &MediaJob{Status: JobStatusPending}
	assert.True(t, job.IsPending())
	assert.False(t, job.IsProcessing())
	assert.False(t, job.IsFinished())

	job.Status = JobStatusProcessing
	assert.True(t, job.IsProcessing())
	assert.False(t, job.IsFinished())

	job.Status = JobStatusCompleted
	assert.True(t, job.IsFinished())

	job.Status = JobStatusFailed
	assert.True(t, job.IsFinished())
}

func TestULID_RoundTrip(t *testing.T) {
	id := NewULID()
	s := id.String()

	parsed, err := ParseULID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseULID("not-a-ulid")
	assert.Error(t, err)
}

func TestULID_JSON(t *testing.T) {
	id := NewULID()

	data, err := id.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(data))

	var decoded ULID
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, id, decoded)

	var zero ULID
	data, err = zero.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
