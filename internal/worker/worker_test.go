package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pixelharbor/mediaworker/internal/ffmpeg"
	"github.com/pixelharbor/mediaworker/internal/models"
	"github.com/pixelharbor/mediaworker/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.MediaJob{}, &models.Post{}))
	return db
}

// stubEngine produces canned probe results and writes placeholder outputs.
type stubEngine struct {
	info *ffmpeg.MediaInfo
}

func (s *stubEngine) Probe(_ context.Context, _ string) (*ffmpeg.MediaInfo, error) {
	return s.info, nil
}

func (s *stubEngine) TranscodeVideo(_ context.Context, params ffmpeg.VideoParams) error {
	return os.WriteFile(params.Output, []byte("video"), 0o644)
}

func (s *stubEngine) ExtractThumbnail(_ context.Context, _, output string, _ float64) error {
	return os.WriteFile(output, []byte("jpeg"), 0o644)
}

func (s *stubEngine) NormalizeAudio(_ context.Context, params ffmpeg.AudioParams) error {
	return os.WriteFile(params.Output, []byte("audio"), 0o644)
}

func (s *stubEngine) ExtractSamples(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.2, -0.7, 0.4}, nil
}

// stubStore is a minimal in-memory object store.
type stubStore struct{}

func (stubStore) Download(_ context.Context, _, destPath string) error {
	return os.WriteFile(destPath, []byte("raw"), 0o644)
}

func (stubStore) Upload(_ context.Context, key, _, _ string) (string, error) {
	return "http://store.local/" + key, nil
}

func (stubStore) UploadBytes(_ context.Context, key string, _ []byte, _ string) (string, error) {
	return "http://store.local/" + key, nil
}

func (stubStore) Delete(_ context.Context, _ string) error {
	return nil
}

func testWorker(t *testing.T, db *gorm.DB, engine *stubEngine) (*Worker, repository.MediaJobRepository, repository.PostRepository) {
	t.Helper()
	jobs := repository.NewMediaJobRepository(db)
	posts := repository.NewPostRepository(db)
	w := New(jobs, posts, engine, stubStore{}, Config{
		WorkerID:     "test-worker",
		PollInterval: 10 * time.Millisecond,
		TempRoot:     t.TempDir(),
	}, nil)
	return w, jobs, posts
}

func waitForStatus(t *testing.T, jobs repository.MediaJobRepository, id models.ULID, status models.JobStatus) *models.MediaJob {
	t.Helper()
	var got *models.MediaJob
	require.Eventually(t, func() bool {
		job, err := jobs.GetByID(context.Background(), id)
		if err != nil {
			return false
		}
		got = job
		return job.Status == status
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func TestWorker_ProcessesVideoJob(t *testing.T) {
	db := setupTestDB(t)
	engine := &stubEngine{info: &ffmpeg.MediaInfo{
		DurationSeconds: 20,
		Width:           3840,
		Height:          2160,
		VideoCodec:      "h264",
		AudioCodec:      "aac",
	}}
	w, jobs, _ := testWorker(t, db, engine)

	job := models.NewMediaJob(models.MediaTypeVideo, models.NewULID(), models.TierStandard,
		"raw/clip.mp4", "http://store.local/raw/clip.mp4", 1024)
	require.NoError(t, jobs.Create(context.Background(), job))

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	got := waitForStatus(t, jobs, job.ID, models.JobStatusCompleted)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 1, got.AttemptCount)
	assert.Contains(t, got.OutputURL, "/processed/")
	assert.Contains(t, got.ThumbnailURL, "/thumbnails/")
	assert.Empty(t, got.WaveformURL)
	assert.Equal(t, 1920, got.Width)
	assert.Equal(t, 1080, got.Height)
	require.NotNil(t, got.ProcessedAt)
}

func TestWorker_ProcessesAudioJob(t *testing.T) {
	db := setupTestDB(t)
	engine := &stubEngine{info: &ffmpeg.MediaInfo{
		DurationSeconds: 90,
		AudioCodec:      "mp3",
		SampleRate:      44100,
		Channels:        2,
	}}
	w, jobs, _ := testWorker(t, db, engine)

	job := models.NewMediaJob(models.MediaTypeAudio, models.NewULID(), models.TierStandard,
		"raw/track.mp3", "http://store.local/raw/track.mp3", 5*1024*1024)
	require.NoError(t, jobs.Create(context.Background(), job))

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	got := waitForStatus(t, jobs, job.ID, models.JobStatusCompleted)
	assert.Contains(t, got.OutputURL, "/processed/")
	assert.Contains(t, got.WaveformURL, "/waveforms/")
	assert.Empty(t, got.ThumbnailURL)
	assert.Zero(t, got.Width)
}

func TestWorker_FailsPolicyViolation(t *testing.T) {
	db := setupTestDB(t)
	engine := &stubEngine{info: &ffmpeg.MediaInfo{
		DurationSeconds: 300,
		Width:           640,
		Height:          480,
		VideoCodec:      "h264",
	}}
	w, jobs, _ := testWorker(t, db, engine)

	// Free tier caps video at 30 seconds.
	job := models.NewMediaJob(models.MediaTypeVideo, models.NewULID(), models.TierFree,
		"raw/long.mp4", "http://store.local/raw/long.mp4", 1024)
	require.NoError(t, jobs.Create(context.Background(), job))

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	got := waitForStatus(t, jobs, job.ID, models.JobStatusFailed)
	assert.Contains(t, got.ErrorMessage, "duration")
	assert.Contains(t, got.ErrorMessage, "free")
	require.NotNil(t, got.ProcessedAt)
}

func TestWorker_PropagatesToPost(t *testing.T) {
	db := setupTestDB(t)
	engine := &stubEngine{info: &ffmpeg.MediaInfo{
		DurationSeconds: 10,
		Width:           1280,
		Height:          720,
		VideoCodec:      "h264",
	}}
	w, jobs, _ := testWorker(t, db, engine)

	post := &models.Post{}
	require.NoError(t, db.Create(post).Error)

	job := models.NewMediaJob(models.MediaTypeVideo, models.NewULID(), models.TierPro,
		"raw/clip.mp4", "http://store.local/raw/clip.mp4", 1024)
	job.PostID = &post.ID
	require.NoError(t, jobs.Create(context.Background(), job))

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	got := waitForStatus(t, jobs, job.ID, models.JobStatusCompleted)

	require.Eventually(t, func() bool {
		var updated models.Post
		if err := db.Where("id = ?", post.ID).First(&updated).Error; err != nil {
			return false
		}
		return updated.MediaURL == got.OutputURL
	}, 5*time.Second, 10*time.Millisecond)

	var updated models.Post
	require.NoError(t, db.Where("id = ?", post.ID).First(&updated).Error)
	assert.Equal(t, got.ThumbnailURL, updated.MediaThumbnailURL)
	assert.Equal(t, got.DurationSeconds, updated.MediaDurationSeconds)
	assert.Equal(t, 1280, updated.MediaWidth)
	assert.Equal(t, 720, updated.MediaHeight)
}

func TestWorker_DrainsQueueInOrder(t *testing.T) {
	db := setupTestDB(t)
	engine := &stubEngine{info: &ffmpeg.MediaInfo{
		DurationSeconds: 5,
		Width:           640,
		Height:          480,
		VideoCodec:      "h264",
	}}
	w, jobs, _ := testWorker(t, db, engine)

	var ids []models.ULID
	for i := 0; i < 3; i++ {
		job := models.NewMediaJob(models.MediaTypeVideo, models.NewULID(), models.TierFree,
			"raw/clip.mp4", "http://store.local/raw/clip.mp4", 1024)
		require.NoError(t, jobs.Create(context.Background(), job))
		ids = append(ids, job.ID)
		time.Sleep(5 * time.Millisecond)
	}

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	for _, id := range ids {
		waitForStatus(t, jobs, id, models.JobStatusCompleted)
	}

	count, err := jobs.CountByStatus(context.Background(), models.JobStatusPending)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWorker_StartTwiceFails(t *testing.T) {
	db := setupTestDB(t)
	w, _, _ := testWorker(t, db, &stubEngine{info: &ffmpeg.MediaInfo{}})

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	assert.Error(t, w.Start(context.Background()))
}

func TestWorker_StopIsIdempotentAfterStop(t *testing.T) {
	db := setupTestDB(t)
	w, _, _ := testWorker(t, db, &stubEngine{info: &ffmpeg.MediaInfo{}})

	require.NoError(t, w.Start(context.Background()))
	w.Stop()

	// A stopped worker can be started again.
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
}
