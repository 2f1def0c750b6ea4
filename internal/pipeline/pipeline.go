// Package pipeline implements the per-media-type processing pipelines.
// Each run owns an isolated temp working directory, drives the transcoding
// engine and object store through narrow interfaces, and reports progress
// at fixed stage anchors.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/pixelharbor/mediaworker/internal/ffmpeg"
	"github.com/pixelharbor/mediaworker/internal/models"
)

// WorkDirPrefix names per-job temp directories under the worker temp root.
// Startup cleanup matches on it to remove directories orphaned by a crash.
const WorkDirPrefix = "job-"

// Engine is the transcoding surface the pipelines need.
type Engine interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
	TranscodeVideo(ctx context.Context, params ffmpeg.VideoParams) error
	ExtractThumbnail(ctx context.Context, input, output string, atSeconds float64) error
	NormalizeAudio(ctx context.Context, params ffmpeg.AudioParams) error
	ExtractSamples(ctx context.Context, input string) ([]float32, error)
}

// ObjectStore is the storage surface the pipelines need.
type ObjectStore interface {
	Download(ctx context.Context, key, destPath string) error
	Upload(ctx context.Context, key, filePath, contentType string) (string, error)
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Reporter receives progress values. Report may be coalesced; Flush is
// persisted immediately and marks a stage boundary.
type Reporter interface {
	Report(ctx context.Context, percent int)
	Flush(ctx context.Context, percent int)
}

// Context carries the shared dependencies and job state for one run.
type Context struct {
	Job      *models.MediaJob
	TempRoot string
	Engine   Engine
	Store    ObjectStore
	Reporter Reporter
	Logger   *slog.Logger
}

// Result is what a successful run hands back for the terminal write.
type Result struct {
	OutputURL       string
	ThumbnailURL    string
	WaveformURL     string
	DurationSeconds float64
	Width           int
	Height          int
}

// Pipeline is one media type's processing sequence.
type Pipeline interface {
	Run(ctx context.Context, pc *Context) (*Result, error)
}

// ForJob returns the pipeline for a job's media type. Dispatch happens
// once, here; the two pipeline types are otherwise statically distinct.
func ForJob(job *models.MediaJob) (Pipeline, error) {
	switch job.MediaType {
	case models.MediaTypeVideo:
		return Video{}, nil
	case models.MediaTypeAudio:
		return Audio{}, nil
	default:
		return nil, fmt.Errorf("no pipeline for media type %q", job.MediaType)
	}
}

// makeWorkDir creates the job's isolated working directory. Callers must
// remove it on every exit path.
func makeWorkDir(pc *Context) (string, error) {
	if err := os.MkdirAll(pc.TempRoot, 0o755); err != nil {
		return "", fmt.Errorf("creating temp root: %w", err)
	}
	dir, err := os.MkdirTemp(pc.TempRoot, WorkDirPrefix+pc.Job.ID.String()+"-")
	if err != nil {
		return "", fmt.Errorf("creating work dir: %w", err)
	}
	return dir, nil
}

// sourcePath names the downloaded raw file inside the work dir, keeping
// the original extension so the engine can sniff the container.
func sourcePath(workDir, rawKey string) string {
	return filepath.Join(workDir, "source"+filepath.Ext(rawKey))
}

// contentTypeFor maps a file extension to a MIME type, with a generic
// fallback for containers the platform table does not know.
func contentTypeFor(ext string) string {
	if ct := mime.TypeByExtension(strings.ToLower(ext)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// deleteRaw removes the raw upload after processing. Best effort: the raw
// object leaking costs storage, not correctness.
func deleteRaw(ctx context.Context, pc *Context) {
	if err := pc.Store.Delete(ctx, pc.Job.RawFileKey); err != nil {
		pc.Logger.Warn("failed to delete raw object",
			slog.String("key", pc.Job.RawFileKey),
			slog.String("error", err.Error()),
		)
	}
}
