package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pixelharbor/mediaworker/internal/ffmpeg"
	"github.com/pixelharbor/mediaworker/internal/policy"
	"github.com/pixelharbor/mediaworker/internal/storage"
)

// Video transcodes a raw video upload into a web-ready MP4 plus a JPEG
// thumbnail.
type Video struct{}

var _ Pipeline = Video{}

// Stage anchors persisted as each video stage completes.
const (
	videoProgressDownloaded    = 15
	videoProgressProbed        = 20
	videoProgressTranscoded    = 80
	videoProgressThumbnailed   = 85
	videoProgressUploaded      = 92
	videoProgressThumbUploaded = 98
)

func (Video) Run(ctx context.Context, pc *Context) (*Result, error) {
	job := pc.Job

	workDir, err := makeWorkDir(pc)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	rawPath := sourcePath(workDir, job.RawFileKey)
	if err := pc.Store.Download(ctx, job.RawFileKey, rawPath); err != nil {
		return nil, fmt.Errorf("downloading raw video: %w", err)
	}
	pc.Reporter.Flush(ctx, videoProgressDownloaded)

	info, err := pc.Engine.Probe(ctx, rawPath)
	if err != nil {
		return nil, fmt.Errorf("probing video: %w", err)
	}
	if !info.HasVideo() {
		return nil, fmt.Errorf("probing video: %w", ffmpeg.ErrNoVideoStream)
	}
	pc.Reporter.Flush(ctx, videoProgressProbed)

	if err := policy.ValidateVideo(job.UserTier, info.DurationSeconds); err != nil {
		return nil, err
	}

	limits := policy.LimitsFor(job.UserTier)
	width, height, needsScale := policy.TargetDimensions(job.UserTier, info.Width, info.Height)

	outputPath := rawPath
	if needsScale {
		outputPath = filepath.Join(workDir, "output.mp4")
		err := pc.Engine.TranscodeVideo(ctx, ffmpeg.VideoParams{
			Input:           rawPath,
			Output:          outputPath,
			Width:           width,
			Height:          height,
			AudioBitrate:    limits.VideoAudioBitrate,
			DurationSeconds: info.DurationSeconds,
			OnProgress: func(fraction float64) {
				pc.Reporter.Report(ctx, videoProgressProbed+
					int(fraction*float64(videoProgressTranscoded-videoProgressProbed)))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("transcoding video: %w", err)
		}
	} else {
		pc.Logger.Debug("source within tier limits, transcode skipped",
			slog.Int("width", info.Width),
			slog.Int("height", info.Height),
		)
	}
	pc.Reporter.Flush(ctx, videoProgressTranscoded)

	// Thumbnail early in the clip, but never past the midpoint of very
	// short videos.
	thumbAt := 1.0
	if half := info.DurationSeconds / 2; half < thumbAt {
		thumbAt = half
	}
	thumbPath := filepath.Join(workDir, "thumb.jpg")
	if err := pc.Engine.ExtractThumbnail(ctx, outputPath, thumbPath, thumbAt); err != nil {
		return nil, fmt.Errorf("extracting thumbnail: %w", err)
	}
	pc.Reporter.Flush(ctx, videoProgressThumbnailed)

	outputExt := filepath.Ext(outputPath)
	outputURL, err := pc.Store.Upload(ctx,
		storage.ObjectKey(job.UserID, storage.KindProcessed, outputExt),
		outputPath, contentTypeFor(outputExt))
	if err != nil {
		return nil, fmt.Errorf("uploading processed video: %w", err)
	}
	pc.Reporter.Flush(ctx, videoProgressUploaded)

	thumbURL, err := pc.Store.Upload(ctx,
		storage.ObjectKey(job.UserID, storage.KindThumbnail, ".jpg"),
		thumbPath, "image/jpeg")
	if err != nil {
		return nil, fmt.Errorf("uploading thumbnail: %w", err)
	}
	pc.Reporter.Flush(ctx, videoProgressThumbUploaded)

	deleteRaw(ctx, pc)

	return &Result{
		OutputURL:       outputURL,
		ThumbnailURL:    thumbURL,
		DurationSeconds: info.DurationSeconds,
		Width:           width,
		Height:          height,
	}, nil
}
