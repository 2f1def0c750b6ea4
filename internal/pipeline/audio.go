package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pixelharbor/mediaworker/internal/ffmpeg"
	"github.com/pixelharbor/mediaworker/internal/policy"
	"github.com/pixelharbor/mediaworker/internal/storage"
	"github.com/pixelharbor/mediaworker/internal/waveform"
)

// Audio normalizes a raw audio upload into a loudness-consistent AAC file
// plus a waveform JSON artifact for player rendering.
type Audio struct{}

var _ Pipeline = Audio{}

// Stage anchors persisted as each audio stage completes.
const (
	audioProgressDownloaded       = 15
	audioProgressProbed           = 20
	audioProgressNormalizeStart   = 25
	audioProgressNormalized       = 65
	audioProgressWaveformed       = 80
	audioProgressUploaded         = 90
	audioProgressWaveformUploaded = 98
)

func (Audio) Run(ctx context.Context, pc *Context) (*Result, error) {
	job := pc.Job

	workDir, err := makeWorkDir(pc)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	rawPath := sourcePath(workDir, job.RawFileKey)
	if err := pc.Store.Download(ctx, job.RawFileKey, rawPath); err != nil {
		return nil, fmt.Errorf("downloading raw audio: %w", err)
	}
	pc.Reporter.Flush(ctx, audioProgressDownloaded)

	info, err := pc.Engine.Probe(ctx, rawPath)
	if err != nil {
		return nil, fmt.Errorf("probing audio: %w", err)
	}
	if !info.HasAudio() {
		return nil, fmt.Errorf("probing audio: %w", ffmpeg.ErrNoAudioStream)
	}
	pc.Reporter.Flush(ctx, audioProgressProbed)

	if err := policy.ValidateAudio(job.UserTier, info.DurationSeconds, job.RawFileSize); err != nil {
		return nil, err
	}

	limits := policy.LimitsFor(job.UserTier)
	outputPath := filepath.Join(workDir, "output.m4a")
	err = pc.Engine.NormalizeAudio(ctx, ffmpeg.AudioParams{
		Input:           rawPath,
		Output:          outputPath,
		Bitrate:         limits.AudioBitrate,
		DurationSeconds: info.DurationSeconds,
		OnProgress: func(fraction float64) {
			pc.Reporter.Report(ctx, audioProgressNormalizeStart+
				int(fraction*float64(audioProgressNormalized-audioProgressNormalizeStart)))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("normalizing audio: %w", err)
	}
	pc.Reporter.Flush(ctx, audioProgressNormalized)

	// Waveform from the normalized output, not the raw upload, so peak
	// heights line up with what listeners actually hear.
	samples, err := pc.Engine.ExtractSamples(ctx, outputPath)
	if err != nil {
		return nil, fmt.Errorf("extracting waveform samples: %w", err)
	}
	wf := waveform.New(samples, info.DurationSeconds, ffmpeg.PCMSampleRate)
	wfData, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("encoding waveform: %w", err)
	}
	pc.Reporter.Flush(ctx, audioProgressWaveformed)

	outputURL, err := pc.Store.Upload(ctx,
		storage.ObjectKey(job.UserID, storage.KindProcessed, ".m4a"),
		outputPath, "audio/mp4")
	if err != nil {
		return nil, fmt.Errorf("uploading processed audio: %w", err)
	}
	pc.Reporter.Flush(ctx, audioProgressUploaded)

	waveformURL, err := pc.Store.UploadBytes(ctx,
		storage.ObjectKey(job.UserID, storage.KindWaveform, ".json"),
		wfData, "application/json")
	if err != nil {
		return nil, fmt.Errorf("uploading waveform: %w", err)
	}
	pc.Reporter.Flush(ctx, audioProgressWaveformUploaded)

	deleteRaw(ctx, pc)

	return &Result{
		OutputURL:       outputURL,
		WaveformURL:     waveformURL,
		DurationSeconds: info.DurationSeconds,
	}, nil
}
