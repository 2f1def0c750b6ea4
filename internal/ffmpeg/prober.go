package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Probe errors. The pipeline maps these onto job failures without retry.
var (
	// ErrNoVideoStream indicates the file has no decodable video stream.
	ErrNoVideoStream = errors.New("no video stream found")
	// ErrNoAudioStream indicates the file has no decodable audio stream.
	ErrNoAudioStream = errors.New("no audio stream found")
)

// probeResult is the subset of ffprobe's JSON output we consume.
type probeResult struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type probeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"` // video, audio, subtitle, data
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	SampleRate string `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	Duration   string `json:"duration,omitempty"`
}

// MediaInfo is the probed metadata the pipelines act on.
type MediaInfo struct {
	DurationSeconds float64
	SizeBytes       int64
	Format          string

	// Video stream fields, zero when absent.
	Width      int
	Height     int
	VideoCodec string

	// Audio stream fields, zero when absent.
	AudioCodec string
	SampleRate int
	Channels   int
}

// HasVideo returns true if the file contains a video stream.
func (i *MediaInfo) HasVideo() bool {
	return i.VideoCodec != ""
}

// HasAudio returns true if the file contains an audio stream.
func (i *MediaInfo) HasAudio() bool {
	return i.AudioCodec != ""
}

// Prober extracts media metadata from local files using ffprobe.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a prober using the given ffprobe binary path.
func NewProber(ffprobePath string) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		timeout:     30 * time.Second,
	}
}

// WithTimeout sets the probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

// Probe runs ffprobe on a local file and returns its metadata.
func (p *Prober) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("probe timeout after %v", p.timeout)
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	return simplify(&result), nil
}

// simplify flattens the raw probe result into MediaInfo, taking the first
// stream of each type.
func simplify(result *probeResult) *MediaInfo {
	info := &MediaInfo{
		Format:          result.Format.FormatName,
		DurationSeconds: parseFloat(result.Format.Duration),
	}
	if size, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
		info.SizeBytes = size
	}

	for _, stream := range result.Streams {
		switch stream.CodecType {
		case "video":
			if info.VideoCodec != "" {
				continue
			}
			info.VideoCodec = stream.CodecName
			info.Width = stream.Width
			info.Height = stream.Height
		case "audio":
			if info.AudioCodec != "" {
				continue
			}
			info.AudioCodec = stream.CodecName
			info.Channels = stream.Channels
			if rate, err := strconv.Atoi(stream.SampleRate); err == nil {
				info.SampleRate = rate
			}
		}
		// Some containers only carry duration on the stream.
		if info.DurationSeconds == 0 {
			info.DurationSeconds = parseFloat(stream.Duration)
		}
	}
	return info
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
