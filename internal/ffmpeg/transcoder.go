package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PCMSampleRate is the rate samples are decoded at for waveform rendering.
// The waveform only needs envelope shape, so a low rate keeps the decode
// cheap even for long files.
const PCMSampleRate = 8000

// Loudness normalization targets (EBU R128 via the loudnorm filter).
const (
	loudnormIntegrated    = "-16"
	loudnormTruePeak      = "-1.5"
	loudnormLoudnessRange = "11"
)

// ProgressFunc receives fractional completion in [0,1] during a transcode.
type ProgressFunc func(fraction float64)

// VideoParams describes one video transcode invocation.
type VideoParams struct {
	Input  string
	Output string
	// Width and Height are the exact output dimensions. The source is
	// scaled to fit and letterbox-padded, never cropped.
	Width  int
	Height int
	// AudioBitrate is the AAC bitrate, e.g. "192k".
	AudioBitrate string
	// DurationSeconds is the probed input duration, used to turn stderr
	// time= lines into a completion fraction.
	DurationSeconds float64
	OnProgress      ProgressFunc
}

// AudioParams describes one loudness-normalizing audio re-encode.
type AudioParams struct {
	Input           string
	Output          string
	Bitrate         string
	DurationSeconds float64
	OnProgress      ProgressFunc
}

// Transcoder runs ffmpeg invocations for the media pipelines.
type Transcoder struct {
	ffmpegPath string
}

// NewTranscoder creates a transcoder using the given ffmpeg binary path.
func NewTranscoder(ffmpegPath string) *Transcoder {
	return &Transcoder{ffmpegPath: ffmpegPath}
}

// TranscodeVideo re-encodes a video to the exact target dimensions with
// H.264 video and AAC audio, with the moov atom relocated for streaming.
func (t *Transcoder) TranscodeVideo(ctx context.Context, params VideoParams) error {
	// scale preserves aspect ratio into the target box, pad letterboxes
	// the remainder so the output is exactly WxH.
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		params.Width, params.Height, params.Width, params.Height,
	)

	args := []string{
		"-i", params.Input,
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", "medium",
		"-c:a", "aac",
		"-b:a", params.AudioBitrate,
		"-movflags", "+faststart",
		"-y",
		params.Output,
	}

	return t.runWithProgress(ctx, args, params.DurationSeconds, params.OnProgress)
}

// ExtractThumbnail grabs a single frame as a JPEG at the given timestamp.
func (t *Transcoder) ExtractThumbnail(ctx context.Context, input, output string, atSeconds float64) error {
	args := []string{
		"-ss", strconv.FormatFloat(atSeconds, 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		output,
	}
	return t.run(ctx, args)
}

// NormalizeAudio re-encodes audio with EBU R128 loudness normalization into
// an AAC MP4 container suitable for web playback.
func (t *Transcoder) NormalizeAudio(ctx context.Context, params AudioParams) error {
	loudnorm := fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s",
		loudnormIntegrated, loudnormTruePeak, loudnormLoudnessRange)

	args := []string{
		"-i", params.Input,
		"-af", loudnorm,
		"-c:a", "aac",
		"-b:a", params.Bitrate,
		"-vn",
		"-movflags", "+faststart",
		"-f", "mp4",
		"-y",
		params.Output,
	}

	return t.runWithProgress(ctx, args, params.DurationSeconds, params.OnProgress)
}

// ExtractSamples decodes a file to mono 32-bit float PCM at PCMSampleRate
// and returns the samples. Used as waveform input only, so channel mixing
// and resampling artifacts do not matter.
func (t *Transcoder) ExtractSamples(ctx context.Context, input string) ([]float32, error) {
	args := []string{
		"-i", input,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", "1",
		"-ar", strconv.Itoa(PCMSampleRate),
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	raw, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("extracting samples: %w (%s)", err, tailOf(stderr.String()))
	}

	samples := make([]float32, 0, len(raw)/4)
	for i := 0; i+4 <= len(raw); i += 4 {
		bits := binary.LittleEndian.Uint32(raw[i : i+4])
		sample := math.Float32frombits(bits)
		// Corrupt tails can decode to NaN; drop them rather than poison
		// the waveform.
		if math.IsNaN(float64(sample)) {
			continue
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// run executes ffmpeg and surfaces the stderr tail on failure.
func (t *Transcoder) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w (%s)", err, tailOf(stderr.String()))
	}
	return nil
}

// runWithProgress executes ffmpeg while parsing its stderr stats lines into
// fractional progress callbacks.
func (t *Transcoder) runWithProgress(ctx context.Context, args []string, durationSeconds float64, onProgress ProgressFunc) error {
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	tail := parseTimeProgress(stderr, durationSeconds, onProgress)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w (%s)", err, tailOf(tail))
	}
	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

var timeRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+).(\d+)`)

// parseTimeProgress reads ffmpeg stderr, reporting the out-time as a
// fraction of the known input duration. It returns the accumulated stderr
// text so a failure path can include it in the error.
func parseTimeProgress(r io.Reader, durationSeconds float64, onProgress ProgressFunc) string {
	var buf strings.Builder

	scanner := bufio.NewScanner(r)
	// Progress lines end with \r, not \n.
	scanner.Split(scanCRLines)

	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')

		if onProgress == nil || durationSeconds <= 0 {
			continue
		}
		matches := timeRe.FindStringSubmatch(line)
		if len(matches) <= 4 {
			continue
		}
		hours, _ := strconv.Atoi(matches[1])
		mins, _ := strconv.Atoi(matches[2])
		secs, _ := strconv.Atoi(matches[3])
		ms, _ := strconv.Atoi(matches[4])
		elapsed := time.Duration(hours)*time.Hour +
			time.Duration(mins)*time.Minute +
			time.Duration(secs)*time.Second +
			time.Duration(ms)*time.Millisecond*10

		fraction := elapsed.Seconds() / durationSeconds
		if fraction > 1 {
			fraction = 1
		}
		onProgress(fraction)
	}

	return buf.String()
}

// scanCRLines splits on both \n and \r so ffmpeg's in-place stats updates
// come through as individual lines.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailOf returns the last few lines of ffmpeg output, which is where the
// actual error message lives.
func tailOf(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > 4 {
		lines = lines[len(lines)-4:]
	}
	return strings.Join(lines, "; ")
}
