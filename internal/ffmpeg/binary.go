// Package ffmpeg wraps the ffmpeg and ffprobe binaries behind the adapter
// the media pipelines drive: probing, transcoding, thumbnail extraction,
// loudness normalization, and raw sample extraction.
package ffmpeg

import (
	"fmt"
	"os/exec"
)

// ResolveBinary returns the path to a binary, using the configured path
// when set and falling back to a PATH lookup.
func ResolveBinary(configured, name string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}
