// Package waveform reduces raw PCM samples into the fixed-size peak
// envelope that audio players render as a waveform.
package waveform

import "math"

// DefaultPeakCount is the number of peaks in a rendered waveform.
const DefaultPeakCount = 200

// Waveform is the JSON artifact uploaded next to a processed audio file.
type Waveform struct {
	Peaks           []float64 `json:"peaks"`
	DurationSeconds float64   `json:"duration_seconds"`
	SampleRate      int       `json:"sample_rate"`
}

// Reduce partitions samples into exactly n buckets and takes the peak
// absolute amplitude of each, clamped to [0,1]. The result always has n
// entries: short inputs leave the trailing buckets at zero, and an empty
// input yields n zeros.
func Reduce(samples []float32, n int) []float64 {
	if n <= 0 {
		return nil
	}
	peaks := make([]float64, n)
	if len(samples) == 0 {
		return peaks
	}

	bucket := float64(len(samples)) / float64(n)
	for i := 0; i < n; i++ {
		start := int(float64(i) * bucket)
		end := int(float64(i+1) * bucket)
		if i == n-1 {
			end = len(samples)
		}
		if end <= start {
			end = start + 1
		}
		if start >= len(samples) {
			break
		}
		if end > len(samples) {
			end = len(samples)
		}

		var peak float64
		for _, s := range samples[start:end] {
			if abs := math.Abs(float64(s)); abs > peak {
				peak = abs
			}
		}
		if peak > 1 {
			peak = 1
		}
		peaks[i] = peak
	}
	return peaks
}

// New builds the waveform artifact for a processed audio file.
func New(samples []float32, durationSeconds float64, sampleRate int) *Waveform {
	return &Waveform{
		Peaks:           Reduce(samples, DefaultPeakCount),
		DurationSeconds: durationSeconds,
		SampleRate:      sampleRate,
	}
}
