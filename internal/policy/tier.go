// Package policy enforces per-tier media limits. All functions are pure:
// they take a plan snapshot plus probed media facts and return either a
// violation or the transform parameters the pipeline should apply.
package policy

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/pixelharbor/mediaworker/internal/models"
)

// TierLimits describes the processing ceilings for one service plan.
type TierLimits struct {
	// MaxVideoDuration is the hard video length ceiling in seconds.
	MaxVideoDuration float64
	// MaxVideoWidth and MaxVideoHeight bound the output resolution. Larger
	// sources are downscaled, not rejected.
	MaxVideoWidth  int
	MaxVideoHeight int
	// VideoAudioBitrate is the AAC bitrate for a video's audio track.
	VideoAudioBitrate string

	// MaxAudioDuration is the hard audio length ceiling in seconds.
	MaxAudioDuration float64
	// MaxAudioFileSize is the hard raw-upload size ceiling in bytes.
	MaxAudioFileSize int64
	// AudioBitrate is the AAC output bitrate for audio jobs.
	AudioBitrate string
}

var tierLimits = map[models.UserTier]TierLimits{
	models.TierFree: {
		MaxVideoDuration:  30,
		MaxVideoWidth:     1280,
		MaxVideoHeight:    720,
		VideoAudioBitrate: "128k",
		MaxAudioDuration:  60,
		MaxAudioFileSize:  10 * 1024 * 1024,
		AudioBitrate:      "128k",
	},
	models.TierStandard: {
		MaxVideoDuration:  60,
		MaxVideoWidth:     1920,
		MaxVideoHeight:    1080,
		VideoAudioBitrate: "192k",
		MaxAudioDuration:  300,
		MaxAudioFileSize:  50 * 1024 * 1024,
		AudioBitrate:      "192k",
	},
	models.TierPro: {
		MaxVideoDuration:  300,
		MaxVideoWidth:     3840,
		MaxVideoHeight:    2160,
		VideoAudioBitrate: "256k",
		MaxAudioDuration:  1800,
		MaxAudioFileSize:  200 * 1024 * 1024,
		AudioBitrate:      "256k",
	},
}

// LimitsFor returns the limits for a tier. Unknown tiers get the free plan.
func LimitsFor(tier models.UserTier) TierLimits {
	if limits, ok := tierLimits[tier]; ok {
		return limits
	}
	return tierLimits[models.TierFree]
}

// ViolationError is a hard policy rejection. It carries a user-facing
// message that ends up in the job's error field.
type ViolationError struct {
	Message string
}

func (e *ViolationError) Error() string {
	return e.Message
}

// ValidateVideo checks a probed video against the tier's duration ceiling.
// Oversized dimensions are not a violation; they are handled by downscaling.
func ValidateVideo(tier models.UserTier, durationSeconds float64) error {
	limits := LimitsFor(tier)
	if durationSeconds > limits.MaxVideoDuration {
		return &ViolationError{
			Message: fmt.Sprintf("video duration %s exceeds the %s allowed on the %s plan",
				formatDuration(durationSeconds), formatDuration(limits.MaxVideoDuration), tierName(tier)),
		}
	}
	return nil
}

// ValidateAudio checks a probed audio file against the tier's duration and
// file-size ceilings. Size is checked first so an oversized upload gets the
// size-specific message even when its duration is also over.
func ValidateAudio(tier models.UserTier, durationSeconds float64, fileSize int64) error {
	limits := LimitsFor(tier)
	if fileSize > limits.MaxAudioFileSize {
		return &ViolationError{
			Message: fmt.Sprintf("audio file size %s exceeds the %s allowed on the %s plan",
				humanize.Bytes(uint64(fileSize)), humanize.Bytes(uint64(limits.MaxAudioFileSize)), tierName(tier)),
		}
	}
	if durationSeconds > limits.MaxAudioDuration {
		return &ViolationError{
			Message: fmt.Sprintf("audio duration %s exceeds the %s allowed on the %s plan",
				formatDuration(durationSeconds), formatDuration(limits.MaxAudioDuration), tierName(tier)),
		}
	}
	return nil
}

// TargetDimensions computes the output resolution for a video source. When
// the source fits within the tier's ceiling it is returned unchanged and
// needsScale is false. Otherwise the source is scaled down preserving
// aspect ratio: comparing aspect ratios picks the binding dimension, the
// other dimension follows, and both are rounded down to even because the
// encoder requires even dimensions.
func TargetDimensions(tier models.UserTier, srcWidth, srcHeight int) (width, height int, needsScale bool) {
	limits := LimitsFor(tier)
	if srcWidth <= limits.MaxVideoWidth && srcHeight <= limits.MaxVideoHeight {
		return srcWidth, srcHeight, false
	}

	srcAspect := float64(srcWidth) / float64(srcHeight)
	maxAspect := float64(limits.MaxVideoWidth) / float64(limits.MaxVideoHeight)

	if srcAspect >= maxAspect {
		// Wider than the ceiling box: width binds.
		width = limits.MaxVideoWidth
		height = int(float64(width) / srcAspect)
	} else {
		// Taller than the ceiling box: height binds.
		height = limits.MaxVideoHeight
		width = int(float64(height) * srcAspect)
	}

	width -= width % 2
	height -= height % 2
	return width, height, true
}

// formatDuration renders seconds as m:ss for user-facing messages.
func formatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func tierName(tier models.UserTier) string {
	if _, ok := tierLimits[tier]; !ok {
		return string(models.TierFree)
	}
	return string(tier)
}
