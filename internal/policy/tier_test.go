package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelharbor/mediaworker/internal/models"
)

func TestLimitsFor_UnknownTierDefaultsToFree(t *testing.T) {
	free := LimitsFor(models.TierFree)
	unknown := LimitsFor(models.UserTier("enterprise"))
	assert.Equal(t, free, unknown)
}

func TestValidateVideo(t *testing.T) {
	tests := []struct {
		name     string
		tier     models.UserTier
		duration float64
		wantErr  bool
	}{
		{"free within limit", models.TierFree, 29.9, false},
		{"free at limit", models.TierFree, 30, false},
		{"free over limit", models.TierFree, 30.5, true},
		{"standard over limit", models.TierStandard, 61, true},
		{"pro long video ok", models.TierPro, 299, false},
		{"unknown tier uses free limits", models.UserTier("enterprise"), 45, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVideo(tt.tier, tt.duration)
			if tt.wantErr {
				require.Error(t, err)
				var violation *ViolationError
				assert.True(t, errors.As(err, &violation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateVideo_Message(t *testing.T) {
	err := ValidateVideo(models.TierFree, 95)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1:35")
	assert.Contains(t, err.Error(), "0:30")
	assert.Contains(t, err.Error(), "free")
}

func TestValidateAudio(t *testing.T) {
	const mb = 1024 * 1024

	tests := []struct {
		name        string
		tier        models.UserTier
		duration    float64
		size        int64
		wantErr     bool
		wantMessage string
	}{
		{"free within limits", models.TierFree, 55, 5 * mb, false, ""},
		{"free size over", models.TierFree, 55, 12 * mb, true, "file size"},
		{"free duration over", models.TierFree, 75, 5 * mb, true, "duration"},
		{"size reported before duration", models.TierFree, 75, 12 * mb, true, "file size"},
		{"standard long podcast ok", models.TierStandard, 280, 40 * mb, false, ""},
		{"pro big file ok", models.TierPro, 1500, 150 * mb, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAudio(tt.tier, tt.duration, tt.size)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantMessage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTargetDimensions(t *testing.T) {
	tests := []struct {
		name       string
		tier       models.UserTier
		srcW, srcH int
		wantW      int
		wantH      int
		wantScale  bool
	}{
		{"within limits untouched", models.TierStandard, 1280, 720, 1280, 720, false},
		{"at limits untouched", models.TierStandard, 1920, 1080, 1920, 1080, false},
		{"4k to standard 1080p", models.TierStandard, 3840, 2160, 1920, 1080, true},
		{"wide 2:1 on pro binds width", models.TierPro, 4000, 2000, 3840, 1920, true},
		{"portrait binds height", models.TierStandard, 1080, 1920, 606, 1080, true},
		{"free downscale rounds even", models.TierFree, 1920, 1080, 1280, 720, true},
		{"odd ratio rounds down", models.TierFree, 1333, 1000, 958, 720, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, scale := TargetDimensions(tt.tier, tt.srcW, tt.srcH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantScale, scale)
			assert.Zero(t, w%2)
			assert.Zero(t, h%2)
		})
	}
}
