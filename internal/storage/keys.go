package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pixelharbor/mediaworker/internal/models"
)

// Artifact kinds used as key prefixes under the owning user.
const (
	KindProcessed = "processed"
	KindThumbnail = "thumbnails"
	KindWaveform  = "waveforms"
)

// ObjectKey builds a collision-resistant object key scoped by owner and
// artifact kind: {userID}/{kind}/{unixnano}-{uuid}{ext}. Reprocessing the
// same job always produces fresh keys, so a superseded attempt can never
// overwrite the winner's artifact.
func ObjectKey(userID models.ULID, kind, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s/%s/%d-%s%s", userID, kind, time.Now().UnixNano(), uuid.NewString(), ext)
}
