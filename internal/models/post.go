package models

// Post is the content record a completed job propagates its output into.
// Only the media fields are owned by this service; the rest of the record
// (caption, author, visibility) belongs to the platform's CRUD layer.
type Post struct {
	BaseModel

	// MediaURL is the processed artifact attached to the post.
	MediaURL string `gorm:"size:2048" json:"media_url,omitempty"`

	// MediaThumbnailURL is the video thumbnail, empty for audio posts.
	MediaThumbnailURL string `gorm:"size:2048" json:"media_thumbnail_url,omitempty"`

	// MediaDurationSeconds is the media duration for player display.
	MediaDurationSeconds float64 `json:"media_duration_seconds,omitempty"`

	// MediaWidth and MediaHeight are the video dimensions.
	MediaWidth  int `json:"media_width,omitempty"`
	MediaHeight int `json:"media_height,omitempty"`
}

// TableName returns the table name for Post.
func (Post) TableName() string {
	return "posts"
}

// PostMediaFields is the set of fields a completed job writes into its post.
type PostMediaFields struct {
	MediaURL             string
	MediaThumbnailURL    string
	MediaDurationSeconds float64
	MediaWidth           int
	MediaHeight          int
}
