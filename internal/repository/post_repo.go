package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pixelharbor/mediaworker/internal/models"
)

// postRepository implements PostRepository using GORM.
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Compile-time interface check.
var _ PostRepository = (*postRepository)(nil)

// UpdateMediaFields writes processed media metadata onto a post. A missing
// post is not an error: the job outlives its post when the user deletes the
// post mid-processing, and the artifact simply stays orphaned in storage.
func (r *postRepository) UpdateMediaFields(ctx context.Context, postID models.ULID, fields models.PostMediaFields) error {
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(map[string]interface{}{
			"media_url":              fields.MediaURL,
			"media_thumbnail_url":    fields.MediaThumbnailURL,
			"media_duration_seconds": fields.MediaDurationSeconds,
			"media_width":            fields.MediaWidth,
			"media_height":           fields.MediaHeight,
		}).Error
	if err != nil {
		return fmt.Errorf("updating post media fields for %s: %w", postID, err)
	}
	return nil
}
