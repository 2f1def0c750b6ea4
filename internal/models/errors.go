package models

import "errors"

// Common validation errors for models.
var (
	// ErrMediaTypeInvalid indicates an unknown media type.
	ErrMediaTypeInvalid = errors.New("media type must be 'video' or 'audio'")

	// ErrRawFileKeyRequired indicates a required raw file key is empty.
	ErrRawFileKeyRequired = errors.New("raw file key is required")

	// ErrUserIDRequired indicates a required user ID field is zero.
	ErrUserIDRequired = errors.New("user_id is required")

	// ErrSuperseded indicates a terminal write lost to a stale reclaim:
	// another worker claimed the job after this worker's attempt was swept.
	ErrSuperseded = errors.New("job attempt superseded by a newer claim")
)
