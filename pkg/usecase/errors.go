package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Not found errors
	ErrUserNotFound = errors.New("user not found")

	// Authentication errors
	ErrUnauthenticated = errors.New("authentication required")

	// Validation errors
	ErrInvalidMessage   = errors.New("invalid message")
	ErrMessageConflict  = errors.New("message id already in use")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrInvalidPlatform  = errors.New("invalid platform")
	ErrMissingAuthCode  = errors.New("missing authorization code")
	ErrPlatformDisabled = errors.New("platform is not configured")
)

// Context keys for error values
const (
	UserIDKey   = "user_id"
	PlatformKey = "platform"
)
