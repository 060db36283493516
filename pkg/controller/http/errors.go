package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/secmon-lab/msghub/pkg/usecase"
	"github.com/secmon-lab/msghub/pkg/utils/errutil"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, usecase.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, usecase.ErrUserNotFound),
		errors.Is(err, usecase.ErrPlatformDisabled):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrInvalidMessage),
		errors.Is(err, usecase.ErrMessageConflict),
		errors.Is(err, usecase.ErrInvalidPayload),
		errors.Is(err, usecase.ErrInvalidPlatform),
		errors.Is(err, usecase.ErrMissingAuthCode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes err with the status of its sentinel
func handleError(ctx context.Context, w http.ResponseWriter, err error) {
	errutil.HandleHTTP(ctx, w, err, statusOf(err))
}
