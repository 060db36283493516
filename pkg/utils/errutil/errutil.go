package errutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
)

// InternalErrorMessage is the body text of every 5xx response. Details stay in the log.
const InternalErrorMessage = "Internal server error"

type errorBody struct {
	Error string `json:"error"`
}

// Handle logs err together with its goerr values and stack, and reports it to Sentry when a client is configured.
func Handle(ctx context.Context, err error, msg string) {
	if err == nil {
		return
	}

	logging.From(ctx).Error(msg, attrs(err)...)
	capture(ctx, err, msg)
}

// HandleHTTP logs err and writes {"error": ...} with statusCode. 5xx responses never expose err to the client.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error, statusCode int) {
	if err == nil {
		return
	}

	body := errorBody{Error: err.Error()}
	if statusCode >= http.StatusInternalServerError {
		Handle(ctx, err, "HTTP error")
		body.Error = InternalErrorMessage
	} else {
		logging.From(ctx).Warn("HTTP client error", append([]any{"status", statusCode}, attrs(err)...)...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		logging.From(ctx).Error("failed to write error response", "error", encErr)
	}
}

func attrs(err error) []any {
	var ge *goerr.Error
	if errors.As(err, &ge) {
		return []any{
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		}
	}
	return []any{"error", err.Error()}
}

func capture(ctx context.Context, err error, msg string) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}

	hub = hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("message", msg)
		var ge *goerr.Error
		if errors.As(err, &ge) {
			scope.SetContext("goerr", sentry.Context(ge.Values()))
		}
		evID := hub.CaptureException(err)
		if evID != nil {
			logging.From(ctx).Info("error reported to sentry", "event_id", *evID)
		}
	})
}
