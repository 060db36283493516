package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/usecase"
)

type userResponse struct {
	ID    model.UserID `json:"id"`
	Email string       `json:"email"`
	Name  string       `json:"name"`
}

type messagesResponse struct {
	Messages []*model.Message `json:"messages"`
	User     userResponse     `json:"user"`
}

type ingestRequest struct {
	Platform  string          `json:"platform"`
	Content   string          `json:"content"`
	Sender    string          `json:"sender"`
	Timestamp json.RawMessage `json:"timestamp"`
	MessageID string          `json:"messageId"`
	ThreadID  string          `json:"threadId"`
}

// timestampLayouts are tried in order for string timestamps
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts epoch milliseconds or a date string. Null or absent yields nil.
func parseTimestamp(raw json.RawMessage) (*time.Time, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, goerr.Wrap(usecase.ErrInvalidMessage, "malformed timestamp", goerr.V("error", err.Error()))
		}
		if s == "" {
			return nil, nil
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return &ts, nil
			}
		}
		return nil, goerr.Wrap(usecase.ErrInvalidMessage, "unsupported timestamp format", goerr.V("timestamp", s))
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return nil, goerr.Wrap(usecase.ErrInvalidMessage, "timestamp must be a string or epoch milliseconds", goerr.V("timestamp", string(trimmed)))
	}
	ms, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return nil, goerr.Wrap(usecase.ErrInvalidMessage, "malformed timestamp", goerr.V("timestamp", string(trimmed)))
		}
		ms = int64(f)
	}
	ts := time.UnixMilli(ms).UTC()
	return &ts, nil
}

type messageResponse struct {
	Message *model.Message `json:"message"`
}

type syncResponse struct {
	Synced  int    `json:"synced"`
	Message string `json:"message"`
}

func listMessagesHandler(messageUC *usecase.MessageUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := sessionUserID(r)
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		list, err := messageUC.ListMessages(r.Context(), userID)
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, messagesResponse{
			Messages: list.Messages,
			User: userResponse{
				ID:    list.User.ID,
				Email: list.User.Email,
				Name:  list.User.Name,
			},
		})
	}
}

func ingestMessageHandler(messageUC *usecase.MessageUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := sessionUserID(r)
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handleError(r.Context(), w, goerr.Wrap(usecase.ErrInvalidMessage, "malformed request body", goerr.V("error", err.Error())))
			return
		}

		ts, err := parseTimestamp(req.Timestamp)
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		msg, err := messageUC.Ingest(r.Context(), userID, usecase.IngestInput{
			Platform:  req.Platform,
			Content:   req.Content,
			Sender:    req.Sender,
			MessageID: req.MessageID,
			ThreadID:  req.ThreadID,
			Timestamp: ts,
		})
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, messageResponse{Message: msg})
	}
}

func syncMessagesHandler(syncUC *usecase.SyncUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := sessionUserID(r)
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		synced, err := syncUC.SyncAll(r.Context(), userID)
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, syncResponse{
			Synced:  synced,
			Message: fmt.Sprintf("Synced %d new messages", synced),
		})
	}
}
