package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/usecase"
	"github.com/secmon-lab/msghub/pkg/utils/errutil"
	"github.com/secmon-lab/msghub/pkg/utils/safe"
)

const (
	slackSignatureMaxAge = 5 * time.Minute

	// maxWebhookBodySize caps inbound webhook deliveries
	maxWebhookBodySize = 1 << 20
)

func readWebhookBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read request body", goerr.V("limit", maxWebhookBodySize))
	}
	return body, nil
}

// verifySlackSignature verifies the Slack request signature
func verifySlackSignature(signingSecret, timestamp, signature string, body []byte) error {
	if timestamp == "" {
		return goerr.New("missing timestamp")
	}
	if signature == "" {
		return goerr.New("missing signature")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return goerr.Wrap(err, "invalid timestamp")
	}

	now := time.Now().Unix()
	skew := now - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(slackSignatureMaxAge.Seconds()) {
		return goerr.New("timestamp outside the allowed window", goerr.V("timestamp", timestamp), goerr.V("now", now))
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	if _, err := fmt.Fprintf(mac, "v0:%s:%s", timestamp, body); err != nil {
		return goerr.Wrap(err, "failed to compute HMAC")
	}
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return goerr.New("signature mismatch")
	}
	return nil
}

// SlackSignatureMiddleware rejects requests whose X-Slack-Signature does not match the body
func SlackSignatureMiddleware(signingSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := readWebhookBody(w, r)
			if err != nil {
				errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
				return
			}
			safe.Close(ctx, r.Body)

			timestamp := r.Header.Get("X-Slack-Request-Timestamp")
			signature := r.Header.Get("X-Slack-Signature")
			if err := verifySlackSignature(signingSecret, timestamp, signature, body); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "slack signature verification failed"), http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// slackWebhookHandler answers challenges and ingests message events within the request
func slackWebhookHandler(webhookUC *usecase.WebhookUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := readWebhookBody(w, r)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
			return
		}

		result, err := webhookUC.HandleSlackPayload(ctx, body)
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, result)
	}
}
