package http

import (
	"errors"
	"net/http"

	gh "github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/usecase"
	"github.com/secmon-lab/msghub/pkg/utils/errutil"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
)

// githubWebhookHandler ingests a GitHub delivery. When secret is set the
// X-Hub-Signature-256 header must match the body.
func githubWebhookHandler(webhookUC *usecase.WebhookUseCase, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body []byte
		var err error
		if secret != "" {
			r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
			body, err = gh.ValidatePayload(r, []byte(secret))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "github delivery too large", goerr.V("limit", maxWebhookBodySize)), http.StatusBadRequest)
					return
				}
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "github signature verification failed"), http.StatusUnauthorized)
				return
			}
		} else {
			body, err = readWebhookBody(w, r)
			if err != nil {
				errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
				return
			}
		}

		logging.From(ctx).Debug("github delivery received",
			"event", gh.WebHookType(r),
			"delivery", gh.DeliveryID(r))

		result, err := webhookUC.HandleGitHubPayload(ctx, body)
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, result)
	}
}
