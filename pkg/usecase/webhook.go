package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
)

// Webhook acknowledgement statuses
const (
	WebhookStatusOK      = "ok"
	WebhookStatusNoUser  = "no user"
	WebhookStatusNoEvent = "no event"
)

// WebhookResult is the acknowledgement body sent back to the platform
type WebhookResult struct {
	Challenge string `json:"challenge,omitempty"`
	Status    string `json:"status,omitempty"`
}

// WebhookUseCase turns a push delivery into at most one message
type WebhookUseCase struct {
	repo interfaces.Repository
	gate *MessageUseCase
	now  func() time.Time
}

func NewWebhookUseCase(repo interfaces.Repository, gate *MessageUseCase) *WebhookUseCase {
	return &WebhookUseCase{
		repo: repo,
		gate: gate,
		now:  time.Now,
	}
}

// resolveUser maps a delivery to a user. Routing keys recorded at link time are tried
// in order. When none matches, the delivery goes to the only user linked to the
// platform; with zero or several such users it is not routed.
func (uc *WebhookUseCase) resolveUser(ctx context.Context, platform types.Platform, keys ...string) (model.UserID, error) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		userID, err := uc.repo.Credential().FindUserByRoutingKey(ctx, platform, key)
		if err != nil {
			return "", goerr.Wrap(err, "failed to find user by routing key", goerr.V(PlatformKey, platform), goerr.V("key", key))
		}
		if userID != "" {
			return userID, nil
		}
	}

	creds, err := uc.repo.Credential().ListByPlatform(ctx, platform, 2)
	if err != nil {
		return "", goerr.Wrap(err, "failed to list credentials", goerr.V(PlatformKey, platform))
	}
	if len(creds) == 1 {
		logging.From(ctx).Info("routing webhook to the only linked user",
			PlatformKey, platform, UserIDKey, creds[0].UserID)
		return creds[0].UserID, nil
	}

	logging.From(ctx).Info("webhook not routed", PlatformKey, platform, "linked_users", len(creds), "keys", keys)
	return "", nil
}

func (uc *WebhookUseCase) persist(ctx context.Context, msg *model.Message) error {
	inserted, err := uc.gate.PersistNew(ctx, []*model.Message{msg})
	if err != nil {
		return err
	}

	logging.From(ctx).Info("webhook message processed",
		PlatformKey, msg.Platform,
		UserIDKey, msg.UserID,
		"message_id", msg.ExternalID,
		"inserted", len(inserted) == 1)
	return nil
}
