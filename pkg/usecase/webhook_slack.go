package usecase

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
	"github.com/slack-go/slack/slackevents"
)

type slackEnvelope struct {
	Challenge string          `json:"challenge"`
	Event     json.RawMessage `json:"event"`
}

// HandleSlackPayload answers URL verification challenges and ingests message events.
// Payloads that are not message events are acknowledged and ignored.
func (uc *WebhookUseCase) HandleSlackPayload(ctx context.Context, body []byte) (*WebhookResult, error) {
	var envelope slackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, goerr.Wrap(ErrInvalidPayload, "failed to decode Slack payload", goerr.V("error", err.Error()))
	}

	if envelope.Challenge != "" {
		return &WebhookResult{Challenge: envelope.Challenge}, nil
	}
	if len(envelope.Event) == 0 || string(envelope.Event) == "null" {
		return &WebhookResult{Status: WebhookStatusNoEvent}, nil
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		logging.From(ctx).Info("ignoring unparsable Slack event", "error", err.Error())
		return &WebhookResult{Status: WebhookStatusOK}, nil
	}

	return uc.HandleSlackEvent(ctx, &event)
}

// HandleSlackEvent ingests a message event with text that was not posted by a bot
func (uc *WebhookUseCase) HandleSlackEvent(ctx context.Context, event *slackevents.EventsAPIEvent) (*WebhookResult, error) {
	if event.Type != slackevents.CallbackEvent {
		return &WebhookResult{Status: WebhookStatusOK}, nil
	}

	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || ev.Text == "" || ev.BotID != "" {
		return &WebhookResult{Status: WebhookStatusOK}, nil
	}

	userID, err := uc.resolveUser(ctx, types.PlatformSlack, event.TeamID, ev.User)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return &WebhookResult{Status: WebhookStatusNoUser}, nil
	}

	ts, err := parseSlackTimestamp(ev.TimeStamp)
	if err != nil {
		logging.From(ctx).Warn("ignoring Slack message with invalid timestamp", "error", err.Error())
		return &WebhookResult{Status: WebhookStatusOK}, nil
	}

	sender := ev.User
	if sender == "" {
		sender = unknownSender
	}

	msg := model.NewMessage(userID, types.PlatformSlack, ev.TimeStamp+"_"+ev.User, ev.Text, sender, ts)
	msg.ThreadID = ev.ThreadTimeStamp

	if err := uc.persist(ctx, msg); err != nil {
		return nil, err
	}
	return &WebhookResult{Status: WebhookStatusOK}, nil
}
