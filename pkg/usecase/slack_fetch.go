package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/model/config"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	"github.com/secmon-lab/msghub/pkg/service/slack"
	"github.com/secmon-lab/msghub/pkg/utils/backoff"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
	"golang.org/x/time/rate"
)

const unknownSender = "Unknown"

// SlackFetcher polls the newest messages of a user's Slack conversations
type SlackFetcher struct {
	repo    interfaces.Repository
	clients slack.Factory
	gate    *MessageUseCase
	cfg     config.Sync
}

var _ Fetcher = &SlackFetcher{}

func NewSlackFetcher(repo interfaces.Repository, clients slack.Factory, gate *MessageUseCase, cfg config.Sync) *SlackFetcher {
	return &SlackFetcher{
		repo:    repo,
		clients: clients,
		gate:    gate,
		cfg:     cfg,
	}
}

func (f *SlackFetcher) Platform() types.Platform {
	return types.PlatformSlack
}

// Fetch returns the newly persisted messages. Failures are logged and yield an empty list.
func (f *SlackFetcher) Fetch(ctx context.Context, userID model.UserID) []*model.Message {
	logger := logging.From(ctx).With(UserIDKey, userID, PlatformKey, types.PlatformSlack)

	cred, err := f.repo.Credential().Get(ctx, userID, types.PlatformSlack)
	if err != nil {
		logger.Error("failed to get Slack credential", "error", err.Error())
		return []*model.Message{}
	}
	if cred == nil {
		logger.Debug("no Slack credential")
		return []*model.Message{}
	}

	client, err := f.clients.New(cred.PreferredToken())
	if err != nil {
		logger.Error("failed to create Slack client", "error", err.Error())
		return []*model.Message{}
	}

	var identity *slack.Identity
	if err := f.cfg.Backoff.Do(ctx, func(ctx context.Context) error {
		var err error
		identity, err = client.AuthTest(ctx)
		return err
	}); err != nil {
		logger.Warn("Slack token is invalid", "error", err.Error(), "slack_error", slack.ErrorCode(err))
		return []*model.Message{}
	}
	logger = logger.With("slack_team_id", identity.TeamID, "slack_user_id", identity.UserID)

	if err := f.cfg.Backoff.Do(ctx, client.CheckConversationAccess); err != nil {
		logger.Warn("Slack token cannot list conversations",
			"error", err.Error(),
			"slack_error", slack.ErrorCode(err),
			"granted_scopes", strings.Join(grantedScopes(cred), ","),
			"required_scopes", strings.Join(slack.RequiredUserScopes, ","))
		return []*model.Message{}
	}

	var conversations []slack.Conversation
	if err := f.cfg.Backoff.Do(ctx, func(ctx context.Context) error {
		var err error
		conversations, err = client.ListConversations(ctx, f.cfg.ConversationLimit)
		return err
	}); err != nil {
		logger.Warn("failed to list Slack conversations", "error", err.Error(), "slack_error", slack.ErrorCode(err))
		return []*model.Message{}
	}
	if len(conversations) > f.cfg.ConversationLimit {
		conversations = conversations[:f.cfg.ConversationLimit]
	}

	cooldown := rate.NewLimiter(rate.Every(f.cfg.ConversationCooldown), 1)
	cooldown.Allow() // the first history call waits a full cooldown too

	var candidates []*model.Message
	for _, conv := range conversations {
		if err := cooldown.Wait(ctx); err != nil {
			logger.Warn("Slack fetch interrupted", "error", err.Error())
			break
		}

		var history []slack.Message
		err := f.cfg.Backoff.Do(ctx, func(ctx context.Context) error {
			var err error
			history, err = client.History(ctx, conv.ID, f.cfg.MessageLimit)
			return err
		})
		if err != nil {
			if backoff.IsRateLimited(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("stop reading Slack conversations", "channel_id", conv.ID, "error", err.Error())
				break
			}
			logger.Warn("failed to read Slack conversation", "channel_id", conv.ID, "error", err.Error(), "slack_error", slack.ErrorCode(err))
			continue
		}

		for _, msg := range history {
			candidate, err := slackCandidate(userID, msg)
			if err != nil {
				logger.Warn("skipping Slack message", "channel_id", conv.ID, "error", err.Error())
				continue
			}
			if candidate != nil {
				candidates = append(candidates, candidate)
			}
		}
	}

	if len(candidates) == 0 {
		return []*model.Message{}
	}

	inserted, err := f.gate.PersistNew(ctx, candidates)
	if err != nil {
		logger.Error("failed to persist Slack messages", "error", err.Error())
		return []*model.Message{}
	}

	logger.Info("Slack fetch completed",
		"conversations", len(conversations),
		"candidates", len(candidates),
		"inserted", len(inserted))
	return inserted
}

// slackCandidate returns nil for bot and empty messages
func slackCandidate(userID model.UserID, msg slack.Message) (*model.Message, error) {
	if msg.BotID != "" || msg.Text == "" {
		return nil, nil
	}

	ts, err := parseSlackTimestamp(msg.Timestamp)
	if err != nil {
		return nil, err
	}

	sender := msg.User
	if sender == "" {
		sender = unknownSender
	}

	candidate := model.NewMessage(userID, types.PlatformSlack, msg.Timestamp, msg.Text, sender, ts)
	candidate.ThreadID = msg.ThreadTimestamp
	return candidate, nil
}

// parseSlackTimestamp converts "1700000000.123456" into an instant
func parseSlackTimestamp(ts string) (time.Time, error) {
	secPart, fracPart, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "invalid Slack timestamp", goerr.V("ts", ts))
	}

	var nsec int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		frac, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, goerr.Wrap(err, "invalid Slack timestamp", goerr.V("ts", ts))
		}
		for i := len(fracPart); i < 9; i++ {
			frac *= 10
		}
		nsec = frac
	}

	return time.Unix(sec, nsec).UTC(), nil
}

func grantedScopes(cred *model.Credential) []string {
	if cred.UserAccessToken != "" {
		return cred.UserScopes
	}
	return cred.Scopes
}
