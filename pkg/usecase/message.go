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

// MessageListLimit caps the timeline returned by ListMessages
const MessageListLimit = 50

type MessageUseCase struct {
	repo interfaces.Repository
}

func NewMessageUseCase(repo interfaces.Repository) *MessageUseCase {
	return &MessageUseCase{repo: repo}
}

// PersistNew stores the candidates that are not stored yet and returns exactly those.
// Candidates already stored, repeated within the input, or inserted concurrently by
// another caller are skipped without error. Invalid candidates are logged and dropped.
func (uc *MessageUseCase) PersistNew(ctx context.Context, candidates []*model.Message) ([]*model.Message, error) {
	logger := logging.From(ctx)

	seen := make(map[string]struct{}, len(candidates))
	byPlatform := make(map[types.Platform][]*model.Message)
	for _, msg := range candidates {
		if msg == nil {
			continue
		}
		if err := msg.Validate(); err != nil {
			logger.Warn("dropping invalid message", "error", err.Error())
			continue
		}

		key := msg.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		byPlatform[msg.Platform] = append(byPlatform[msg.Platform], msg)
	}

	var staged []*model.Message
	for _, platform := range types.AllPlatforms() {
		msgs := byPlatform[platform]
		if len(msgs) == 0 {
			continue
		}

		ids := make([]string, len(msgs))
		for i, msg := range msgs {
			ids[i] = msg.ExternalID
		}

		existing, err := uc.repo.Message().ExistingIDs(ctx, platform, ids)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to check existing messages", goerr.V(PlatformKey, platform), goerr.V("count", len(ids)))
		}

		for _, msg := range msgs {
			if _, ok := existing[msg.ExternalID]; ok {
				continue
			}
			staged = append(staged, msg)
		}
	}

	if len(staged) == 0 {
		return []*model.Message{}, nil
	}

	inserted, err := uc.repo.Message().InsertNew(ctx, staged)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert messages", goerr.V("count", len(staged)))
	}

	logger.Debug("persisted messages",
		"candidates", len(candidates),
		"staged", len(staged),
		"inserted", len(inserted))

	return inserted, nil
}

// MessageList is the timeline of one user
type MessageList struct {
	Messages []*model.Message
	User     *model.User
}

// ListMessages returns the newest MessageListLimit messages of the user
func (uc *MessageUseCase) ListMessages(ctx context.Context, userID model.UserID) (*MessageList, error) {
	user, err := uc.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	msgs, err := uc.repo.Message().ListByUser(ctx, userID, MessageListLimit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list messages", goerr.V(UserIDKey, userID))
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}

	return &MessageList{Messages: msgs, User: user}, nil
}

// IngestInput is a message submitted directly by a signed-in client
type IngestInput struct {
	Platform  string
	Content   string
	Sender    string
	MessageID string
	ThreadID  string
	Timestamp *time.Time
}

func (x IngestInput) Validate() error {
	if x.Platform == "" || x.Content == "" || x.Sender == "" || x.MessageID == "" {
		return goerr.Wrap(ErrInvalidMessage, "missing required fields: platform, content, sender, messageId")
	}
	if _, err := types.ParsePlatform(x.Platform); err != nil {
		return goerr.Wrap(ErrInvalidMessage, "invalid platform", goerr.V(PlatformKey, x.Platform))
	}
	return nil
}

// Ingest stores one message for the user through the same gate as polling and webhooks.
// When the user already owns the message the stored one is returned; a message id
// owned by someone else fails with ErrMessageConflict.
func (uc *MessageUseCase) Ingest(ctx context.Context, userID model.UserID, input IngestInput) (*model.Message, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if _, err := uc.getUser(ctx, userID); err != nil {
		return nil, err
	}

	platform, _ := types.ParsePlatform(input.Platform)
	ts := time.Now()
	if input.Timestamp != nil && !input.Timestamp.IsZero() {
		ts = *input.Timestamp
	}

	msg := model.NewMessage(userID, platform, input.MessageID, input.Content, input.Sender, ts)
	msg.ThreadID = input.ThreadID

	inserted, err := uc.PersistNew(ctx, []*model.Message{msg})
	if err != nil {
		return nil, err
	}
	if len(inserted) == 1 {
		return inserted[0], nil
	}

	existing, err := uc.repo.Message().Get(ctx, platform, input.MessageID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get existing message", goerr.V(PlatformKey, platform), goerr.V("message_id", input.MessageID))
	}
	if existing == nil {
		return nil, goerr.New("message was neither inserted nor found", goerr.V(PlatformKey, platform), goerr.V("message_id", input.MessageID))
	}
	if existing.UserID != userID {
		return nil, goerr.Wrap(ErrMessageConflict, "message id is taken by another user", goerr.V(PlatformKey, platform), goerr.V("message_id", input.MessageID), goerr.V(UserIDKey, userID))
	}
	return existing, nil
}

func (uc *MessageUseCase) getUser(ctx context.Context, userID model.UserID) (*model.User, error) {
	user, err := uc.repo.User().Get(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, userID))
	}
	if user == nil {
		return nil, goerr.Wrap(ErrUserNotFound, "user does not exist", goerr.V(UserIDKey, userID))
	}
	return user, nil
}
