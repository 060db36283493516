package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
)

type messageRepository struct {
	mu       sync.RWMutex
	messages map[string]model.Message // key = DedupKey
	byUser   map[model.UserID][]string
}

var _ interfaces.MessageRepository = &messageRepository{}

func newMessageRepository() *messageRepository {
	return &messageRepository{
		messages: make(map[string]model.Message),
		byUser:   make(map[model.UserID][]string),
	}
}

func (r *messageRepository) ExistingIDs(ctx context.Context, platform types.Platform, externalIDs []string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	existing := make(map[string]struct{})
	for _, id := range externalIDs {
		if _, ok := r.messages[model.DedupKey(platform, id)]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (r *messageRepository) InsertNew(ctx context.Context, msgs []*model.Message) ([]*model.Message, error) {
	for _, msg := range msgs {
		if err := msg.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid message")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := make([]*model.Message, 0, len(msgs))
	for _, msg := range msgs {
		key := msg.DedupKey()
		if _, ok := r.messages[key]; ok {
			continue
		}
		r.messages[key] = *msg
		r.byUser[msg.UserID] = append(r.byUser[msg.UserID], key)
		inserted = append(inserted, msg)
	}
	return inserted, nil
}

func (r *messageRepository) Get(ctx context.Context, platform types.Platform, externalID string) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.messages[model.DedupKey(platform, externalID)]
	if !ok {
		return nil, nil
	}
	return &msg, nil
}

func (r *messageRepository) ListByUser(ctx context.Context, userID model.UserID, limit int) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.byUser[userID]
	msgs := make([]*model.Message, 0, len(keys))
	for _, key := range keys {
		msg := r.messages[key]
		msgs = append(msgs, &msg)
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.After(msgs[j].Timestamp)
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}
