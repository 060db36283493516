package sql

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Maximum bind parameters per IN clause
const inClauseLimit = 500

type messageRepository struct {
	db *gorm.DB
}

var _ interfaces.MessageRepository = &messageRepository{}

func (r *messageRepository) ExistingIDs(ctx context.Context, platform types.Platform, externalIDs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})

	for i := 0; i < len(externalIDs); i += inClauseLimit {
		end := min(i+inClauseLimit, len(externalIDs))

		var found []string
		err := r.db.WithContext(ctx).
			Model(&messageModel{}).
			Where("platform = ? AND external_id IN ?", platform.String(), externalIDs[i:end]).
			Pluck("external_id", &found).Error
		if err != nil {
			return nil, goerr.Wrap(err, "failed to check existing messages", goerr.V("platform", platform))
		}
		for _, id := range found {
			existing[id] = struct{}{}
		}
	}

	return existing, nil
}

// InsertNew inserts each row with ON CONFLICT DO NOTHING inside one transaction.
// A row counts as inserted only when the statement affected it.
func (r *messageRepository) InsertNew(ctx context.Context, msgs []*model.Message) ([]*model.Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	for _, msg := range msgs {
		if err := msg.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid message")
		}
	}

	var inserted []*model.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted = make([]*model.Message, 0, len(msgs))
		for _, msg := range msgs {
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(toMessageModel(msg))
			if result.Error != nil {
				return goerr.Wrap(result.Error, "failed to insert message",
					goerr.V("platform", msg.Platform),
					goerr.V("external_id", msg.ExternalID))
			}
			if result.RowsAffected == 1 {
				inserted = append(inserted, msg)
			}
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert messages", goerr.V("count", len(msgs)))
	}

	return inserted, nil
}

func (r *messageRepository) Get(ctx context.Context, platform types.Platform, externalID string) (*model.Message, error) {
	var m messageModel
	err := r.db.WithContext(ctx).
		Where("platform = ? AND external_id = ?", platform.String(), externalID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get message", goerr.V("platform", platform), goerr.V("external_id", externalID))
	}
	return m.toDomain(), nil
}

func (r *messageRepository) ListByUser(ctx context.Context, userID model.UserID, limit int) ([]*model.Message, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("sent_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []*messageModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list messages", goerr.V("user_id", userID))
	}

	msgs := make([]*model.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toDomain())
	}
	return msgs, nil
}
