package interfaces

import (
	"context"

	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
)

// MessageRepository persists messages unique on (Platform, ExternalID)
type MessageRepository interface {
	// ExistingIDs returns the subset of externalIDs already stored for the platform
	ExistingIDs(ctx context.Context, platform types.Platform, externalIDs []string) (map[string]struct{}, error)

	// InsertNew inserts msgs as one batch and returns the ones actually inserted.
	// Messages whose (Platform, ExternalID) already exists, either in the store or
	// earlier in msgs, are skipped without error.
	InsertNew(ctx context.Context, msgs []*model.Message) ([]*model.Message, error)

	// Get returns nil, nil when not found
	Get(ctx context.Context, platform types.Platform, externalID string) (*model.Message, error)

	// ListByUser returns the user's messages newest first by Timestamp
	ListByUser(ctx context.Context, userID model.UserID, limit int) ([]*model.Message, error)
}
