package interfaces

import (
	"context"

	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
)

// CredentialRepository stores one platform link per (user, platform) and the
// routing keys that map external accounts back to users.
type CredentialRepository interface {
	// Put upserts on (UserID, Platform) and records cred.RoutingKeys() for the user
	Put(ctx context.Context, cred *model.Credential) error

	// Get returns nil, nil when the user has not linked the platform
	Get(ctx context.Context, userID model.UserID, platform types.Platform) (*model.Credential, error)

	ListByUser(ctx context.Context, userID model.UserID) ([]*model.Credential, error)

	// FindUserByRoutingKey returns "" when no credential registered the key
	FindUserByRoutingKey(ctx context.Context, platform types.Platform, key string) (model.UserID, error)

	// ListByPlatform returns at most limit credentials for the platform. limit <= 0 means no limit.
	ListByPlatform(ctx context.Context, platform types.Platform, limit int) ([]*model.Credential, error)
}
