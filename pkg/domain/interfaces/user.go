package interfaces

import (
	"context"

	"github.com/secmon-lab/msghub/pkg/domain/model"
)

// UserRepository stores msghub users. Users are created on first sign-in and never deleted.
type UserRepository interface {
	// Put creates or replaces a user
	Put(ctx context.Context, user *model.User) error

	// Get returns nil, nil when the user does not exist
	Get(ctx context.Context, id model.UserID) (*model.User, error)

	// GetByEmail returns nil, nil when no user has the email
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	List(ctx context.Context) ([]*model.User, error)
}
