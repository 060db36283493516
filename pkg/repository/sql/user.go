package sql

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

var _ interfaces.UserRepository = &userRepository{}

func (r *userRepository) Put(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user")
	}

	m := &userModel{
		ID:        user.ID.String(),
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	}
	// Save upserts on the primary key; the unique email index rejects a second owner
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return goerr.Wrap(err, "failed to put user", goerr.V("user_id", user.ID), goerr.V("email", user.Email))
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id model.UserID) (*model.User, error) {
	return r.first(ctx, "id = ?", id.String())
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *userRepository) first(ctx context.Context, query string, arg any) (*model.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("query", query), goerr.V("arg", arg))
	}
	return m.toDomain(), nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	var rows []*userModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list users")
	}

	users := make([]*model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	return users, nil
}
