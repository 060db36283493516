package sql

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/model/auth"
	"gorm.io/gorm"
)

func (s *SQL) PutToken(ctx context.Context, token *auth.Token) error {
	if err := token.Validate(); err != nil {
		return goerr.Wrap(err, "invalid token")
	}

	m := &tokenModel{
		ID:        token.ID.String(),
		Secret:    token.Secret.String(),
		Sub:       token.Sub,
		Email:     token.Email,
		Name:      token.Name,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return goerr.Wrap(err, "failed to put token", goerr.V("token_id", token.ID))
	}
	return nil
}

func (s *SQL) GetToken(ctx context.Context, tokenID auth.TokenID) (*auth.Token, error) {
	if err := tokenID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid token ID")
	}

	var m tokenModel
	if err := s.db.WithContext(ctx).Where("id = ?", tokenID.String()).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(ErrNotFound, "token not found", goerr.V("token_id", tokenID))
		}
		return nil, goerr.Wrap(err, "failed to get token", goerr.V("token_id", tokenID))
	}
	return m.toDomain(), nil
}

func (s *SQL) DeleteToken(ctx context.Context, tokenID auth.TokenID) error {
	if err := tokenID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid token ID")
	}

	result := s.db.WithContext(ctx).Where("id = ?", tokenID.String()).Delete(&tokenModel{})
	if result.Error != nil {
		return goerr.Wrap(result.Error, "failed to delete token", goerr.V("token_id", tokenID))
	}
	if result.RowsAffected == 0 {
		return goerr.Wrap(ErrNotFound, "token not found", goerr.V("token_id", tokenID))
	}
	return nil
}
