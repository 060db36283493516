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

type credentialRepository struct {
	db *gorm.DB
}

var _ interfaces.CredentialRepository = &credentialRepository{}

func (r *credentialRepository) Put(ctx context.Context, cred *model.Credential) error {
	if err := cred.Validate(); err != nil {
		return goerr.Wrap(err, "invalid credential")
	}

	m := toCredentialModel(cred)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"access_token", "user_access_token", "scopes", "user_scopes",
				"external_account_id", "external_team_id", "external_login", "updated_at",
			}),
		}).Create(m).Error
		if err != nil {
			return goerr.Wrap(err, "failed to upsert credential")
		}

		// A re-link replaces every key the user held for this platform
		err = tx.Where("platform = ? AND user_id = ?", cred.Platform.String(), cred.UserID.String()).
			Delete(&accountLinkModel{}).Error
		if err != nil {
			return goerr.Wrap(err, "failed to delete stale account links")
		}

		for _, key := range cred.RoutingKeys() {
			link := &accountLinkModel{Platform: cred.Platform.String(), LinkKey: key, UserID: cred.UserID.String()}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "platform"}, {Name: "link_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"user_id"}),
			}).Create(link).Error
			if err != nil {
				return goerr.Wrap(err, "failed to upsert account link", goerr.V("key", key))
			}
		}
		return nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to put credential", goerr.V("user_id", cred.UserID), goerr.V("platform", cred.Platform))
	}
	return nil
}

func (r *credentialRepository) Get(ctx context.Context, userID model.UserID, platform types.Platform) (*model.Credential, error) {
	var m credentialModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID.String(), platform.String()).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get credential", goerr.V("user_id", userID), goerr.V("platform", platform))
	}
	return m.toDomain(), nil
}

func (r *credentialRepository) ListByUser(ctx context.Context, userID model.UserID) ([]*model.Credential, error) {
	var rows []*credentialModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("platform ASC").
		Find(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list credentials", goerr.V("user_id", userID))
	}
	return toCredentials(rows), nil
}

func (r *credentialRepository) ListByPlatform(ctx context.Context, platform types.Platform, limit int) ([]*model.Credential, error) {
	q := r.db.WithContext(ctx).
		Where("platform = ?", platform.String()).
		Order("user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []*credentialModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list credentials", goerr.V("platform", platform))
	}
	return toCredentials(rows), nil
}

func (r *credentialRepository) FindUserByRoutingKey(ctx context.Context, platform types.Platform, key string) (model.UserID, error) {
	if key == "" {
		return "", nil
	}

	var link accountLinkModel
	err := r.db.WithContext(ctx).
		Where("platform = ? AND link_key = ?", platform.String(), key).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", goerr.Wrap(err, "failed to get account link", goerr.V("platform", platform), goerr.V("key", key))
	}
	return model.UserID(link.UserID), nil
}

func toCredentials(rows []*credentialModel) []*model.Credential {
	creds := make([]*model.Credential, 0, len(rows))
	for _, row := range rows {
		creds = append(creds, row.toDomain())
	}
	return creds
}
