package sql

import (
	"strings"
	"time"

	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/model/auth"
	"github.com/secmon-lab/msghub/pkg/domain/types"
)

func allModels() []any {
	return []any{
		&userModel{},
		&credentialModel{},
		&accountLinkModel{},
		&messageModel{},
		&tokenModel{},
	}
}

type userModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Email     string `gorm:"uniqueIndex;not null;size:255"`
	Name      string `gorm:"size:255"`
	CreatedAt time.Time
}

func (userModel) TableName() string {
	return "users"
}

func (m *userModel) toDomain() *model.User {
	return &model.User{
		ID:        model.UserID(m.ID),
		Email:     m.Email,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
}

type credentialModel struct {
	UserID            string `gorm:"primaryKey;size:64"`
	Platform          string `gorm:"primaryKey;size:16;index"`
	AccessToken       string `gorm:"type:text"`
	UserAccessToken   string `gorm:"type:text"`
	Scopes            string `gorm:"type:text"`
	UserScopes        string `gorm:"type:text"`
	ExternalAccountID string `gorm:"size:255"`
	ExternalTeamID    string `gorm:"size:255"`
	ExternalLogin     string `gorm:"size:255"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (credentialModel) TableName() string {
	return "credentials"
}

func toCredentialModel(c *model.Credential) *credentialModel {
	return &credentialModel{
		UserID:            c.UserID.String(),
		Platform:          c.Platform.String(),
		AccessToken:       c.AccessToken,
		UserAccessToken:   c.UserAccessToken,
		Scopes:            strings.Join(c.Scopes, ","),
		UserScopes:        strings.Join(c.UserScopes, ","),
		ExternalAccountID: c.ExternalAccountID,
		ExternalTeamID:    c.ExternalTeamID,
		ExternalLogin:     c.ExternalLogin,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func (m *credentialModel) toDomain() *model.Credential {
	return &model.Credential{
		UserID:            model.UserID(m.UserID),
		Platform:          types.Platform(m.Platform),
		AccessToken:       m.AccessToken,
		UserAccessToken:   m.UserAccessToken,
		Scopes:            splitScopes(m.Scopes),
		UserScopes:        splitScopes(m.UserScopes),
		ExternalAccountID: m.ExternalAccountID,
		ExternalTeamID:    m.ExternalTeamID,
		ExternalLogin:     m.ExternalLogin,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func splitScopes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// accountLinkModel maps an external identifier to the user who linked it
type accountLinkModel struct {
	Platform string `gorm:"primaryKey;size:16"`
	LinkKey  string `gorm:"primaryKey;size:255"`
	UserID   string `gorm:"not null;size:64;index"`
}

func (accountLinkModel) TableName() string {
	return "account_links"
}

type messageModel struct {
	ID         string    `gorm:"primaryKey;size:64"`
	UserID     string    `gorm:"not null;size:64;index:idx_messages_user_sent,priority:1"`
	Platform   string    `gorm:"not null;size:16;uniqueIndex:idx_messages_dedup,priority:1"`
	ExternalID string    `gorm:"not null;size:255;uniqueIndex:idx_messages_dedup,priority:2"`
	Content    string    `gorm:"type:text;not null"`
	Sender     string    `gorm:"not null;size:255"`
	SentAt     time.Time `gorm:"not null;index:idx_messages_user_sent,priority:2"`
	ThreadID   string    `gorm:"size:255"`
	CreatedAt  time.Time
}

func (messageModel) TableName() string {
	return "messages"
}

func toMessageModel(m *model.Message) *messageModel {
	return &messageModel{
		ID:         m.ID.String(),
		UserID:     m.UserID.String(),
		Platform:   m.Platform.String(),
		ExternalID: m.ExternalID,
		Content:    m.Content,
		Sender:     m.Sender,
		SentAt:     m.Timestamp,
		ThreadID:   m.ThreadID,
		CreatedAt:  m.CreatedAt,
	}
}

func (m *messageModel) toDomain() *model.Message {
	return &model.Message{
		ID:         model.MessageID(m.ID),
		UserID:     model.UserID(m.UserID),
		Platform:   types.Platform(m.Platform),
		Content:    m.Content,
		Sender:     m.Sender,
		Timestamp:  m.SentAt.UTC(),
		ExternalID: m.ExternalID,
		ThreadID:   m.ThreadID,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

type tokenModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Secret    string `gorm:"not null;size:128"`
	Sub       string `gorm:"not null;size:255"`
	Email     string `gorm:"size:255"`
	Name      string `gorm:"size:255"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (tokenModel) TableName() string {
	return "tokens"
}

func (m *tokenModel) toDomain() *auth.Token {
	return &auth.Token{
		ID:        auth.TokenID(m.ID),
		Secret:    auth.TokenSecret(m.Secret),
		Sub:       m.Sub,
		Email:     m.Email,
		Name:      m.Name,
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
	}
}
