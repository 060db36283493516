package oauth

import (
	"context"
	"strings"

	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
)

// Provider runs the authorization code flow for one platform
type Provider interface {
	Platform() types.Platform
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Grant, error)
}

// Grant is what a platform hands back after consent
type Grant struct {
	Platform        types.Platform
	AccessToken     string `masq:"secret"`
	UserAccessToken string `masq:"secret"`
	Scopes          []string
	UserScopes      []string

	ExternalAccountID string
	ExternalTeamID    string
	ExternalLogin     string
}

// Credential binds the grant to a user. Re-consent overwrites the tokens of an existing link.
func (g *Grant) Credential(userID model.UserID) *model.Credential {
	return &model.Credential{
		UserID:            userID,
		Platform:          g.Platform,
		AccessToken:       g.AccessToken,
		UserAccessToken:   g.UserAccessToken,
		Scopes:            g.Scopes,
		UserScopes:        g.UserScopes,
		ExternalAccountID: g.ExternalAccountID,
		ExternalTeamID:    g.ExternalTeamID,
		ExternalLogin:     g.ExternalLogin,
	}
}

func splitScopes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}
