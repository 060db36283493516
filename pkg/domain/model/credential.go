package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/types"
)

// Credential links one platform account to one user.
// Slack's OAuth v2 flow yields a bot token and a user token; they are kept in
// AccessToken and UserAccessToken respectively. GitHub only uses AccessToken.
type Credential struct {
	UserID   UserID
	Platform types.Platform

	AccessToken     string `masq:"secret"`
	UserAccessToken string `masq:"secret"`
	Scopes          []string
	UserScopes      []string

	ExternalAccountID string // Slack user ID or GitHub numeric account ID
	ExternalTeamID    string // Slack workspace ID
	ExternalLogin     string // GitHub login

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PreferredToken returns the user-scoped token when present, else the primary token.
func (c *Credential) PreferredToken() string {
	if c.UserAccessToken != "" {
		return c.UserAccessToken
	}
	return c.AccessToken
}

// RoutingKeys returns external identifiers that route webhook deliveries to this credential's user.
func (c *Credential) RoutingKeys() []string {
	var keys []string
	switch c.Platform {
	case types.PlatformSlack:
		keys = appendNonEmpty(keys, c.ExternalTeamID, c.ExternalAccountID)
	case types.PlatformGitHub:
		keys = appendNonEmpty(keys, c.ExternalAccountID, c.ExternalLogin)
	}
	return keys
}

// StaleRoutingKeys returns keys of prev that next no longer carries.
func StaleRoutingKeys(prev, next *Credential) []string {
	current := make(map[string]struct{})
	for _, k := range next.RoutingKeys() {
		current[k] = struct{}{}
	}

	var stale []string
	for _, k := range prev.RoutingKeys() {
		if _, ok := current[k]; !ok {
			stale = append(stale, k)
		}
	}
	return stale
}

func (c *Credential) Validate() error {
	if c.UserID == "" {
		return goerr.New("credential user ID is required")
	}
	if err := c.Platform.Validate(); err != nil {
		return goerr.Wrap(err, "invalid credential platform", goerr.V("user_id", c.UserID))
	}
	if c.AccessToken == "" && c.UserAccessToken == "" {
		return goerr.New("credential has no token", goerr.V("user_id", c.UserID), goerr.V("platform", c.Platform))
	}
	return nil
}

func appendNonEmpty(dst []string, values ...string) []string {
	for _, v := range values {
		if v != "" {
			dst = append(dst, v)
		}
	}
	return dst
}
