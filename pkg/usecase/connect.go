package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	"github.com/secmon-lab/msghub/pkg/service/oauth"
	"github.com/secmon-lab/msghub/pkg/utils/async"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
)

// ConnectUseCase links platform accounts to users through OAuth
type ConnectUseCase struct {
	repo      interfaces.Repository
	providers map[types.Platform]oauth.Provider
	sync      *SyncUseCase
}

func NewConnectUseCase(repo interfaces.Repository, sync *SyncUseCase, providers ...oauth.Provider) *ConnectUseCase {
	uc := &ConnectUseCase{
		repo:      repo,
		providers: make(map[types.Platform]oauth.Provider),
		sync:      sync,
	}
	for _, p := range providers {
		uc.providers[p.Platform()] = p
	}
	return uc
}

// Connection is a linked platform as shown to its owner. Tokens are never exposed.
type Connection struct {
	Platform   types.Platform `json:"platform"`
	ID         string         `json:"id"`
	HasToken   bool           `json:"hasToken"`
	Scopes     []string       `json:"scopes"`
	UserScopes []string       `json:"userScopes,omitempty"`
}

func (uc *ConnectUseCase) provider(platform string) (oauth.Provider, error) {
	p, err := types.ParsePlatform(platform)
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidPlatform, "unknown platform", goerr.V(PlatformKey, platform))
	}
	provider, ok := uc.providers[p]
	if !ok {
		return nil, goerr.Wrap(ErrPlatformDisabled, "OAuth is not configured for platform", goerr.V(PlatformKey, p))
	}
	return provider, nil
}

// AuthCodeURL returns the consent page URL of the platform
func (uc *ConnectUseCase) AuthCodeURL(platform, state string) (string, error) {
	provider, err := uc.provider(platform)
	if err != nil {
		return "", err
	}
	return provider.AuthCodeURL(state), nil
}

// HandleCallback exchanges the code, stores the credential and starts an initial sync in background.
func (uc *ConnectUseCase) HandleCallback(ctx context.Context, userID model.UserID, platform, code string) (*model.Credential, error) {
	provider, err := uc.provider(platform)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, goerr.Wrap(ErrMissingAuthCode, "OAuth callback without code", goerr.V(PlatformKey, platform))
	}

	user, err := uc.repo.User().Get(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, userID))
	}
	if user == nil {
		return nil, goerr.Wrap(ErrUserNotFound, "user does not exist", goerr.V(UserIDKey, userID))
	}

	grant, err := provider.Exchange(ctx, code)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to exchange authorization code", goerr.V(PlatformKey, platform))
	}

	cred := grant.Credential(userID)
	if err := cred.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid credential from OAuth grant", goerr.V(PlatformKey, platform))
	}
	if err := uc.repo.Credential().Put(ctx, cred); err != nil {
		return nil, goerr.Wrap(err, "failed to save credential", goerr.V(UserIDKey, userID), goerr.V(PlatformKey, platform))
	}

	logging.From(ctx).Info("platform account linked",
		UserIDKey, userID,
		PlatformKey, cred.Platform,
		"external_account_id", cred.ExternalAccountID,
		"routing_keys", cred.RoutingKeys())

	if uc.sync != nil {
		async.Dispatch(ctx, func(ctx context.Context) error {
			_, err := uc.sync.SyncAll(ctx, userID)
			return err
		})
	}

	return cred, nil
}

// ListConnections returns the platforms linked by the user
func (uc *ConnectUseCase) ListConnections(ctx context.Context, userID model.UserID) ([]*Connection, error) {
	creds, err := uc.repo.Credential().ListByUser(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list credentials", goerr.V(UserIDKey, userID))
	}

	conns := make([]*Connection, 0, len(creds))
	for _, c := range creds {
		conns = append(conns, &Connection{
			Platform:   c.Platform,
			ID:         c.ExternalAccountID,
			HasToken:   c.AccessToken != "" || c.UserAccessToken != "",
			Scopes:     c.Scopes,
			UserScopes: c.UserScopes,
		})
	}
	return conns, nil
}
