package oauth

import (
	"context"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	slackservice "github.com/secmon-lab/msghub/pkg/service/slack"
	"github.com/slack-go/slack"
	"golang.org/x/oauth2"
)

var slackEndpoint = oauth2.Endpoint{
	AuthURL:  "https://slack.com/oauth/v2/authorize",
	TokenURL: slack.APIURL + "oauth.v2.access",
}

// SlackBotScopes are requested for the bot token
var SlackBotScopes = []string{"users:read"}

type SlackProvider struct {
	config     *oauth2.Config
	httpClient *http.Client
}

var _ Provider = &SlackProvider{}

type SlackOption func(*SlackProvider)

// WithSlackHTTPClient sets the client used for oauth.v2.access
func WithSlackHTTPClient(c *http.Client) SlackOption {
	return func(p *SlackProvider) {
		p.httpClient = c
	}
}

func NewSlackProvider(clientID, clientSecret, redirectURL string, opts ...SlackOption) *SlackProvider {
	p := &SlackProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       SlackBotScopes,
			Endpoint:     slackEndpoint,
		},
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SlackProvider) Platform() types.Platform {
	return types.PlatformSlack
}

// AuthCodeURL asks for the bot scopes and, via user_scope, the user token scopes needed to read history.
func (p *SlackProvider) AuthCodeURL(state string) string {
	userScopes := append([]string{"users:read"}, slackservice.RequiredUserScopes...)
	return p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("scope", strings.Join(p.config.Scopes, ",")),
		oauth2.SetAuthURLParam("user_scope", strings.Join(userScopes, ",")),
	)
}

func (p *SlackProvider) Exchange(ctx context.Context, code string) (*Grant, error) {
	if code == "" {
		return nil, goerr.New("authorization code is empty")
	}

	resp, err := slack.GetOAuthV2ResponseContext(ctx, p.httpClient, p.config.ClientID, p.config.ClientSecret, code, p.config.RedirectURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to exchange Slack authorization code")
	}

	grant := &Grant{
		Platform:          types.PlatformSlack,
		AccessToken:       resp.AccessToken,
		UserAccessToken:   resp.AuthedUser.AccessToken,
		Scopes:            splitScopes(resp.Scope),
		UserScopes:        splitScopes(resp.AuthedUser.Scope),
		ExternalAccountID: resp.AuthedUser.ID,
		ExternalTeamID:    resp.Team.ID,
	}
	if grant.AccessToken == "" && grant.UserAccessToken == "" {
		return nil, goerr.New("Slack returned no token", goerr.V("team_id", resp.Team.ID))
	}

	return grant, nil
}
