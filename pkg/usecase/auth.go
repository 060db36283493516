package usecase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/model/auth"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
	"github.com/secmon-lab/msghub/pkg/utils/safe"
	"github.com/slack-go/slack"
)

const slackOpenIDConfigurationURL = "https://slack.com/.well-known/openid-configuration"

// AuthUseCase signs users in with Slack OpenID Connect
type AuthUseCase struct {
	repo         interfaces.Repository
	clientID     string
	clientSecret string
	callbackURL  string
	teamID       string // Optional Slack team ID
	httpClient   *http.Client
	sessions     *sessionCache
}

var _ AuthUseCaseInterface = &AuthUseCase{}

func NewAuthUseCase(repo interfaces.Repository, clientID, clientSecret, callbackURL string, options ...AuthOption) *AuthUseCase {
	uc := &AuthUseCase{
		repo:         repo,
		clientID:     clientID,
		clientSecret: clientSecret,
		callbackURL:  callbackURL,
		httpClient:   http.DefaultClient,
		sessions:     newSessionCache(sessionCacheTTL),
	}

	for _, opt := range options {
		opt(uc)
	}

	return uc
}

// AuthOption is a functional option for AuthUseCase
type AuthOption func(*AuthUseCase)

// WithTeamID restricts sign-in to one Slack workspace
func WithTeamID(teamID string) AuthOption {
	return func(uc *AuthUseCase) {
		uc.teamID = teamID
	}
}

// WithAuthHTTPClient sets the client used to talk to Slack's OpenID endpoints
func WithAuthHTTPClient(c *http.Client) AuthOption {
	return func(uc *AuthUseCase) {
		uc.httpClient = c
	}
}

// OpenIDConfiguration is the subset of Slack's discovery document in use
type OpenIDConfiguration struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// GetAuthURL returns the URL for Slack OAuth
func (uc *AuthUseCase) GetAuthURL(state string) string {
	params := url.Values{}
	params.Set("client_id", uc.clientID)
	params.Set("scope", "openid,email,profile")
	params.Set("redirect_uri", uc.callbackURL)
	params.Set("response_type", "code")
	params.Set("state", state)
	if uc.teamID != "" {
		params.Set("team", uc.teamID)
	}

	return "https://slack.com/openid/connect/authorize?" + params.Encode()
}

// IsNoAuthn returns false for regular AuthUseCase
func (uc *AuthUseCase) IsNoAuthn() bool {
	return false
}

// SlackIDToken represents the decoded ID token from Slack
type SlackIDToken struct {
	Sub   string
	Email string
	Name  string
}

// HandleCallback exchanges the code, verifies the ID token and issues a session for
// the user with the token's email. The user is created on first sign-in.
func (uc *AuthUseCase) HandleCallback(ctx context.Context, code string) (*auth.Token, error) {
	if code == "" {
		return nil, goerr.Wrap(ErrMissingAuthCode, "sign-in callback without code")
	}

	tokenResp, err := slack.GetOpenIDConnectTokenContext(ctx, uc.httpClient, uc.clientID, uc.clientSecret, code, uc.callbackURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to exchange code for token")
	}

	idToken, err := uc.decodeIDToken(ctx, tokenResp.IdToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode ID token")
	}

	user, err := ensureUser(ctx, uc.repo, idToken.Email, idToken.Name)
	if err != nil {
		return nil, err
	}

	token := auth.NewToken(user.ID.String(), user.Email, user.Name)
	if err := uc.repo.PutToken(ctx, token); err != nil {
		return nil, goerr.Wrap(err, "failed to store token", goerr.V("token_id", token.ID))
	}

	logging.From(ctx).Info("user signed in", UserIDKey, user.ID, "slack_sub", idToken.Sub)
	return token, nil
}

// ensureUser returns the user with the email, creating it when missing
func ensureUser(ctx context.Context, repo interfaces.Repository, email, name string) (*model.User, error) {
	if email == "" {
		return nil, goerr.New("email is required to identify the user")
	}

	user, err := repo.User().GetByEmail(ctx, email)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get user by email", goerr.V("email", email))
	}
	if user != nil {
		return user, nil
	}

	user = model.NewUser(email, name)
	if err := repo.User().Put(ctx, user); err != nil {
		// another sign-in may have created it first
		if existing, getErr := repo.User().GetByEmail(ctx, email); getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, goerr.Wrap(err, "failed to create user", goerr.V("email", email))
	}

	logging.From(ctx).Info("user created", UserIDKey, user.ID)
	return user, nil
}

// getOpenIDConfiguration fetches Slack's OpenID Connect configuration
func (uc *AuthUseCase) getOpenIDConfiguration(ctx context.Context) (*OpenIDConfiguration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, slackOpenIDConfigurationURL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}

	resp, err := uc.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch OpenID configuration")
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("failed to fetch OpenID configuration", goerr.V("status", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read OpenID configuration response")
	}

	var config OpenIDConfiguration
	if err := json.Unmarshal(body, &config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse OpenID configuration")
	}

	return &config, nil
}

// decodeIDToken decodes and verifies the ID token using Slack's public keys
func (uc *AuthUseCase) decodeIDToken(ctx context.Context, idToken string) (*SlackIDToken, error) {
	config, err := uc.getOpenIDConfiguration(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get OpenID configuration")
	}

	keySet, err := jwk.Fetch(ctx, config.JWKSURI, jwk.WithHTTPClient(uc.httpClient))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch Slack's public keys", goerr.V("jwks_uri", config.JWKSURI))
	}

	// Allow 10 seconds of clock skew
	token, err := jwt.Parse([]byte(idToken), jwt.WithKeySet(keySet), jwt.WithValidate(true), jwt.WithAudience(uc.clientID), jwt.WithAcceptableSkew(10))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse or verify JWT token")
	}

	claims := make(map[string]string, 2)
	for _, name := range []string{"email", "name"} {
		v, ok := token.Get(name)
		if !ok {
			return nil, goerr.New("claim not found in token", goerr.V("claim", name))
		}
		s, ok := v.(string)
		if !ok {
			return nil, goerr.New("claim is not a string", goerr.V("claim", name))
		}
		claims[name] = s
	}

	if token.Subject() == "" {
		return nil, goerr.New("sub claim not found in token")
	}

	return &SlackIDToken{
		Sub:   token.Subject(),
		Email: claims["email"],
		Name:  claims["name"],
	}, nil
}

// ValidateToken validates the token and returns user info
func (uc *AuthUseCase) ValidateToken(ctx context.Context, tokenID auth.TokenID, tokenSecret auth.TokenSecret) (*auth.Token, error) {
	return uc.verifySession(ctx, tokenID, tokenSecret)
}

// Logout deletes the token
func (uc *AuthUseCase) Logout(ctx context.Context, tokenID auth.TokenID) error {
	uc.sessions.evict(tokenID)

	return uc.repo.DeleteToken(ctx, tokenID)
}
