package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/service/oauth"
	"github.com/secmon-lab/msghub/pkg/usecase"
	"github.com/slack-go/slack"
	"github.com/urfave/cli/v3"
)

// SlackUserInfo holds user information retrieved from Slack API
type SlackUserInfo struct {
	ID    string
	Email string
	Name  string
}

type Slack struct {
	clientID      string
	clientSecret  string
	botToken      string
	signingSecret string
	teamID        string
	noAuthUID     string
	apiURL        string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-client-id",
			Usage:       "Slack OAuth client ID (sign-in and account linking)",
			Category:    "Slack",
			Destination: &x.clientID,
			Sources:     cli.EnvVars("MSGHUB_SLACK_CLIENT_ID"),
		},
		&cli.StringFlag{
			Name:        "slack-client-secret",
			Usage:       "Slack OAuth client secret",
			Category:    "Slack",
			Destination: &x.clientSecret,
			Sources:     cli.EnvVars("MSGHUB_SLACK_CLIENT_SECRET"),
		},
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (for --no-auth user lookup)",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("MSGHUB_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack Signing Secret (for webhook verification)",
			Category:    "Slack",
			Destination: &x.signingSecret,
			Sources:     cli.EnvVars("MSGHUB_SLACK_SIGNING_SECRET"),
		},
		&cli.StringFlag{
			Name:        "slack-team-id",
			Usage:       "Restrict sign-in to one Slack workspace",
			Category:    "Slack",
			Destination: &x.teamID,
			Sources:     cli.EnvVars("MSGHUB_SLACK_TEAM_ID"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("client-id.len", len(x.clientID)),
		slog.Int("client-secret.len", len(x.clientSecret)),
		slog.Int("bot-token.len", len(x.botToken)),
		slog.Int("signing-secret.len", len(x.signingSecret)),
		slog.String("team-id", x.teamID),
	)
}

// SetNoAuthUID sets the no-auth user ID
func (x *Slack) SetNoAuthUID(uid string) {
	x.noAuthUID = uid
}

// NoAuthUID returns the no-auth user ID
func (x *Slack) NoAuthUID() string {
	return x.noAuthUID
}

// Configure creates an AuthUseCase if Slack is configured, otherwise returns NoAuthnUseCase
func (x *Slack) Configure(ctx context.Context, repo interfaces.Repository, baseURL string) (usecase.AuthUseCaseInterface, error) {
	if x.noAuthUID != "" {
		if x.botToken == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "--no-auth requires --slack-bot-token for user validation")
		}

		if x.clientID != "" || x.clientSecret != "" {
			slog.Warn("--no-auth is set, ignoring Slack sign-in; --slack-client-id/--slack-client-secret still serve account linking")
		}

		userInfo, err := x.GetSlackUserInfo(ctx, x.noAuthUID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to validate Slack user", goerr.V("uid", x.noAuthUID))
		}
		if userInfo.Email == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "Slack user has no email", goerr.V("uid", x.noAuthUID))
		}

		return usecase.NewNoAuthnUseCase(repo, userInfo.Email, userInfo.Name), nil
	}

	if !x.IsConfigured() || baseURL == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "Slack OAuth configuration is required: set --slack-client-id, --slack-client-secret, and --base-url, or use --no-auth with --slack-bot-token")
	}

	var opts []usecase.AuthOption
	if x.teamID != "" {
		opts = append(opts, usecase.WithTeamID(x.teamID))
	}

	return usecase.NewAuthUseCase(repo, x.clientID, x.clientSecret, baseURL+"/api/auth/callback", opts...), nil
}

// Provider returns the account linking provider, or nil when Slack OAuth is not configured
func (x *Slack) Provider(baseURL string) oauth.Provider {
	if !x.IsConfigured() || baseURL == "" {
		return nil
	}
	return oauth.NewSlackProvider(x.clientID, x.clientSecret, baseURL+"/api/connect/slack/callback")
}

// GetSlackUserInfo retrieves user information from Slack API
func (x *Slack) GetSlackUserInfo(ctx context.Context, userID string) (*SlackUserInfo, error) {
	if x.botToken == "" {
		return nil, goerr.New("bot token is required to fetch user info")
	}

	var opts []slack.Option
	if x.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(x.apiURL))
	}

	api := slack.New(x.botToken, opts...)
	user, err := api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get user info from Slack", goerr.V("user_id", userID))
	}

	name := user.RealName
	if name == "" {
		name = user.Name
	}

	return &SlackUserInfo{
		ID:    user.ID,
		Email: user.Profile.Email,
		Name:  name,
	}, nil
}

// IsConfigured checks if Slack OAuth configuration is complete
func (x *Slack) IsConfigured() bool {
	return x.clientID != "" && x.clientSecret != ""
}

// IsNoAuthMode returns true if no-auth mode is enabled
func (x *Slack) IsNoAuthMode() bool {
	return x.noAuthUID != ""
}

// SigningSecret returns the Slack signing secret
func (x *Slack) SigningSecret() string {
	return x.signingSecret
}
