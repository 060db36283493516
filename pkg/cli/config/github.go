package config

import (
	"log/slog"

	"github.com/secmon-lab/msghub/pkg/service/github"
	"github.com/secmon-lab/msghub/pkg/service/oauth"
	"github.com/urfave/cli/v3"
)

// GitHub holds configuration for the GitHub OAuth App and webhook
type GitHub struct {
	clientID      string
	clientSecret  string
	webhookSecret string
	apiURL        string
	graphqlURL    string
}

// Flags returns CLI flags for GitHub configuration
func (g *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-client-id",
			Usage:       "GitHub OAuth App client ID (account linking)",
			Category:    "GitHub",
			Sources:     cli.EnvVars("MSGHUB_GITHUB_CLIENT_ID"),
			Destination: &g.clientID,
		},
		&cli.StringFlag{
			Name:        "github-client-secret",
			Usage:       "GitHub OAuth App client secret",
			Category:    "GitHub",
			Sources:     cli.EnvVars("MSGHUB_GITHUB_CLIENT_SECRET"),
			Destination: &g.clientSecret,
		},
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "Secret for X-Hub-Signature-256 webhook validation",
			Category:    "GitHub",
			Sources:     cli.EnvVars("MSGHUB_GITHUB_WEBHOOK_SECRET"),
			Destination: &g.webhookSecret,
		},
		&cli.StringFlag{
			Name:        "github-api-url",
			Usage:       "GitHub REST API base URL (GitHub Enterprise)",
			Category:    "GitHub",
			Sources:     cli.EnvVars("MSGHUB_GITHUB_API_URL"),
			Destination: &g.apiURL,
		},
		&cli.StringFlag{
			Name:        "github-graphql-url",
			Usage:       "GitHub GraphQL endpoint (GitHub Enterprise)",
			Category:    "GitHub",
			Sources:     cli.EnvVars("MSGHUB_GITHUB_GRAPHQL_URL"),
			Destination: &g.graphqlURL,
		},
	}
}

func (g GitHub) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("client-id.len", len(g.clientID)),
		slog.Int("client-secret.len", len(g.clientSecret)),
		slog.Int("webhook-secret.len", len(g.webhookSecret)),
		slog.String("api-url", g.apiURL),
		slog.String("graphql-url", g.graphqlURL),
	)
}

// IsConfigured returns true if the OAuth App credentials are set
func (g *GitHub) IsConfigured() bool {
	return g.clientID != "" && g.clientSecret != ""
}

// Factory builds per-user GitHub clients for the configured endpoints
func (g *GitHub) Factory() github.Factory {
	var opts []github.Option
	if g.apiURL != "" {
		opts = append(opts, github.WithBaseURL(g.apiURL))
	}
	if g.graphqlURL != "" {
		opts = append(opts, github.WithGraphQLURL(g.graphqlURL))
	}
	return github.NewFactory(opts...)
}

// Provider returns the account linking provider, or nil when GitHub OAuth is not configured
func (g *GitHub) Provider(baseURL string, clients github.Factory) oauth.Provider {
	if !g.IsConfigured() || baseURL == "" {
		return nil
	}
	return oauth.NewGitHubProvider(g.clientID, g.clientSecret, baseURL+"/api/connect/github/callback", clients)
}

// WebhookSecret returns the webhook signature secret
func (g *GitHub) WebhookSecret() string {
	return g.webhookSecret
}
