package oauth

import (
	"context"
	"net/http"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	githubservice "github.com/secmon-lab/msghub/pkg/service/github"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubScopes are requested on consent. notifications is needed by the poller.
var GitHubScopes = []string{"read:user", "user:email", "notifications"}

type GitHubProvider struct {
	config     *oauth2.Config
	clients    githubservice.Factory
	httpClient *http.Client
}

var _ Provider = &GitHubProvider{}

type GitHubOption func(*GitHubProvider)

// WithGitHubEndpoint replaces github.com's OAuth endpoint (GitHub Enterprise or tests)
func WithGitHubEndpoint(ep oauth2.Endpoint) GitHubOption {
	return func(p *GitHubProvider) {
		p.config.Endpoint = ep
	}
}

func WithGitHubHTTPClient(c *http.Client) GitHubOption {
	return func(p *GitHubProvider) {
		p.httpClient = c
	}
}

// NewGitHubProvider resolves the linked account through clients after the exchange
func NewGitHubProvider(clientID, clientSecret, redirectURL string, clients githubservice.Factory, opts ...GitHubOption) *GitHubProvider {
	p := &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       GitHubScopes,
			Endpoint:     github.Endpoint,
		},
		clients: clients,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GitHubProvider) Platform() types.Platform {
	return types.PlatformGitHub
}

func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*Grant, error) {
	if code == "" {
		return nil, goerr.New("authorization code is empty")
	}

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to exchange GitHub authorization code")
	}

	client, err := p.clients.New(token.AccessToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub client")
	}
	viewer, err := client.Viewer(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve GitHub account")
	}

	var scopes []string
	if s, ok := token.Extra("scope").(string); ok {
		scopes = splitScopes(s)
	}

	return &Grant{
		Platform:          types.PlatformGitHub,
		AccessToken:       token.AccessToken,
		Scopes:            scopes,
		ExternalAccountID: strconv.FormatInt(viewer.DatabaseID, 10),
		ExternalLogin:     viewer.Login,
	}, nil
}
