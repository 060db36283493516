package usecase

import (
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model/config"
	"github.com/secmon-lab/msghub/pkg/service/github"
	"github.com/secmon-lab/msghub/pkg/service/oauth"
	"github.com/secmon-lab/msghub/pkg/service/slack"
)

type UseCases struct {
	repo          interfaces.Repository
	syncConfig    config.Sync
	slackClients  slack.Factory
	githubClients github.Factory
	providers     []oauth.Provider

	Message *MessageUseCase
	Sync    *SyncUseCase
	Webhook *WebhookUseCase
	Connect *ConnectUseCase
	Auth    AuthUseCaseInterface
}

type Option func(*UseCases)

func WithSyncConfig(cfg config.Sync) Option {
	return func(uc *UseCases) {
		uc.syncConfig = cfg
	}
}

func WithSlackClientFactory(f slack.Factory) Option {
	return func(uc *UseCases) {
		uc.slackClients = f
	}
}

func WithGitHubClientFactory(f github.Factory) Option {
	return func(uc *UseCases) {
		uc.githubClients = f
	}
}

// WithOAuthProvider enables account linking for the provider's platform
func WithOAuthProvider(p oauth.Provider) Option {
	return func(uc *UseCases) {
		uc.providers = append(uc.providers, p)
	}
}

func WithAuth(auth AuthUseCaseInterface) Option {
	return func(uc *UseCases) {
		uc.Auth = auth
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:          repo,
		syncConfig:    config.DefaultSync(),
		slackClients:  slack.NewFactory(),
		githubClients: github.NewFactory(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Message = NewMessageUseCase(repo)
	uc.Sync = NewSyncUseCase(repo,
		NewSlackFetcher(repo, uc.slackClients, uc.Message, uc.syncConfig),
		NewGitHubFetcher(repo, uc.githubClients, uc.Message, uc.syncConfig),
	)
	uc.Webhook = NewWebhookUseCase(repo, uc.Message)
	uc.Connect = NewConnectUseCase(repo, uc.Sync, uc.providers...)

	return uc
}
