package usecase

import (
	"context"
	"fmt"

	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/model/config"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	"github.com/secmon-lab/msghub/pkg/service/github"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
)

// GitHubFetcher polls a user's unread GitHub notifications
type GitHubFetcher struct {
	repo    interfaces.Repository
	clients github.Factory
	gate    *MessageUseCase
	cfg     config.Sync
}

var _ Fetcher = &GitHubFetcher{}

func NewGitHubFetcher(repo interfaces.Repository, clients github.Factory, gate *MessageUseCase, cfg config.Sync) *GitHubFetcher {
	return &GitHubFetcher{
		repo:    repo,
		clients: clients,
		gate:    gate,
		cfg:     cfg,
	}
}

func (f *GitHubFetcher) Platform() types.Platform {
	return types.PlatformGitHub
}

// Fetch returns the newly persisted notifications. Failures are logged and yield an empty list.
func (f *GitHubFetcher) Fetch(ctx context.Context, userID model.UserID) []*model.Message {
	logger := logging.From(ctx).With(UserIDKey, userID, PlatformKey, types.PlatformGitHub)

	cred, err := f.repo.Credential().Get(ctx, userID, types.PlatformGitHub)
	if err != nil {
		logger.Error("failed to get GitHub credential", "error", err.Error())
		return []*model.Message{}
	}
	if cred == nil {
		logger.Debug("no GitHub credential")
		return []*model.Message{}
	}

	client, err := f.clients.New(cred.AccessToken)
	if err != nil {
		logger.Error("failed to create GitHub client", "error", err.Error())
		return []*model.Message{}
	}

	var viewer *github.Viewer
	if err := f.cfg.Backoff.Do(ctx, func(ctx context.Context) error {
		var err error
		viewer, err = client.Viewer(ctx)
		return err
	}); err != nil {
		logger.Warn("GitHub token is invalid", "error", err.Error())
		return []*model.Message{}
	}
	logger = logger.With("github_login", viewer.Login)

	var notifications []*github.Notification
	if err := f.cfg.Backoff.Do(ctx, func(ctx context.Context) error {
		var err error
		notifications, err = client.ListNotifications(ctx, f.cfg.NotificationLimit)
		return err
	}); err != nil {
		logger.Warn("failed to list GitHub notifications", "error", err.Error())
		return []*model.Message{}
	}
	if len(notifications) > f.cfg.NotificationLimit {
		notifications = notifications[:f.cfg.NotificationLimit]
	}

	candidates := make([]*model.Message, 0, len(notifications))
	for _, n := range notifications {
		candidates = append(candidates, githubCandidate(userID, n))
	}
	if len(candidates) == 0 {
		return []*model.Message{}
	}

	inserted, err := f.gate.PersistNew(ctx, candidates)
	if err != nil {
		logger.Error("failed to persist GitHub notifications", "error", err.Error())
		return []*model.Message{}
	}

	logger.Info("GitHub fetch completed",
		"notifications", len(notifications),
		"inserted", len(inserted))
	return inserted
}

func githubCandidate(userID model.UserID, n *github.Notification) *model.Message {
	content := fmt.Sprintf("%s (%s)", n.Title, n.Type)
	return model.NewMessage(userID, types.PlatformGitHub, n.ID, content, n.RepositoryFullName, n.UpdatedAt)
}
