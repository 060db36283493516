package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	gh "github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
)

// githubPayload covers the fields used to classify a delivery by shape.
// Commits is a pointer so an empty commit list still counts as a push.
type githubPayload struct {
	Action      string            `json:"action"`
	Issue       *gh.Issue         `json:"issue"`
	PullRequest *gh.PullRequest   `json:"pull_request"`
	Commits     *[]*gh.HeadCommit `json:"commits"`
	After       string            `json:"after"`
	Repository  *githubRepository `json:"repository"`
	Sender      *gh.User          `json:"sender"`
}

type githubRepository struct {
	Name     string   `json:"name"`
	FullName string   `json:"full_name"`
	Owner    *gh.User `json:"owner"`
}

// HandleGitHubPayload ingests any GitHub delivery as one message
func (uc *WebhookUseCase) HandleGitHubPayload(ctx context.Context, body []byte) (*WebhookResult, error) {
	var payload githubPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, goerr.Wrap(ErrInvalidPayload, "failed to decode GitHub payload", goerr.V("error", err.Error()))
	}

	userID, err := uc.resolveUser(ctx, types.PlatformGitHub, payload.routingKeys()...)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return &WebhookResult{Status: WebhookStatusNoUser}, nil
	}

	content, externalID := payload.classify(uc.now())

	sender := payload.Sender.GetLogin()
	if sender == "" {
		sender = unknownSender
	}

	msg := model.NewMessage(userID, types.PlatformGitHub, externalID, content, sender, uc.now())
	if err := uc.persist(ctx, msg); err != nil {
		return nil, err
	}
	return &WebhookResult{Status: WebhookStatusOK}, nil
}

// routingKeys returns repository owner then sender, id before login
func (p *githubPayload) routingKeys() []string {
	var keys []string
	add := func(u *gh.User) {
		if u == nil {
			return
		}
		if id := u.GetID(); id != 0 {
			keys = append(keys, strconv.FormatInt(id, 10))
		}
		if login := u.GetLogin(); login != "" {
			keys = append(keys, login)
		}
	}
	if p.Repository != nil {
		add(p.Repository.Owner)
	}
	add(p.Sender)
	return keys
}

// classify returns the message content and external id for the delivery
func (p *githubPayload) classify(now time.Time) (string, string) {
	switch {
	case p.Action != "" && p.Issue != nil:
		return fmt.Sprintf("%s issue: %s", p.Action, p.Issue.GetTitle()),
			fmt.Sprintf("issue_%d_%s", p.Issue.GetID(), p.Action)

	case p.Action != "" && p.PullRequest != nil:
		return fmt.Sprintf("%s pull request: %s", p.Action, p.PullRequest.GetTitle()),
			fmt.Sprintf("pr_%d_%s", p.PullRequest.GetID(), p.Action)

	case p.Commits != nil:
		return fmt.Sprintf("Pushed %d commit(s) to %s", len(*p.Commits), p.repositoryName()),
			"push_" + p.After

	default:
		action := p.Action
		if action == "" {
			action = "activity"
		}
		return fmt.Sprintf("GitHub %s in %s", action, p.repositoryName()),
			fmt.Sprintf("github_%d", now.UnixMilli())
	}
}

func (p *githubPayload) repositoryName() string {
	if p.Repository == nil || p.Repository.Name == "" {
		return "repository"
	}
	return p.Repository.Name
}
