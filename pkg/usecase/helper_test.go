package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/model/config"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	"github.com/secmon-lab/msghub/pkg/repository/memory"
	"github.com/secmon-lab/msghub/pkg/service/github"
	"github.com/secmon-lab/msghub/pkg/service/slack"
	"github.com/secmon-lab/msghub/pkg/utils/backoff"
)

// fakeSlack serves canned Slack responses for every token
type fakeSlack struct {
	mu sync.Mutex

	authErr       error
	accessErr     error
	conversations []slack.Conversation
	history       map[string][]slack.Message
	historyErr    map[string]error

	tokens       []string
	historyCalls []string
}

func newFakeSlack() *fakeSlack {
	return &fakeSlack{
		history:    map[string][]slack.Message{},
		historyErr: map[string]error{},
	}
}

func (f *fakeSlack) New(token string) (slack.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return f, nil
}

func (f *fakeSlack) AuthTest(ctx context.Context) (*slack.Identity, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &slack.Identity{TeamID: "T001", UserID: "U001"}, nil
}

func (f *fakeSlack) CheckConversationAccess(ctx context.Context) error {
	return f.accessErr
}

func (f *fakeSlack) ListConversations(ctx context.Context, limit int) ([]slack.Conversation, error) {
	return f.conversations, nil
}

func (f *fakeSlack) History(ctx context.Context, channelID string, limit int) ([]slack.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls = append(f.historyCalls, channelID)
	if err := f.historyErr[channelID]; err != nil {
		return nil, err
	}
	msgs := f.history[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeSlack) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.historyCalls...)
}

// fakeGitHub serves canned GitHub responses for every token
type fakeGitHub struct {
	mu sync.Mutex

	viewerErr     error
	notifications []*github.Notification
	listErr       error
	listCalls     int
}

func (f *fakeGitHub) New(token string) (github.Client, error) {
	return f, nil
}

func (f *fakeGitHub) Viewer(ctx context.Context) (*github.Viewer, error) {
	if f.viewerErr != nil {
		return nil, f.viewerErr
	}
	return &github.Viewer{Login: "octocat", DatabaseID: 1}, nil
}

func (f *fakeGitHub) ListNotifications(ctx context.Context, limit int) ([]*github.Notification, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.notifications, nil
}

func testSyncConfig() config.Sync {
	cfg := config.DefaultSync()
	cfg.ConversationCooldown = 0
	cfg.Backoff = backoff.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	return cfg
}

func newUser(t *testing.T, repo *memory.Memory, email string) *model.User {
	t.Helper()
	user := model.NewUser(email, "Test User")
	gt.NoError(t, repo.User().Put(context.Background(), user)).Required()
	return user
}

func linkSlack(t *testing.T, repo *memory.Memory, userID model.UserID, teamID, accountID string) {
	t.Helper()
	gt.NoError(t, repo.Credential().Put(context.Background(), &model.Credential{
		UserID:            userID,
		Platform:          types.PlatformSlack,
		AccessToken:       "xoxb-bot",
		UserAccessToken:   "xoxp-user",
		UserScopes:        []string{"channels:read"},
		ExternalTeamID:    teamID,
		ExternalAccountID: accountID,
	})).Required()
}

func linkGitHub(t *testing.T, repo *memory.Memory, userID model.UserID, accountID, login string) {
	t.Helper()
	gt.NoError(t, repo.Credential().Put(context.Background(), &model.Credential{
		UserID:            userID,
		Platform:          types.PlatformGitHub,
		AccessToken:       "gho_token",
		ExternalAccountID: accountID,
		ExternalLogin:     login,
	})).Required()
}

func countMessages(t *testing.T, repo *memory.Memory, userID model.UserID) int {
	t.Helper()
	msgs, err := repo.Message().ListByUser(context.Background(), userID, 1000)
	gt.NoError(t, err).Required()
	return len(msgs)
}

var errBoom = goerr.New("boom")
