package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
)

func runCredentialRepositoryTest(t *testing.T, newRepo repoFactory) {
	t.Run("Put and Get keeps both slack tokens", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userID := model.NewUserID()
		cred := &model.Credential{
			UserID:            userID,
			Platform:          types.PlatformSlack,
			AccessToken:       "xoxb-bot",
			UserAccessToken:   "xoxp-user",
			Scopes:            []string{"chat:write", "channels:read"},
			UserScopes:        []string{"channels:history"},
			ExternalAccountID: "U" + userID.String(),
			ExternalTeamID:    "T" + userID.String(),
		}
		gt.NoError(t, repo.Credential().Put(ctx, cred)).Required()

		got, err := repo.Credential().Get(ctx, userID, types.PlatformSlack)
		gt.NoError(t, err).Required()
		gt.Value(t, got).NotNil()
		gt.Value(t, got.AccessToken).Equal("xoxb-bot")
		gt.Value(t, got.UserAccessToken).Equal("xoxp-user")
		gt.A(t, got.Scopes).Length(2)
		gt.A(t, got.UserScopes).Length(1)
		gt.Value(t, got.ExternalTeamID).Equal(cred.ExternalTeamID)
	})

	t.Run("Get missing returns nil", func(t *testing.T) {
		repo := newRepo(t)

		got, err := repo.Credential().Get(context.Background(), model.NewUserID(), types.PlatformGitHub)
		gt.NoError(t, err)
		gt.Value(t, got).Nil()
	})

	t.Run("Put is an upsert per user and platform", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userID := model.NewUserID()
		gt.NoError(t, repo.Credential().Put(ctx, &model.Credential{
			UserID: userID, Platform: types.PlatformGitHub, AccessToken: "old", ExternalAccountID: "1" + userID.String(),
		})).Required()
		gt.NoError(t, repo.Credential().Put(ctx, &model.Credential{
			UserID: userID, Platform: types.PlatformGitHub, AccessToken: "new", ExternalAccountID: "1" + userID.String(),
		})).Required()
		gt.NoError(t, repo.Credential().Put(ctx, &model.Credential{
			UserID: userID, Platform: types.PlatformSlack, AccessToken: "xoxb",
		})).Required()

		creds, err := repo.Credential().ListByUser(ctx, userID)
		gt.NoError(t, err).Required()
		gt.A(t, creds).Length(2)

		got, err := repo.Credential().Get(ctx, userID, types.PlatformGitHub)
		gt.NoError(t, err).Required()
		gt.Value(t, got.AccessToken).Equal("new")
	})

	t.Run("FindUserByRoutingKey", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userID := model.NewUserID()
		login := "octocat-" + time.Now().Format("150405000000")
		gt.NoError(t, repo.Credential().Put(ctx, &model.Credential{
			UserID:            userID,
			Platform:          types.PlatformGitHub,
			AccessToken:       "gho_x",
			ExternalAccountID: "9" + time.Now().Format("150405000000"),
			ExternalLogin:     login,
		})).Required()

		found, err := repo.Credential().FindUserByRoutingKey(ctx, types.PlatformGitHub, login)
		gt.NoError(t, err).Required()
		gt.Value(t, found).Equal(userID)

		// keys are scoped by platform
		found, err = repo.Credential().FindUserByRoutingKey(ctx, types.PlatformSlack, login)
		gt.NoError(t, err).Required()
		gt.Value(t, found).Equal(model.UserID(""))

		found, err = repo.Credential().FindUserByRoutingKey(ctx, types.PlatformGitHub, "unknown-login")
		gt.NoError(t, err).Required()
		gt.Value(t, found).Equal(model.UserID(""))
	})

	t.Run("re-link drops the previous routing keys", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		suffix := time.Now().Format("150405000000")
		userID := model.NewUserID()
		gt.NoError(t, repo.Credential().Put(ctx, &model.Credential{
			UserID: userID, Platform: types.PlatformGitHub, AccessToken: "gho_a",
			ExternalAccountID: "old-" + suffix, ExternalLogin: "old-login-" + suffix,
		})).Required()
		gt.NoError(t, repo.Credential().Put(ctx, &model.Credential{
			UserID: userID, Platform: types.PlatformGitHub, AccessToken: "gho_b",
			ExternalAccountID: "new-" + suffix, ExternalLogin: "new-login-" + suffix,
		})).Required()

		for _, key := range []string{"old-" + suffix, "old-login-" + suffix} {
			found, err := repo.Credential().FindUserByRoutingKey(ctx, types.PlatformGitHub, key)
			gt.NoError(t, err).Required()
			gt.Value(t, found).Equal(model.UserID(""))
		}
		found, err := repo.Credential().FindUserByRoutingKey(ctx, types.PlatformGitHub, "new-login-"+suffix)
		gt.NoError(t, err).Required()
		gt.Value(t, found).Equal(userID)
	})

	t.Run("re-link keeps a key another user took over", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		team := "T-shared-" + time.Now().Format("150405000000")
		alice := model.NewUserID()
		bob := model.NewUserID()
		gt.NoError(t, repo.Credential().Put(ctx, &model.Credential{
			UserID: alice, Platform: types.PlatformSlack, AccessToken: "xoxb-a", ExternalTeamID: team,
		})).Required()
		gt.NoError(t, repo.Credential().Put(ctx, &model.Credential{
			UserID: bob, Platform: types.PlatformSlack, AccessToken: "xoxb-b", ExternalTeamID: team,
		})).Required()

		// alice moves to another workspace; the shared key stays with bob
		gt.NoError(t, repo.Credential().Put(ctx, &model.Credential{
			UserID: alice, Platform: types.PlatformSlack, AccessToken: "xoxb-a2", ExternalTeamID: team + "-other",
		})).Required()

		found, err := repo.Credential().FindUserByRoutingKey(ctx, types.PlatformSlack, team)
		gt.NoError(t, err).Required()
		gt.Value(t, found).Equal(bob)
	})

	t.Run("ListByPlatform honors limit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			gt.NoError(t, repo.Credential().Put(ctx, &model.Credential{
				UserID: model.NewUserID(), Platform: types.PlatformSlack, AccessToken: "xoxb",
			})).Required()
		}

		creds, err := repo.Credential().ListByPlatform(ctx, types.PlatformSlack, 2)
		gt.NoError(t, err).Required()
		gt.A(t, creds).Length(2)
		for _, c := range creds {
			gt.Value(t, c.Platform).Equal(types.PlatformSlack)
		}
	})

	t.Run("invalid credential is rejected", func(t *testing.T) {
		repo := newRepo(t)
		gt.Error(t, repo.Credential().Put(context.Background(), &model.Credential{
			UserID: model.NewUserID(), Platform: types.PlatformSlack,
		}))
	})
}

func TestCredentialRepository(t *testing.T) {
	runAllBackends(t, runCredentialRepositoryTest)
}
