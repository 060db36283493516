package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
)

func TestMessage_Validate(t *testing.T) {
	valid := func() *model.Message {
		return model.NewMessage("user-1", types.PlatformSlack, "1700000000.000100", "hello", "U123", time.Unix(1700000000, 0))
	}

	t.Run("valid", func(t *testing.T) {
		gt.NoError(t, valid().Validate())
	})

	tests := []struct {
		name   string
		modify func(m *model.Message)
	}{
		{name: "missing user", modify: func(m *model.Message) { m.UserID = "" }},
		{name: "unknown platform", modify: func(m *model.Message) { m.Platform = "email" }},
		{name: "missing external id", modify: func(m *model.Message) { m.ExternalID = "" }},
		{name: "missing content", modify: func(m *model.Message) { m.Content = "" }},
		{name: "missing sender", modify: func(m *model.Message) { m.Sender = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := valid()
			tt.modify(msg)
			gt.Error(t, msg.Validate())
		})
	}
}

func TestMessage_DedupKey(t *testing.T) {
	a := model.NewMessage("user-1", types.PlatformGitHub, "42", "x", "y", time.Now())
	b := model.NewMessage("user-2", types.PlatformGitHub, "42", "z", "w", time.Now())
	c := model.NewMessage("user-1", types.PlatformSlack, "42", "x", "y", time.Now())

	gt.Value(t, a.DedupKey()).Equal("github:42")
	gt.Value(t, a.DedupKey()).Equal(b.DedupKey())
	gt.Value(t, a.DedupKey()).NotEqual(c.DedupKey())
	gt.Value(t, a.ID).NotEqual(b.ID)
}

func TestCredential(t *testing.T) {
	t.Run("prefers user token", func(t *testing.T) {
		cred := &model.Credential{AccessToken: "xoxb-bot", UserAccessToken: "xoxp-user"}
		gt.Value(t, cred.PreferredToken()).Equal("xoxp-user")
	})

	t.Run("falls back to primary token", func(t *testing.T) {
		cred := &model.Credential{AccessToken: "gho_abc"}
		gt.Value(t, cred.PreferredToken()).Equal("gho_abc")
	})

	t.Run("slack routing keys", func(t *testing.T) {
		cred := &model.Credential{
			Platform:          types.PlatformSlack,
			ExternalTeamID:    "T001",
			ExternalAccountID: "U001",
		}
		keys := cred.RoutingKeys()
		gt.A(t, keys).Length(2)
		gt.Value(t, keys[0]).Equal("T001")
		gt.Value(t, keys[1]).Equal("U001")
	})

	t.Run("github routing keys skip empty login", func(t *testing.T) {
		cred := &model.Credential{Platform: types.PlatformGitHub, ExternalAccountID: "1234"}
		gt.A(t, cred.RoutingKeys()).Length(1)
	})

	t.Run("validate", func(t *testing.T) {
		gt.NoError(t, (&model.Credential{UserID: "u", Platform: types.PlatformGitHub, AccessToken: "t"}).Validate())
		gt.Error(t, (&model.Credential{UserID: "u", Platform: types.PlatformGitHub}).Validate())
		gt.Error(t, (&model.Credential{Platform: types.PlatformGitHub, AccessToken: "t"}).Validate())
		gt.Error(t, (&model.Credential{UserID: "u", Platform: "x", AccessToken: "t"}).Validate())
	})
}
