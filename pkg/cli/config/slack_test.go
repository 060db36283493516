package config_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/msghub/pkg/cli/config"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	"github.com/secmon-lab/msghub/pkg/repository/memory"
)

func newUsersInfoServer(t *testing.T, email string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users.info" {
			http.NotFound(w, r)
			return
		}
		gt.NoError(t, r.ParseForm()).Required()
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("user") != "U1234567890" {
			_, _ = w.Write([]byte(`{"ok":false,"error":"user_not_found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"user": map[string]any{
				"id":        "U1234567890",
				"name":      "alice",
				"real_name": "Alice Example",
				"profile":   map[string]any{"email": email},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/"
}

func TestSlackSetNoAuthUID(t *testing.T) {
	slack := config.NewSlackForTest("", "", "", "", "")

	// Initially empty
	if slack.NoAuthUID() != "" {
		t.Errorf("NoAuthUID should be empty initially, got %v", slack.NoAuthUID())
	}

	slack.SetNoAuthUID("U1234567890")
	if slack.NoAuthUID() != "U1234567890" {
		t.Errorf("NoAuthUID mismatch: got %v, want %v", slack.NoAuthUID(), "U1234567890")
	}
	if !slack.IsNoAuthMode() {
		t.Error("IsNoAuthMode should be true after setting no-auth UID")
	}
}

func TestSlackConfigureNoAuthWithoutBotToken(t *testing.T) {
	slack := config.NewSlackForTest("", "", "", "", "U1234567890")

	_, err := slack.Configure(context.Background(), memory.New(), "")
	gt.Error(t, err)
}

func TestSlackConfigureNoAuth(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	slack := config.NewSlackForTest("", "", "xoxb-test", "", "U1234567890")
	slack.SetAPIURL(newUsersInfoServer(t, "alice@example.com"))

	authUC, err := slack.Configure(ctx, repo, "")
	gt.NoError(t, err).Required()
	gt.Bool(t, authUC.IsNoAuthn()).True()

	token, err := authUC.ValidateToken(ctx, "", "")
	gt.NoError(t, err).Required()
	gt.Value(t, token.Email).Equal("alice@example.com")
	gt.Value(t, token.Name).Equal("Alice Example")
}

func TestSlackConfigureNoAuthUnknownUser(t *testing.T) {
	slack := config.NewSlackForTest("", "", "xoxb-test", "", "U0000000000")
	slack.SetAPIURL(newUsersInfoServer(t, "alice@example.com"))

	_, err := slack.Configure(context.Background(), memory.New(), "")
	gt.Error(t, err)
}

func TestSlackConfigureNoAuthWithoutEmail(t *testing.T) {
	slack := config.NewSlackForTest("", "", "xoxb-test", "", "U1234567890")
	slack.SetAPIURL(newUsersInfoServer(t, ""))

	_, err := slack.Configure(context.Background(), memory.New(), "")
	gt.Error(t, err)
}

func TestSlackConfigureMissingConfiguration(t *testing.T) {
	slack := config.NewSlackForTest("", "", "", "", "")

	_, err := slack.Configure(context.Background(), memory.New(), "")
	gt.Error(t, err)
}

func TestSlackConfigureOAuth(t *testing.T) {
	slack := config.NewSlackForTest("cid", "csecret", "", "", "")

	authUC, err := slack.Configure(context.Background(), memory.New(), "https://msghub.example.com")
	gt.NoError(t, err).Required()
	gt.Bool(t, authUC.IsNoAuthn()).False()
	gt.String(t, authUC.GetAuthURL("st")).Contains("redirect_uri=https%3A%2F%2Fmsghub.example.com%2Fapi%2Fauth%2Fcallback")
}

func TestSlackProvider(t *testing.T) {
	gt.Value(t, config.NewSlackForTest("", "", "", "", "").Provider("https://msghub.example.com")).Nil()
	gt.Value(t, config.NewSlackForTest("cid", "csecret", "", "", "").Provider("")).Nil()

	p := config.NewSlackForTest("cid", "csecret", "", "", "").Provider("https://msghub.example.com")
	gt.Value(t, p).NotNil()
	gt.Value(t, p.Platform()).Equal(types.PlatformSlack)
	gt.String(t, p.AuthCodeURL("st")).Contains("api%2Fconnect%2Fslack%2Fcallback")
}

func TestSlackIsConfigured(t *testing.T) {
	tests := []struct {
		name           string
		clientID       string
		clientSecret   string
		wantConfigured bool
	}{
		{"both set", "id", "secret", true},
		{"only client ID", "id", "", false},
		{"only client secret", "", "secret", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slack := config.NewSlackForTest(tt.clientID, tt.clientSecret, "", "", "")
			if got := slack.IsConfigured(); got != tt.wantConfigured {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.wantConfigured)
			}
		})
	}
}

func TestGitHubProvider(t *testing.T) {
	gh := config.NewGitHubForTest("", "", "whsec")
	gt.Value(t, gh.Provider("https://msghub.example.com", gh.Factory())).Nil()
	gt.Value(t, gh.WebhookSecret()).Equal("whsec")

	gh = config.NewGitHubForTest("cid", "csecret", "")
	p := gh.Provider("https://msghub.example.com", gh.Factory())
	gt.Value(t, p).NotNil()
	gt.Value(t, p.Platform()).Equal(types.PlatformGitHub)
	gt.String(t, p.AuthCodeURL("st")).Contains("api%2Fconnect%2Fgithub%2Fcallback")
}
