package slack_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/msghub/pkg/service/slack"
	"github.com/secmon-lab/msghub/pkg/utils/backoff"
)

func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) slack.Factory {
	t.Helper()

	mux := http.NewServeMux()
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return slack.NewFactory(slack.WithAPIURL(srv.URL + "/"))
}

func writeBody(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestNew(t *testing.T) {
	t.Run("returns error when token is empty", func(t *testing.T) {
		_, err := slack.New("")
		gt.Value(t, err).NotNil()
	})

	t.Run("creates client when token is provided", func(t *testing.T) {
		c, err := slack.New("xoxp-test")
		gt.NoError(t, err).Required()
		gt.Value(t, c).NotNil()
	})
}

func TestAuthTest(t *testing.T) {
	factory := newTestServer(t, map[string]http.HandlerFunc{
		"/auth.test": func(w http.ResponseWriter, r *http.Request) {
			gt.Value(t, r.FormValue("token")).Equal("xoxp-test")
			writeBody(w, `{"ok":true,"url":"https://example.slack.com/","team":"Example","user":"alice","team_id":"T001","user_id":"U001"}`)
		},
	})

	c, err := factory.New("xoxp-test")
	gt.NoError(t, err).Required()

	id, err := c.AuthTest(context.Background())
	gt.NoError(t, err).Required()
	gt.Value(t, id.TeamID).Equal("T001")
	gt.Value(t, id.UserID).Equal("U001")
	gt.Value(t, id.User).Equal("alice")
}

func TestCheckConversationAccessMissingScope(t *testing.T) {
	factory := newTestServer(t, map[string]http.HandlerFunc{
		"/conversations.list": func(w http.ResponseWriter, r *http.Request) {
			gt.NoError(t, r.ParseForm())
			gt.Value(t, r.Form.Get("limit")).Equal("1")
			writeBody(w, `{"ok":false,"error":"missing_scope","needed":"channels:read","provided":"users:read"}`)
		},
	})

	c, err := factory.New("xoxb-test")
	gt.NoError(t, err).Required()

	err = c.CheckConversationAccess(context.Background())
	gt.Error(t, err)
	gt.Value(t, slack.ErrorCode(err)).Equal("missing_scope")
	gt.Bool(t, backoff.IsRateLimited(err)).False()
}

func TestListConversations(t *testing.T) {
	factory := newTestServer(t, map[string]http.HandlerFunc{
		"/conversations.list": func(w http.ResponseWriter, r *http.Request) {
			gt.NoError(t, r.ParseForm())
			gt.Value(t, r.Form.Get("types")).Equal("public_channel,private_channel,mpim,im")
			writeBody(w, `{"ok":true,"channels":[
				{"id":"C1","name":"general"},
				{"id":"G1","name":"secret","is_private":true},
				{"id":"D1","is_im":true},
				{"id":"C2","name":"random"}
			]}`)
		},
	})

	c, err := factory.New("xoxp-test")
	gt.NoError(t, err).Required()

	convs, err := c.ListConversations(context.Background(), 3)
	gt.NoError(t, err).Required()
	gt.A(t, convs).Length(3)
	gt.Value(t, convs[0].ID).Equal("C1")
	gt.Bool(t, convs[1].IsPrivate).True()
	gt.Bool(t, convs[2].IsIM).True()
}

func TestHistory(t *testing.T) {
	factory := newTestServer(t, map[string]http.HandlerFunc{
		"/conversations.history": func(w http.ResponseWriter, r *http.Request) {
			gt.NoError(t, r.ParseForm())
			gt.Value(t, r.Form.Get("channel")).Equal("C1")
			gt.Value(t, r.Form.Get("limit")).Equal("5")
			writeBody(w, `{"ok":true,"messages":[
				{"type":"message","ts":"1700000002.000200","user":"U2","text":"reply","thread_ts":"1700000001.000100"},
				{"type":"message","ts":"1700000001.000100","bot_id":"B1","text":"from a bot"}
			]}`)
		},
	})

	c, err := factory.New("xoxp-test")
	gt.NoError(t, err).Required()

	msgs, err := c.History(context.Background(), "C1", 5)
	gt.NoError(t, err).Required()
	gt.A(t, msgs).Length(2)
	gt.Value(t, msgs[0].Timestamp).Equal("1700000002.000200")
	gt.Value(t, msgs[0].ThreadTimestamp).Equal("1700000001.000100")
	gt.Value(t, msgs[0].User).Equal("U2")
	gt.Value(t, msgs[1].BotID).Equal("B1")
}

func TestRateLimited(t *testing.T) {
	factory := newTestServer(t, map[string]http.HandlerFunc{
		"/conversations.history": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		},
	})

	c, err := factory.New("xoxp-test")
	gt.NoError(t, err).Required()

	_, err = c.History(context.Background(), "C1", 5)
	gt.Error(t, err)
	gt.Bool(t, backoff.IsRateLimited(err)).True()

	var rl *backoff.RateLimitError
	gt.Bool(t, errors.As(err, &rl)).True()
	gt.Value(t, rl.RetryAfter).Equal(7 * time.Second)
}
