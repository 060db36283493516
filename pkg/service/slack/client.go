package slack

import (
	"context"
	"errors"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/utils/backoff"
	"github.com/slack-go/slack"
)

// client implements Client
type client struct {
	api *slack.Client
}

var _ Client = &client{}

// Option is a functional option for client configuration
type Option func(*factory)

// WithAPIURL points clients at another Slack API endpoint. The URL must end with a slash.
func WithAPIURL(url string) Option {
	return func(f *factory) {
		f.apiURL = url
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(f *factory) {
		f.httpClient = httpClient
	}
}

type factory struct {
	apiURL     string
	httpClient *http.Client
}

// NewFactory returns a Factory creating slack-go backed clients
func NewFactory(opts ...Option) Factory {
	f := &factory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *factory) New(token string) (Client, error) {
	if token == "" {
		return nil, goerr.New("Slack token is required")
	}

	var options []slack.Option
	if f.apiURL != "" {
		options = append(options, slack.OptionAPIURL(f.apiURL))
	}
	if f.httpClient != nil {
		options = append(options, slack.OptionHTTPClient(f.httpClient))
	}

	return &client{api: slack.New(token, options...)}, nil
}

// New creates a client for a single token with default settings
func New(token string, opts ...Option) (Client, error) {
	return NewFactory(opts...).New(token)
}

func (c *client) AuthTest(ctx context.Context) (*Identity, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return nil, wrapError(err, "failed to call auth.test")
	}

	return &Identity{
		URL:    resp.URL,
		Team:   resp.Team,
		TeamID: resp.TeamID,
		User:   resp.User,
		UserID: resp.UserID,
		BotID:  resp.BotID,
	}, nil
}

func (c *client) CheckConversationAccess(ctx context.Context) error {
	_, _, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
		Types: ConversationTypes,
		Limit: 1,
	})
	if err != nil {
		return wrapError(err, "conversations.list access check failed")
	}
	return nil
}

func (c *client) ListConversations(ctx context.Context, limit int) ([]Conversation, error) {
	convs, _, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
		Types:           ConversationTypes,
		ExcludeArchived: true,
		Limit:           limit,
	})
	if err != nil {
		return nil, wrapError(err, "failed to list conversations", goerr.V("limit", limit))
	}

	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}

	result := make([]Conversation, 0, len(convs))
	for _, conv := range convs {
		result = append(result, Conversation{
			ID:        conv.ID,
			Name:      conv.Name,
			IsIM:      conv.IsIM,
			IsMPIM:    conv.IsMpIM,
			IsPrivate: conv.IsPrivate,
		})
	}
	return result, nil
}

func (c *client) History(ctx context.Context, channelID string, limit int) ([]Message, error) {
	resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, wrapError(err, "failed to get conversation history", goerr.V("channel_id", channelID))
	}

	msgs := make([]Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msgs = append(msgs, Message{
			Timestamp:       m.Timestamp,
			ThreadTimestamp: m.ThreadTimestamp,
			User:            m.User,
			Text:            m.Text,
			BotID:           m.BotID,
			SubType:         m.SubType,
		})
	}
	return msgs, nil
}

// wrapError turns slack's rate limit signal into a backoff.RateLimitError
func wrapError(err error, msg string, opts ...goerr.Option) error {
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return backoff.RateLimited(goerr.Wrap(err, msg, opts...), rl.RetryAfter)
	}
	// 429 without Retry-After is reported as a plain status error
	var sc slack.StatusCodeError
	if errors.As(err, &sc) && sc.Code == http.StatusTooManyRequests {
		return backoff.RateLimited(goerr.Wrap(err, msg, opts...), 0)
	}
	return goerr.Wrap(err, msg, opts...)
}

// ErrorCode returns Slack's error string (e.g. "missing_scope") when err carries one
func ErrorCode(err error) string {
	var resp slack.SlackErrorResponse
	if errors.As(err, &resp) {
		return resp.Err
	}
	return ""
}
