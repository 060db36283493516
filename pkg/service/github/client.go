package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/utils/backoff"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

type client struct {
	gql  *githubv4.Client
	rest *gh.Client
}

var _ Client = &client{}

type factory struct {
	restURL    string
	graphqlURL string
	httpClient *http.Client
}

// Option is a functional option for client configuration
type Option func(*factory)

// WithBaseURL sets the REST API base URL (GitHub Enterprise or tests)
func WithBaseURL(u string) Option {
	return func(f *factory) {
		f.restURL = u
	}
}

// WithGraphQLURL sets the GraphQL endpoint (GitHub Enterprise or tests)
func WithGraphQLURL(u string) Option {
	return func(f *factory) {
		f.graphqlURL = u
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(f *factory) {
		f.httpClient = httpClient
	}
}

func NewFactory(opts ...Option) Factory {
	f := &factory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// New creates a client for a single token
func New(token string, opts ...Option) (Client, error) {
	return NewFactory(opts...).New(token)
}

func (f *factory) New(token string) (Client, error) {
	if token == "" {
		return nil, goerr.New("GitHub token is required")
	}

	ctx := context.Background()
	if f.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	var gql *githubv4.Client
	if f.graphqlURL != "" {
		gql = githubv4.NewEnterpriseClient(f.graphqlURL, httpClient)
	} else {
		gql = githubv4.NewClient(httpClient)
	}

	rest := gh.NewClient(httpClient)
	if f.restURL != "" {
		base := f.restURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid GitHub REST base URL", goerr.V("url", f.restURL))
		}
		rest.BaseURL = u
	}

	return &client{gql: gql, rest: rest}, nil
}

type viewerQuery struct {
	Viewer struct {
		Login      githubv4.String
		DatabaseID githubv4.Int `graphql:"databaseId"`
	}
}

func (c *client) Viewer(ctx context.Context) (*Viewer, error) {
	var q viewerQuery
	if err := c.gql.Query(ctx, &q, nil); err != nil {
		return nil, goerr.Wrap(err, "failed to query viewer")
	}
	if q.Viewer.Login == "" {
		return nil, goerr.New("viewer query returned no login")
	}

	return &Viewer{
		Login:      string(q.Viewer.Login),
		DatabaseID: int64(q.Viewer.DatabaseID),
	}, nil
}

func (c *client) ListNotifications(ctx context.Context, limit int) ([]*Notification, error) {
	opts := &gh.NotificationListOptions{
		All:           false,
		Participating: false,
		ListOptions:   gh.ListOptions{PerPage: limit},
	}

	items, _, err := c.rest.Activity.ListNotifications(ctx, opts)
	if err != nil {
		return nil, wrapError(err, "failed to list notifications")
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	notifications := make([]*Notification, 0, len(items))
	for _, n := range items {
		notifications = append(notifications, &Notification{
			ID:                 n.GetID(),
			Title:              n.GetSubject().GetTitle(),
			Type:               n.GetSubject().GetType(),
			Reason:             n.GetReason(),
			RepositoryFullName: n.GetRepository().GetFullName(),
			UpdatedAt:          n.GetUpdatedAt().Time,
		})
	}
	return notifications, nil
}

// wrapError maps go-github's rate limit errors to backoff.RateLimitError
func wrapError(err error, msg string, opts ...goerr.Option) error {
	var rl *gh.RateLimitError
	if errors.As(err, &rl) {
		wait := time.Until(rl.Rate.Reset.Time)
		if wait < 0 {
			wait = 0
		}
		return backoff.RateLimited(goerr.Wrap(err, msg, opts...), wait)
	}

	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		var wait time.Duration
		if abuse.RetryAfter != nil {
			wait = *abuse.RetryAfter
		}
		return backoff.RateLimited(goerr.Wrap(err, msg, opts...), wait)
	}

	var resp *gh.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil && resp.Response.StatusCode == http.StatusTooManyRequests {
		var wait time.Duration
		if v, convErr := strconv.Atoi(resp.Response.Header.Get("Retry-After")); convErr == nil && v > 0 {
			wait = time.Duration(v) * time.Second
		}
		return backoff.RateLimited(goerr.Wrap(err, msg, opts...), wait)
	}

	return goerr.Wrap(err, msg, opts...)
}
