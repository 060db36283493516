package github

import (
	"context"
	"time"
)

// Client reads the authenticated user's GitHub data
type Client interface {
	// Viewer validates the token and returns the account behind it
	Viewer(ctx context.Context) (*Viewer, error)

	// ListNotifications returns up to limit unread notifications, excluding participating-only ones
	ListNotifications(ctx context.Context, limit int) ([]*Notification, error)
}

// Factory creates Clients for per-user OAuth tokens
type Factory interface {
	New(token string) (Client, error)
}

type Viewer struct {
	Login      string
	DatabaseID int64
}

type Notification struct {
	ID                 string
	Title              string
	Type               string // Issue, PullRequest, Release...
	Reason             string
	RepositoryFullName string
	UpdatedAt          time.Time
}
