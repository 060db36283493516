package slack

import (
	"context"
)

// Client is a view of the Slack Web API bound to one token
type Client interface {
	// AuthTest validates the token and returns the identity behind it
	AuthTest(ctx context.Context) (*Identity, error)

	// CheckConversationAccess calls conversations.list with limit 1 to confirm the token may list conversations
	CheckConversationAccess(ctx context.Context) error

	// ListConversations returns up to limit conversations of every type the token can see
	ListConversations(ctx context.Context, limit int) ([]Conversation, error)

	// History returns the newest limit messages of a conversation
	History(ctx context.Context, channelID string, limit int) ([]Message, error)
}

// Factory creates Clients for per-user tokens
type Factory interface {
	New(token string) (Client, error)
}

// Identity is the result of auth.test
type Identity struct {
	URL    string
	Team   string
	TeamID string
	User   string
	UserID string
	BotID  string
}

type Conversation struct {
	ID        string
	Name      string
	IsIM      bool
	IsMPIM    bool
	IsPrivate bool
}

type Message struct {
	Timestamp       string
	ThreadTimestamp string
	User            string
	Text            string
	BotID           string
	SubType         string
}

// ConversationTypes are requested from conversations.list
var ConversationTypes = []string{"public_channel", "private_channel", "mpim", "im"}

// RequiredUserScopes lists the user token scopes needed to read conversations
var RequiredUserScopes = []string{
	"channels:read", "channels:history",
	"groups:read", "groups:history",
	"im:read", "im:history",
	"mpim:read", "mpim:history",
}
