package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/types"
)

// MessageID is the internal identifier of a stored message
type MessageID string

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

func (id MessageID) String() string {
	return string(id)
}

// Message is a normalized inbound item from a platform.
// (Platform, ExternalID) is unique across the store. Messages are never updated after insert.
type Message struct {
	ID         MessageID      `json:"id"`
	UserID     UserID         `json:"userId"`
	Platform   types.Platform `json:"platform"`
	Content    string         `json:"content"`
	Sender     string         `json:"sender"`
	Timestamp  time.Time      `json:"timestamp"`
	ExternalID string         `json:"messageId"`
	ThreadID   string         `json:"threadId,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// NewMessage builds a candidate message that has not been persisted yet.
func NewMessage(userID UserID, platform types.Platform, externalID, content, sender string, ts time.Time) *Message {
	return &Message{
		ID:         NewMessageID(),
		UserID:     userID,
		Platform:   platform,
		Content:    content,
		Sender:     sender,
		Timestamp:  ts.UTC(),
		ExternalID: externalID,
		CreatedAt:  time.Now().UTC(),
	}
}

// DedupKey returns "<platform>:<external id>"
func (m *Message) DedupKey() string {
	return DedupKey(m.Platform, m.ExternalID)
}

func DedupKey(platform types.Platform, externalID string) string {
	return platform.String() + ":" + externalID
}

func (m *Message) Validate() error {
	if m.ID == "" {
		return goerr.New("message ID is required")
	}
	if m.UserID == "" {
		return goerr.New("message user ID is required", goerr.V("external_id", m.ExternalID))
	}
	if err := m.Platform.Validate(); err != nil {
		return goerr.Wrap(err, "invalid message platform", goerr.V("external_id", m.ExternalID))
	}
	if m.ExternalID == "" {
		return goerr.New("message external ID is required", goerr.V("platform", m.Platform))
	}
	if m.Content == "" {
		return goerr.New("message content is required", goerr.V("external_id", m.ExternalID))
	}
	if m.Sender == "" {
		return goerr.New("message sender is required", goerr.V("external_id", m.ExternalID))
	}
	return nil
}
