package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/utils/backoff"
)

// Sync holds tunables for the polling fetchers
type Sync struct {
	ConversationLimit    int           // Slack conversations read per sync
	MessageLimit         int           // Slack messages read per conversation
	NotificationLimit    int           // GitHub notifications read per sync
	ConversationCooldown time.Duration // pause before each Slack history call
	Backoff              backoff.Policy
}

// DefaultSync returns the limits used when no sync config file is given
func DefaultSync() Sync {
	return Sync{
		ConversationLimit:    3,
		MessageLimit:         5,
		NotificationLimit:    5,
		ConversationCooldown: time.Second,
		Backoff:              backoff.DefaultPolicy(),
	}
}

func (s Sync) Validate() error {
	if s.ConversationLimit < 1 {
		return goerr.New("conversation limit must be positive", goerr.V("conversation_limit", s.ConversationLimit))
	}
	if s.MessageLimit < 1 {
		return goerr.New("message limit must be positive", goerr.V("message_limit", s.MessageLimit))
	}
	if s.NotificationLimit < 1 {
		return goerr.New("notification limit must be positive", goerr.V("notification_limit", s.NotificationLimit))
	}
	if s.ConversationCooldown < 0 {
		return goerr.New("conversation cooldown must not be negative", goerr.V("conversation_cooldown", s.ConversationCooldown))
	}
	if err := s.Backoff.Validate(); err != nil {
		return goerr.Wrap(err, "invalid backoff policy")
	}
	return nil
}
