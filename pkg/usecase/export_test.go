package usecase

import (
	"context"
	"time"

	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
)

// ParseSlackTimestamp is exported for testing
var ParseSlackTimestamp = parseSlackTimestamp

// EnsureUser is exported for testing
func EnsureUser(ctx context.Context, repo interfaces.Repository, email, name string) (*model.User, error) {
	return ensureUser(ctx, repo, email, name)
}

// SetClock replaces the clock used for GitHub webhook timestamps
func (uc *WebhookUseCase) SetClock(now func() time.Time) {
	uc.now = now
}
