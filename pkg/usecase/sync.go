package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
	"golang.org/x/sync/singleflight"
)

// Fetcher polls one platform for a user and persists what is new.
// Fetch never fails; errors are logged and yield an empty list.
type Fetcher interface {
	Platform() types.Platform
	Fetch(ctx context.Context, userID model.UserID) []*model.Message
}

type SyncUseCase struct {
	repo     interfaces.Repository
	fetchers []Fetcher
	group    singleflight.Group
}

// NewSyncUseCase runs fetchers in the given order
func NewSyncUseCase(repo interfaces.Repository, fetchers ...Fetcher) *SyncUseCase {
	return &SyncUseCase{
		repo:     repo,
		fetchers: fetchers,
	}
}

// SyncAll runs every fetcher for the user and returns the number of new messages.
// Concurrent calls for the same user share one run, which keeps going when
// the caller that started it goes away.
func (uc *SyncUseCase) SyncAll(ctx context.Context, userID model.UserID) (int, error) {
	user, err := uc.repo.User().Get(ctx, userID)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, userID))
	}
	if user == nil {
		return 0, goerr.Wrap(ErrUserNotFound, "user does not exist", goerr.V(UserIDKey, userID))
	}

	// The shared run must outlive whichever caller started it.
	runCtx := context.WithoutCancel(ctx)
	ch := uc.group.DoChan(userID.String(), func() (any, error) {
		return uc.syncAll(runCtx, userID), nil
	})

	select {
	case <-ctx.Done():
		return 0, goerr.Wrap(ctx.Err(), "sync abandoned by caller", goerr.V(UserIDKey, userID))
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		total, _ := res.Val.(int)
		if res.Shared {
			logging.From(ctx).Debug("joined running sync", UserIDKey, userID, "synced", total)
		}
		return total, nil
	}
}

func (uc *SyncUseCase) syncAll(ctx context.Context, userID model.UserID) int {
	logger := logging.From(ctx)

	var total int
	counts := make([]any, 0, len(uc.fetchers)*2)
	for _, f := range uc.fetchers {
		n := len(f.Fetch(ctx, userID))
		total += n
		counts = append(counts, f.Platform().String(), n)
	}

	logger.Info("sync completed", append([]any{UserIDKey, userID, "total", total}, counts...)...)
	return total
}
