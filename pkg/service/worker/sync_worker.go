package worker

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
)

// Syncer runs one polling sync for a user
type Syncer interface {
	SyncAll(ctx context.Context, userID model.UserID) (int, error)
}

// SyncWorker periodically syncs every user that has linked at least one platform.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - Overlap with browser-triggered syncs is harmless; inserts are deduplicated
type SyncWorker struct {
	repo     interfaces.Repository
	syncer   Syncer
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSyncWorker(repo interfaces.Repository, syncer Syncer, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		repo:     repo,
		syncer:   syncer,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background loop. It does not block server startup.
func (w *SyncWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return goerr.New("sync interval must be positive", goerr.V("interval", w.interval))
	}

	logging.Default().Info("sync worker starting", "interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *SyncWorker) Stop() {
	logging.Default().Info("sync worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("sync worker stopped")
}

func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				logging.Default().Error("sync cycle failed (will retry next interval)", "error", err.Error())
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("sync worker context cancelled")
			return
		}
	}
}

// RunOnce syncs all linked users once. A failing user does not stop the cycle.
func (w *SyncWorker) RunOnce(ctx context.Context) error {
	startTime := time.Now()

	users, err := w.repo.User().List(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list users")
	}

	var synced, total int
	for _, user := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		creds, err := w.repo.Credential().ListByUser(ctx, user.ID)
		if err != nil {
			logging.Default().Warn("failed to list credentials", "user_id", user.ID, "error", err.Error())
			continue
		}
		if len(creds) == 0 {
			continue
		}

		n, err := w.syncer.SyncAll(ctx, user.ID)
		if err != nil {
			logging.Default().Warn("sync failed", "user_id", user.ID, "error", err.Error())
			continue
		}
		synced++
		total += n
	}

	logging.Default().Info("sync cycle completed",
		"users", synced,
		"new_messages", total,
		"duration", time.Since(startTime).String())

	return nil
}
