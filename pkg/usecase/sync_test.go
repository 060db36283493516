package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	"github.com/secmon-lab/msghub/pkg/repository/memory"
	"github.com/secmon-lab/msghub/pkg/service/github"
	"github.com/secmon-lab/msghub/pkg/service/slack"
	"github.com/secmon-lab/msghub/pkg/usecase"
)

func newSyncUseCases(repo *memory.Memory, s *fakeSlack, g *fakeGitHub) *usecase.UseCases {
	return usecase.New(repo,
		usecase.WithSyncConfig(testSyncConfig()),
		usecase.WithSlackClientFactory(s),
		usecase.WithGitHubClientFactory(g),
	)
}

func TestSyncAll(t *testing.T) {
	ctx := context.Background()

	t.Run("total equals the sum of each fetcher run alone", func(t *testing.T) {
		slackState := func() *fakeSlack {
			f := newFakeSlack()
			f.conversations = []slack.Conversation{{ID: "C1"}}
			f.history["C1"] = []slack.Message{
				{Timestamp: "1700000000.000100", User: "U9", Text: "a"},
				{Timestamp: "1700000001.000100", User: "U9", Text: "b"},
			}
			return f
		}
		githubState := func() *fakeGitHub {
			return &fakeGitHub{notifications: notifications(3)}
		}

		isolated := func(link func(*testing.T, *memory.Memory, model.UserID), fetch func(*memory.Memory) usecase.Fetcher) int {
			repo := memory.New()
			user := newUser(t, repo, "a@example.com")
			link(t, repo, user.ID)
			return len(fetch(repo).Fetch(ctx, user.ID))
		}

		slackOnly := isolated(
			func(t *testing.T, r *memory.Memory, id model.UserID) { linkSlack(t, r, id, "T001", "U001") },
			func(r *memory.Memory) usecase.Fetcher {
				return usecase.NewSlackFetcher(r, slackState(), usecase.NewMessageUseCase(r), testSyncConfig())
			})
		githubOnly := isolated(
			func(t *testing.T, r *memory.Memory, id model.UserID) { linkGitHub(t, r, id, "1", "octocat") },
			func(r *memory.Memory) usecase.Fetcher {
				return usecase.NewGitHubFetcher(r, githubState(), usecase.NewMessageUseCase(r), testSyncConfig())
			})

		repo := memory.New()
		user := newUser(t, repo, "a@example.com")
		linkSlack(t, repo, user.ID, "T001", "U001")
		linkGitHub(t, repo, user.ID, "1", "octocat")

		uc := newSyncUseCases(repo, slackState(), githubState())
		total, err := uc.Sync.SyncAll(ctx, user.ID)
		gt.NoError(t, err).Required()
		gt.Number(t, total).Equal(slackOnly + githubOnly)
		gt.Number(t, total).Equal(5)
	})

	t.Run("one failing platform does not fail the sync", func(t *testing.T) {
		repo := memory.New()
		user := newUser(t, repo, "a@example.com")
		linkSlack(t, repo, user.ID, "T001", "U001")
		linkGitHub(t, repo, user.ID, "1", "octocat")

		s := newFakeSlack()
		s.authErr = errBoom
		uc := newSyncUseCases(repo, s, &fakeGitHub{notifications: notifications(2)})

		total, err := uc.Sync.SyncAll(ctx, user.ID)
		gt.NoError(t, err).Required()
		gt.Number(t, total).Equal(2)
	})

	t.Run("concurrent syncs persist one message for one new item", func(t *testing.T) {
		repo := memory.New()
		user := newUser(t, repo, "a@example.com")
		linkGitHub(t, repo, user.ID, "1", "octocat")

		uc := newSyncUseCases(repo, newFakeSlack(), &fakeGitHub{notifications: notifications(1)})

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := uc.Sync.SyncAll(ctx, user.ID)
				gt.NoError(t, err)
			}()
		}
		wg.Wait()

		gt.Number(t, countMessages(t, repo, user.ID)).Equal(1)
	})

	t.Run("concurrent fetchers on separate use cases still persist once", func(t *testing.T) {
		repo := memory.New()
		user := newUser(t, repo, "a@example.com")
		linkGitHub(t, repo, user.ID, "1", "octocat")

		a := newSyncUseCases(repo, newFakeSlack(), &fakeGitHub{notifications: notifications(1)})
		b := newSyncUseCases(repo, newFakeSlack(), &fakeGitHub{notifications: notifications(1)})

		var wg sync.WaitGroup
		var mu sync.Mutex
		var total int
		for _, uc := range []*usecase.UseCases{a, b} {
			wg.Add(1)
			go func(uc *usecase.UseCases) {
				defer wg.Done()
				n, err := uc.Sync.SyncAll(ctx, user.ID)
				gt.NoError(t, err)
				mu.Lock()
				total += n
				mu.Unlock()
			}(uc)
		}
		wg.Wait()

		gt.Number(t, total).Equal(1)
		gt.Number(t, countMessages(t, repo, user.ID)).Equal(1)
	})

	t.Run("joiner keeps its result when the first caller cancels", func(t *testing.T) {
		repo := memory.New()
		user := newUser(t, repo, "a@example.com")
		fetcher := &blockingFetcher{
			started: make(chan struct{}),
			release: make(chan struct{}),
		}
		uc := usecase.NewSyncUseCase(repo, fetcher)

		leaderCtx, cancel := context.WithCancel(ctx)
		leaderDone := make(chan error, 1)
		go func() {
			_, err := uc.SyncAll(leaderCtx, user.ID)
			leaderDone <- err
		}()
		<-fetcher.started

		joined := make(chan int, 1)
		go func() {
			n, err := uc.SyncAll(ctx, user.ID)
			gt.NoError(t, err)
			joined <- n
		}()
		time.Sleep(50 * time.Millisecond)

		cancel()
		gt.Bool(t, errors.Is(<-leaderDone, context.Canceled)).True()
		close(fetcher.release)

		gt.Number(t, <-joined).Equal(1)
		gt.Number(t, fetcher.calls.Load()).Equal(int32(1))
	})

	t.Run("unknown user", func(t *testing.T) {
		uc := newSyncUseCases(memory.New(), newFakeSlack(), &fakeGitHub{})
		_, err := uc.Sync.SyncAll(ctx, model.NewUserID())
		gt.Bool(t, errors.Is(err, usecase.ErrUserNotFound)).True()
	})

	t.Run("user without links syncs nothing", func(t *testing.T) {
		repo := memory.New()
		user := newUser(t, repo, "a@example.com")
		uc := newSyncUseCases(repo, newFakeSlack(), &fakeGitHub{notifications: notifications(1)})

		total, err := uc.Sync.SyncAll(ctx, user.ID)
		gt.NoError(t, err).Required()
		gt.Number(t, total).Equal(0)
	})
}

// blockingFetcher holds its first run until release is closed
type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func (f *blockingFetcher) Platform() types.Platform { return types.PlatformSlack }

func (f *blockingFetcher) Fetch(ctx context.Context, userID model.UserID) []*model.Message {
	f.calls.Add(1)
	f.once.Do(func() { close(f.started) })
	select {
	case <-f.release:
		return []*model.Message{{UserID: userID, Platform: types.PlatformSlack, ExternalID: "1700000000.000100"}}
	case <-ctx.Done():
		return nil
	}
}

var _ github.Factory = &fakeGitHub{}
var _ slack.Factory = &fakeSlack{}
