package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
)

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func runMessageRepositoryTest(t *testing.T, newRepo repoFactory) {
	t.Run("InsertNew and Get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userID := model.NewUserID()
		extID := uniqueID("1700000000.000100")
		msg := model.NewMessage(userID, types.PlatformSlack, extID, "hello", "U123", time.Unix(1700000000, 0))
		msg.ThreadID = "1699999999.000001"

		inserted, err := repo.Message().InsertNew(ctx, []*model.Message{msg})
		gt.NoError(t, err).Required()
		gt.A(t, inserted).Length(1)

		got, err := repo.Message().Get(ctx, types.PlatformSlack, extID)
		gt.NoError(t, err).Required()
		gt.Value(t, got).NotNil()
		gt.Value(t, got.ID).Equal(msg.ID)
		gt.Value(t, got.Content).Equal("hello")
		gt.Value(t, got.Sender).Equal("U123")
		gt.Value(t, got.ThreadID).Equal("1699999999.000001")
		gt.Bool(t, got.Timestamp.Equal(msg.Timestamp)).True()

		missing, err := repo.Message().Get(ctx, types.PlatformGitHub, extID)
		gt.NoError(t, err)
		gt.Value(t, missing).Nil()
	})

	t.Run("InsertNew skips stored and in-batch duplicates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userID := model.NewUserID()
		a := uniqueID("a")
		b := uniqueID("b")

		first, err := repo.Message().InsertNew(ctx, []*model.Message{
			model.NewMessage(userID, types.PlatformGitHub, a, "first", "org/repo", time.Now()),
		})
		gt.NoError(t, err).Required()
		gt.A(t, first).Length(1)

		second, err := repo.Message().InsertNew(ctx, []*model.Message{
			model.NewMessage(userID, types.PlatformGitHub, a, "again", "org/repo", time.Now()),
			model.NewMessage(userID, types.PlatformGitHub, b, "new", "org/repo", time.Now()),
			model.NewMessage(userID, types.PlatformGitHub, b, "new twice", "org/repo", time.Now()),
		})
		gt.NoError(t, err).Required()
		gt.A(t, second).Length(1)
		gt.Value(t, second[0].ExternalID).Equal(b)
		gt.Value(t, second[0].Content).Equal("new")

		stored, err := repo.Message().Get(ctx, types.PlatformGitHub, a)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.Content).Equal("first")
	})

	t.Run("same external id on different platforms is not a duplicate", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userID := model.NewUserID()
		id := uniqueID("42")
		inserted, err := repo.Message().InsertNew(ctx, []*model.Message{
			model.NewMessage(userID, types.PlatformGitHub, id, "gh", "org/repo", time.Now()),
			model.NewMessage(userID, types.PlatformSlack, id, "slack", "U1", time.Now()),
		})
		gt.NoError(t, err).Required()
		gt.A(t, inserted).Length(2)
	})

	t.Run("ExistingIDs", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userID := model.NewUserID()
		stored := uniqueID("stored")
		_, err := repo.Message().InsertNew(ctx, []*model.Message{
			model.NewMessage(userID, types.PlatformSlack, stored, "x", "U1", time.Now()),
		})
		gt.NoError(t, err).Required()

		existing, err := repo.Message().ExistingIDs(ctx, types.PlatformSlack, []string{stored, uniqueID("fresh")})
		gt.NoError(t, err).Required()
		gt.Number(t, len(existing)).Equal(1)
		_, ok := existing[stored]
		gt.Bool(t, ok).True()

		existing, err = repo.Message().ExistingIDs(ctx, types.PlatformGitHub, []string{stored})
		gt.NoError(t, err).Required()
		gt.Number(t, len(existing)).Equal(0)
	})

	t.Run("ListByUser is newest first and limited", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userID := model.NewUserID()
		base := time.Unix(1700000000, 0)
		var msgs []*model.Message
		for i := 0; i < 5; i++ {
			msgs = append(msgs, model.NewMessage(userID, types.PlatformGitHub, uniqueID(fmt.Sprintf("n%d", i)),
				fmt.Sprintf("message %d", i), "org/repo", base.Add(time.Duration(i)*time.Minute)))
		}
		other := model.NewMessage(model.NewUserID(), types.PlatformGitHub, uniqueID("other"), "other", "org/repo", base)
		_, err := repo.Message().InsertNew(ctx, append(msgs, other))
		gt.NoError(t, err).Required()

		list, err := repo.Message().ListByUser(ctx, userID, 3)
		gt.NoError(t, err).Required()
		gt.A(t, list).Length(3)
		gt.Value(t, list[0].Content).Equal("message 4")
		gt.Value(t, list[1].Content).Equal("message 3")
		gt.Value(t, list[2].Content).Equal("message 2")

		empty, err := repo.Message().ListByUser(ctx, model.NewUserID(), 50)
		gt.NoError(t, err).Required()
		gt.A(t, empty).Length(0)
	})

	t.Run("concurrent InsertNew stores one row", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userID := model.NewUserID()
		extID := uniqueID("race")

		const workers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		total := 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				inserted, err := repo.Message().InsertNew(ctx, []*model.Message{
					model.NewMessage(userID, types.PlatformSlack, extID, "race", "U1", time.Now()),
				})
				if err != nil {
					t.Errorf("InsertNew failed: %v", err)
					return
				}
				mu.Lock()
				total += len(inserted)
				mu.Unlock()
			}()
		}
		wg.Wait()

		gt.Number(t, total).Equal(1)
		list, err := repo.Message().ListByUser(ctx, userID, 50)
		gt.NoError(t, err).Required()
		gt.A(t, list).Length(1)
	})
}

func TestMessageRepository(t *testing.T) {
	runAllBackends(t, runMessageRepositoryTest)
}
