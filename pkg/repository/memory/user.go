package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
)

type userRepository struct {
	mu      sync.RWMutex
	users   map[model.UserID]model.User
	byEmail map[string]model.UserID
}

var _ interfaces.UserRepository = &userRepository{}

func newUserRepository() *userRepository {
	return &userRepository{
		users:   make(map[model.UserID]model.User),
		byEmail: make(map[string]model.UserID),
	}
}

func (r *userRepository) Put(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byEmail[user.Email]; ok && owner != user.ID {
		return goerr.New("email already belongs to another user", goerr.V("email", user.Email), goerr.V("user_id", user.ID))
	}
	if prev, ok := r.users[user.ID]; ok && prev.Email != user.Email {
		delete(r.byEmail, prev.Email)
	}

	r.users[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *userRepository) Get(ctx context.Context, id model.UserID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	user := r.users[id]
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		user := u
		users = append(users, &user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}
