package usecase

import (
	"context"
	"sync"

	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model/auth"
)

// NoAuthnUseCase signs every request in as one fixed user (for development/testing).
// The user is created in the repository on first use.
type NoAuthnUseCase struct {
	repo  interfaces.Repository
	email string
	name  string

	mu    sync.Mutex
	token *auth.Token
}

var _ AuthUseCaseInterface = &NoAuthnUseCase{}

func NewNoAuthnUseCase(repo interfaces.Repository, email, name string) *NoAuthnUseCase {
	return &NoAuthnUseCase{
		repo:  repo,
		email: email,
		name:  name,
	}
}

// GetAuthURL returns a dummy URL (should not be called in no-auth mode)
func (uc *NoAuthnUseCase) GetAuthURL(state string) string {
	return "/"
}

func (uc *NoAuthnUseCase) HandleCallback(ctx context.Context, code string) (*auth.Token, error) {
	return uc.userToken(ctx)
}

// ValidateToken ignores the cookies and returns the configured user's token
func (uc *NoAuthnUseCase) ValidateToken(ctx context.Context, tokenID auth.TokenID, tokenSecret auth.TokenSecret) (*auth.Token, error) {
	return uc.userToken(ctx)
}

// Logout does nothing in no-auth mode
func (uc *NoAuthnUseCase) Logout(ctx context.Context, tokenID auth.TokenID) error {
	return nil
}

// IsNoAuthn returns true for NoAuthnUseCase
func (uc *NoAuthnUseCase) IsNoAuthn() bool {
	return true
}

func (uc *NoAuthnUseCase) userToken(ctx context.Context) (*auth.Token, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.token != nil {
		return uc.token, nil
	}

	user, err := ensureUser(ctx, uc.repo, uc.email, uc.name)
	if err != nil {
		return nil, err
	}
	uc.token = auth.NewToken(user.ID.String(), user.Email, user.Name)
	return uc.token, nil
}
