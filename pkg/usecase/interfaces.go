package usecase

import (
	"context"

	"github.com/secmon-lab/msghub/pkg/domain/model/auth"
)

// AuthUseCaseInterface is implemented by the Slack sign-in flow and the no-authn mode
type AuthUseCaseInterface interface {
	GetAuthURL(state string) string
	HandleCallback(ctx context.Context, code string) (*auth.Token, error)
	ValidateToken(ctx context.Context, tokenID auth.TokenID, tokenSecret auth.TokenSecret) (*auth.Token, error)
	Logout(ctx context.Context, tokenID auth.TokenID) error
	IsNoAuthn() bool
}
