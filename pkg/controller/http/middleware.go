package http

import (
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/model/auth"
	"github.com/secmon-lab/msghub/pkg/usecase"
)

const (
	tokenIDCookie     = "token_id"
	tokenSecretCookie = "token_secret"
)

// authMiddleware resolves the session cookies to a token and stores it in the request context.
// In no-authn mode the configured user is signed in without cookies.
func authMiddleware(authUC AuthUseCase) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := sessionFromRequest(r, authUC)
			if err != nil {
				handleError(r.Context(), w, err)
				return
			}

			ctx := auth.ContextWithToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromRequest(r *http.Request, authUC AuthUseCase) (*auth.Token, error) {
	if authUC == nil {
		return nil, goerr.Wrap(usecase.ErrUnauthenticated, "authentication is not configured")
	}
	if authUC.IsNoAuthn() {
		return authUC.ValidateToken(r.Context(), "", "")
	}

	idCookie, err := r.Cookie(tokenIDCookie)
	if err != nil {
		return nil, goerr.Wrap(usecase.ErrUnauthenticated, "no session cookie")
	}
	secretCookie, err := r.Cookie(tokenSecretCookie)
	if err != nil {
		return nil, goerr.Wrap(usecase.ErrUnauthenticated, "no session cookie")
	}

	token, err := authUC.ValidateToken(r.Context(), auth.TokenID(idCookie.Value), auth.TokenSecret(secretCookie.Value))
	if err != nil {
		return nil, goerr.Wrap(usecase.ErrUnauthenticated, "invalid session", goerr.V("error", err.Error()))
	}
	return token, nil
}

// sessionUserID returns the user of the session stored by authMiddleware
func sessionUserID(r *http.Request) (model.UserID, error) {
	token, err := auth.TokenFromContext(r.Context())
	if err != nil {
		return "", goerr.Wrap(usecase.ErrUnauthenticated, "no session in context")
	}
	return model.UserID(token.Sub), nil
}
