package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/model/auth"
	"github.com/secmon-lab/msghub/pkg/usecase"
	"github.com/secmon-lab/msghub/pkg/utils/errutil"
)

type AuthUseCase = usecase.AuthUseCaseInterface

const (
	signInStateCookie = "oauth_state"
	stateCookieMaxAge = 600
)

type userMeResponse struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// generateState generates a random state parameter for OAuth
func generateState() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", goerr.Wrap(err, "failed to generate random state")
	}
	return hex.EncodeToString(bytes), nil
}

func setCookie(w http.ResponseWriter, r *http.Request, name, value, path string, expires time.Time, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
		MaxAge:   maxAge,
	})
}

func clearCookie(w http.ResponseWriter, r *http.Request, name, path string) {
	setCookie(w, r, name, "", path, time.Time{}, -1)
}

// checkState compares the state query parameter with the cookie set when the flow started
func checkState(r *http.Request, cookieName string) error {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return goerr.Wrap(usecase.ErrInvalidPayload, "state cookie not found")
	}
	state := r.URL.Query().Get("state")
	if state == "" || state != c.Value {
		return goerr.Wrap(usecase.ErrInvalidPayload, "invalid state parameter")
	}
	return nil
}

// authLoginHandler handles the OAuth login initiation
func authLoginHandler(authUC AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if authUC.IsNoAuthn() {
			http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
			return
		}

		state, err := generateState()
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}
		setCookie(w, r, signInStateCookie, state, "/", time.Time{}, stateCookieMaxAge)

		http.Redirect(w, r, authUC.GetAuthURL(state), http.StatusTemporaryRedirect)
	}
}

// authCallbackHandler completes Slack sign-in and sets the session cookies
func authCallbackHandler(authUC AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checkState(r, signInStateCookie); err != nil {
			handleError(r.Context(), w, err)
			return
		}
		clearCookie(w, r, signInStateCookie, "/")

		token, err := authUC.HandleCallback(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		setCookie(w, r, tokenIDCookie, token.ID.String(), "/", token.ExpiresAt, 0)
		setCookie(w, r, tokenSecretCookie, token.Secret.String(), "/", token.ExpiresAt, 0)

		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
	}
}

// authLogoutHandler handles user logout
func authLogoutHandler(authUC AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(tokenIDCookie); err == nil {
			if err := authUC.Logout(r.Context(), auth.TokenID(c.Value)); err != nil {
				errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to logout"), http.StatusInternalServerError)
				return
			}
		}

		clearCookie(w, r, tokenIDCookie, "/")
		clearCookie(w, r, tokenSecretCookie, "/")

		writeJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
	}
}

// authMeHandler returns current user information
func authMeHandler(authUC AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := sessionFromRequest(r, authUC)
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, userMeResponse{
			Sub:   token.Sub,
			Email: token.Email,
			Name:  token.Name,
		})
	}
}

// writeJSON writes a JSON response with proper error handling
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		errutil.Handle(ctx, err, "failed to encode JSON response")
	}
}
