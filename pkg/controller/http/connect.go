package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/msghub/pkg/usecase"
	"github.com/secmon-lab/msghub/pkg/utils/errutil"
)

const connectStateCookie = "connect_state"

type connectionsResponse struct {
	Connections []*usecase.Connection `json:"connections"`
}

// connectStartHandler redirects the signed-in user to the platform's consent page
func connectStartHandler(connectUC *usecase.ConnectUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := generateState()
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		authURL, err := connectUC.AuthCodeURL(chi.URLParam(r, "platform"), state)
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		setCookie(w, r, connectStateCookie, state, "/api/connect", time.Time{}, stateCookieMaxAge)
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	}
}

// connectCallbackHandler stores the linked account and goes back to the dashboard
func connectCallbackHandler(connectUC *usecase.ConnectUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := sessionUserID(r)
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		if err := checkState(r, connectStateCookie); err != nil {
			handleError(r.Context(), w, err)
			return
		}
		clearCookie(w, r, connectStateCookie, "/api/connect")

		if _, err := connectUC.HandleCallback(r.Context(), userID, chi.URLParam(r, "platform"), r.URL.Query().Get("code")); err != nil {
			handleError(r.Context(), w, err)
			return
		}

		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
	}
}

func listConnectionsHandler(connectUC *usecase.ConnectUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := sessionUserID(r)
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		conns, err := connectUC.ListConnections(r.Context(), userID)
		if err != nil {
			handleError(r.Context(), w, err)
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, connectionsResponse{Connections: conns})
	}
}
