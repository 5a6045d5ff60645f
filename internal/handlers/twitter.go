package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"yt-announcer/internal/twitterauth"
)

// StartTwitterAuth redirects to the provider's consent page. Replacing an
// already linked account needs ?relink=true.
func (h *Handlers) StartTwitterAuth(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		http.Error(w, "Twitter login is not configured", http.StatusNotFound)
		return
	}

	relink, _ := strconv.ParseBool(r.URL.Query().Get("relink"))
	authURL, err := h.oauth.Start(r.Context(), relink)
	switch {
	case errors.Is(err, twitterauth.ErrAlreadyLinked):
		http.Error(w, "Account already linked; pass relink=true to replace it", http.StatusConflict)
		return
	case errors.Is(err, twitterauth.ErrTooManyPending):
		http.Error(w, "Too many logins in progress", http.StatusTooManyRequests)
		return
	case err != nil:
		logrus.WithError(err).Error("error starting twitter login")
		http.Error(w, "Could not reach Twitter", http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *Handlers) TwitterCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		http.Error(w, "Twitter login is not configured", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	if q.Get("denied") != "" {
		http.Error(w, "Authorization was denied", http.StatusBadRequest)
		return
	}
	token, verifier := q.Get("oauth_token"), q.Get("oauth_verifier")
	if token == "" || verifier == "" {
		http.Error(w, "oauth_token and oauth_verifier are required", http.StatusBadRequest)
		return
	}

	if err := h.oauth.Complete(r.Context(), token, verifier); err != nil {
		if errors.Is(err, twitterauth.ErrUnknownRequestToken) {
			http.Error(w, "Unknown or expired request token", http.StatusBadRequest)
			return
		}
		if errors.Is(err, twitterauth.ErrAlreadyLinked) {
			logrus.WithError(err).Warn("refusing to overwrite linked twitter account")
			http.Error(w, "Account already linked", http.StatusConflict)
			return
		}
		logrus.WithError(err).Error("error completing twitter login")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Twitter account connected"))
}
