package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"yt-announcer/internal/compose"
	"yt-announcer/internal/db"
	"yt-announcer/internal/intake"
	"yt-announcer/internal/relay"
)

// maxBodyBytes caps webhook and management request bodies.
const maxBodyBytes = 1 << 20

// OAuthFlow is the account-linking handshake.
type OAuthFlow interface {
	Start(ctx context.Context, relink bool) (string, error)
	Complete(ctx context.Context, token, verifier string) error
}

type Handlers struct {
	relay *relay.Service
	oauth OAuthFlow
	now   func() time.Time
}

// New builds the HTTP handlers. oauth may be nil when no Twitter app
// credentials are configured.
func New(svc *relay.Service, oauth OAuthFlow) *Handlers {
	return &Handlers{
		relay: svc,
		oauth: oauth,
		now:   time.Now,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(":)"))
}

func statusFor(err error) int {
	var tmplErr *compose.TemplateError
	switch {
	case errors.Is(err, intake.ErrMalformedPayload),
		errors.Is(err, relay.ErrInvalidVerification),
		errors.Is(err, relay.ErrScheduleTimeRequired),
		errors.Is(err, relay.ErrUnsupportedTrigger),
		errors.Is(err, relay.ErrMissingPreviewContent):
		return http.StatusBadRequest
	case errors.Is(err, relay.ErrVerifyTokenMismatch):
		return http.StatusForbidden
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &tmplErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto a status. Internal errors are logged and hidden.
func writeError(w http.ResponseWriter, log *logrus.Entry, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		writeJSON(w, status, map[string]string{"error": "Internal server error"})
		return
	}
	log.WithError(err).Debug("request rejected")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("error encoding response")
	}
}
