package handlers

import (
	"context"
	"mime"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"yt-announcer/internal/relay"
)

// VerifyHook answers a hub verification request sent as query parameters.
func (h *Handlers) VerifyHook(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, r.URL.Query())
}

// ReceiveHook accepts a push delivery. Form-encoded bodies are
// verification requests; anything else is an Atom notification.
func (h *Handlers) ReceiveHook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		h.verify(w, r, r.PostForm)
		return
	}

	log := logrus.WithFields(logrus.Fields{
		"delivery_id": uuid.NewString(),
		"identity":    h.relay.Identity(),
	})

	// announcing continues even if the hub drops the connection
	ctx := context.WithoutCancel(r.Context())
	report, err := h.relay.HandlePushNotification(ctx, r.Body, h.now())
	if err != nil {
		writeError(w, log, err)
		return
	}

	log.WithFields(logrus.Fields{
		"entries":   report.Entries,
		"announced": len(report.Announced),
	}).Info("notification received")
	for _, res := range report.Announced {
		entry := log.WithFields(logrus.Fields{"outcome": res.Outcome.String(), "post_id": res.PostID})
		if res.Err != nil {
			entry.WithError(res.Err).Error("error publishing post")
			continue
		}
		entry.Debug("announcement finished")
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Received"})
}

func (h *Handlers) verify(w http.ResponseWriter, r *http.Request, values url.Values) {
	v := relay.Verification{
		Mode:         values.Get("hub.mode"),
		Challenge:    values.Get("hub.challenge"),
		VerifyToken:  values.Get("hub.verify_token"),
		Topic:        values.Get("hub.topic"),
		LeaseSeconds: values.Get("hub.lease_seconds"),
		Reason:       values.Get("hub.reason"),
	}
	log := logrus.WithFields(logrus.Fields{"mode": v.Mode, "topic": v.Topic})

	challenge, err := h.relay.HandlePushVerification(r.Context(), v)
	if err != nil {
		if statusFor(err) == http.StatusForbidden {
			log.Warn("verification rejected: token mismatch")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		writeError(w, log, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

func isForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}
