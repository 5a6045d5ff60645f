package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"yt-announcer/internal/models"
)

type templateRequest struct {
	Text          string             `json:"text"`
	Trigger       models.TriggerKind `json:"trigger"`
	ScheduledTime *time.Time         `json:"scheduled_time"`
}

// PutTemplate stores a template for the identity in the path. An omitted
// trigger means new_upload.
func (h *Handlers) PutTemplate(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]
	log := logrus.WithField("identity", identity)

	var req templateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Trigger == "" {
		req.Trigger = models.TriggerNewUpload
	}

	tmpl, err := h.relay.UpsertTemplate(r.Context(), identity, req.Text, req.Trigger, req.ScheduledTime)
	if err != nil {
		writeError(w, log, err)
		return
	}

	log.WithField("trigger", tmpl.Trigger).Info("template saved")
	writeJSON(w, http.StatusOK, tmpl)
}

func (h *Handlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]
	q := r.URL.Query()

	text, err := h.relay.RenderPostPreview(r.Context(), identity, q.Get("title"), q.Get("link"))
	if err != nil {
		writeError(w, logrus.WithField("identity", identity), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (h *Handlers) PostResubscribe(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]

	if err := h.relay.TriggerResubscribe(r.Context(), identity); err != nil {
		writeError(w, logrus.WithField("identity", identity), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Resubscribe queued"})
}
