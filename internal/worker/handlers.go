package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"yt-announcer/internal/db"
	"yt-announcer/internal/renewal"
	"yt-announcer/pkg/tasks"
)

type Renewer interface {
	Sweep(ctx context.Context) (renewal.Report, error)
	Renew(ctx context.Context, identity string) error
}

type TaskHandler struct {
	renewer Renewer
}

func NewTaskHandler(renewer Renewer) *TaskHandler {
	return &TaskHandler{renewer: renewer}
}

func (h *TaskHandler) HandleSweepLeasesTask(ctx context.Context, t *asynq.Task) error {
	logrus.Info("sweeping subscription leases")

	report, err := h.renewer.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep leases: %w", err)
	}
	if len(report.Failed) > 0 {
		logrus.WithField("identities", report.Failed).Warn("some leases were not renewed; next sweep retries them")
	}
	return nil
}

// HandleRenewLeaseTask renews one identity. Hub failures are logged and
// swallowed so asynq does not retry them; the periodic sweep does.
func (h *TaskHandler) HandleRenewLeaseTask(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.ParseRenewLeasePayload(t)
	if err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}

	log := logrus.WithField("identity", p.Identity)
	err = h.renewer.Renew(ctx, p.Identity)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrNotFound), errors.Is(err, renewal.ErrNoTopic):
		log.WithError(err).Warn("cannot renew lease")
		return nil
	default:
		log.WithError(err).Error("error resubscribing")
		return nil
	}
}
