// Package relay ties intake, composition, announcement and lease tracking
// together behind the operations the HTTP layer exposes.
package relay

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"yt-announcer/internal/announce"
	"yt-announcer/internal/compose"
	"yt-announcer/internal/db"
	"yt-announcer/internal/intake"
	"yt-announcer/internal/models"
	"yt-announcer/pkg/tasks"
)

var (
	ErrVerifyTokenMismatch   = errors.New("verify token mismatch")
	ErrInvalidVerification   = errors.New("invalid verification request")
	ErrScheduleTimeRequired  = errors.New("scheduled_time is required for schedule triggers")
	ErrUnsupportedTrigger    = errors.New("trigger kind is not supported")
	ErrMissingPreviewContent = errors.New("title and link are required")
)

type Store interface {
	GetSubscription(ctx context.Context, identity string) (models.Subscription, error)
	RecordLease(ctx context.Context, identity, topic string, expiresAt time.Time) error
	UpsertNewUploadTemplate(ctx context.Context, identity, body string) (models.PostTemplate, error)
	CreateScheduledTemplate(ctx context.Context, identity, body string, at time.Time) (models.PostTemplate, error)
}

type Announcer interface {
	Announce(ctx context.Context, identity, title, link string) (announce.Result, error)
}

type Renderer interface {
	Render(ctx context.Context, identity, title, link string) (string, bool, error)
}

// Config holds the values the relay needs from process configuration.
type Config struct {
	Identity    string
	VerifyToken string
}

// Service is the process-wide context shared by every request handler.
type Service struct {
	cfg       Config
	store     Store
	intake    *intake.Intake
	renderer  Renderer
	announcer Announcer
	enqueuer  tasks.TaskEnqueuer
	now       func() time.Time
}

func New(cfg Config, store Store, in *intake.Intake, renderer Renderer, announcer Announcer, enqueuer tasks.TaskEnqueuer) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		intake:    in,
		renderer:  renderer,
		announcer: announcer,
		enqueuer:  enqueuer,
		now:       time.Now,
	}
}

// Identity is the account notifications are announced for.
func (s *Service) Identity() string {
	return s.cfg.Identity
}

// Verification carries the hub.* parameters of a verification request.
type Verification struct {
	Mode         string
	Challenge    string
	VerifyToken  string
	Topic        string
	LeaseSeconds string
	Reason       string
}

// HandlePushVerification validates a hub verification request and returns
// the challenge to echo. A subscribe acknowledgment extends the lease. A
// denial carries no token or challenge; it is logged and acknowledged with
// an empty echo.
func (s *Service) HandlePushVerification(ctx context.Context, v Verification) (string, error) {
	if v.Mode == "denied" {
		logrus.WithFields(logrus.Fields{
			"identity": s.cfg.Identity,
			"topic":    v.Topic,
			"reason":   v.Reason,
		}).Warn("subscription denied by hub")
		return "", nil
	}
	if subtle.ConstantTimeCompare([]byte(v.VerifyToken), []byte(s.cfg.VerifyToken)) != 1 {
		return "", ErrVerifyTokenMismatch
	}
	if v.Challenge == "" {
		return "", fmt.Errorf("%w: missing hub.challenge", ErrInvalidVerification)
	}

	switch v.Mode {
	case "subscribe":
		if v.Topic == "" {
			return "", fmt.Errorf("%w: missing hub.topic", ErrInvalidVerification)
		}
		seconds, err := strconv.ParseInt(strings.TrimSpace(v.LeaseSeconds), 10, 64)
		if err != nil || seconds <= 0 {
			return "", fmt.Errorf("%w: bad hub.lease_seconds %q", ErrInvalidVerification, v.LeaseSeconds)
		}
		expiresAt := s.now().Add(time.Duration(seconds) * time.Second)
		if err := s.store.RecordLease(ctx, s.cfg.Identity, v.Topic, expiresAt); err != nil {
			return "", fmt.Errorf("record lease: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"identity":   s.cfg.Identity,
			"topic":      v.Topic,
			"expires_at": expiresAt,
		}).Info("subscription lease acknowledged")
	case "unsubscribe":
		logrus.WithField("topic", v.Topic).Info("unsubscribe acknowledged")
	default:
		return "", fmt.Errorf("%w: unknown hub.mode %q", ErrInvalidVerification, v.Mode)
	}
	return v.Challenge, nil
}

// NotificationReport describes what happened to one push delivery.
type NotificationReport struct {
	Entries   int
	Announced []announce.Result
}

// HandlePushNotification parses the whole body, then announces every fresh
// entry. Only a malformed body is an error; downstream failures are logged.
func (s *Service) HandlePushNotification(ctx context.Context, body io.Reader, receivedAt time.Time) (NotificationReport, error) {
	events, err := s.intake.Parse(body)
	if err != nil {
		return NotificationReport{}, err
	}

	report := NotificationReport{Entries: len(events)}
	for _, ev := range s.intake.Fresh(events, receivedAt) {
		res, err := s.announcer.Announce(ctx, s.cfg.Identity, ev.Title, ev.Link)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"identity": s.cfg.Identity,
				"link":     ev.Link,
			}).Error("error announcing upload")
			continue
		}
		report.Announced = append(report.Announced, res)
	}
	return report, nil
}

// RenderPostPreview renders the identity's template without claiming or
// posting anything. A missing template is db.ErrNotFound.
func (s *Service) RenderPostPreview(ctx context.Context, identity, title, link string) (string, error) {
	if title == "" || link == "" {
		return "", ErrMissingPreviewContent
	}
	text, ok, err := s.renderer.Render(ctx, identity, title, link)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("template for %q: %w", identity, db.ErrNotFound)
	}
	return text, nil
}

// UpsertTemplate validates and stores a template. New-upload templates
// overwrite the previous one; schedule templates are added.
func (s *Service) UpsertTemplate(ctx context.Context, identity, text string, trigger models.TriggerKind, scheduledAt *time.Time) (models.PostTemplate, error) {
	switch trigger {
	case models.TriggerNewUpload:
	case models.TriggerSchedule:
		if scheduledAt == nil {
			return models.PostTemplate{}, ErrScheduleTimeRequired
		}
	default:
		return models.PostTemplate{}, fmt.Errorf("%w: %q", ErrUnsupportedTrigger, trigger)
	}
	if err := compose.Validate(text); err != nil {
		return models.PostTemplate{}, err
	}

	if trigger == models.TriggerSchedule {
		return s.store.CreateScheduledTemplate(ctx, identity, text, *scheduledAt)
	}
	return s.store.UpsertNewUploadTemplate(ctx, identity, text)
}

// TriggerResubscribe queues a lease renewal for identity. The hub confirms
// later through HandlePushVerification.
func (s *Service) TriggerResubscribe(ctx context.Context, identity string) error {
	if _, err := s.store.GetSubscription(ctx, identity); err != nil {
		return err
	}

	task, err := tasks.NewRenewLeaseTask(identity)
	if err != nil {
		return fmt.Errorf("create renew task: %w", err)
	}
	info, err := s.enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue renew task: %w", err)
	}
	logrus.WithFields(logrus.Fields{"identity": identity, "task_id": info.ID}).Info("resubscribe queued")
	return nil
}
