// Package renewal keeps push subscription leases alive.
package renewal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"yt-announcer/internal/models"
)

// DefaultMargin is how long before expiry a lease becomes eligible for renewal.
const DefaultMargin = 48 * time.Hour

// ErrNoTopic is returned when neither the record nor the configuration names
// a topic to subscribe to.
var ErrNoTopic = errors.New("no topic to subscribe to")

type Store interface {
	GetSubscription(ctx context.Context, identity string) (models.Subscription, error)
	GetSubscriptionsToRenew(ctx context.Context, before time.Time) ([]models.Subscription, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, topic string) error
}

// Report summarises one sweep.
type Report struct {
	Attempted int
	Renewed   int
	Failed    []string
}

type Renewer struct {
	store        Store
	hub          Subscriber
	margin       time.Duration
	defaultTopic string
	now          func() time.Time
}

// New builds a Renewer. defaultTopic is used for records that have never
// been acknowledged by the hub.
func New(store Store, hub Subscriber, margin time.Duration, defaultTopic string) *Renewer {
	if margin <= 0 {
		margin = DefaultMargin
	}
	return &Renewer{
		store:        store,
		hub:          hub,
		margin:       margin,
		defaultTopic: defaultTopic,
		now:          time.Now,
	}
}

// Sweep re-subscribes every lease expiring within the margin. Individual
// failures are logged and counted; only failing to list the records is an
// error.
func (r *Renewer) Sweep(ctx context.Context) (Report, error) {
	now := r.now()
	subs, err := r.store.GetSubscriptionsToRenew(ctx, now.Add(r.margin))
	if err != nil {
		return Report{}, fmt.Errorf("sweep: %w", err)
	}

	var report Report
	for _, sub := range subs {
		report.Attempted++
		log := logrus.WithFields(logrus.Fields{
			"identity": sub.Identity,
			"topic":    sub.Topic(),
			"state":    sub.LeaseState(now, r.margin),
		})
		if err := r.hub.Subscribe(ctx, sub.Topic()); err != nil {
			log.WithError(err).Error("error resubscribing")
			report.Failed = append(report.Failed, sub.Identity)
			continue
		}
		log.Info("resubscribe requested")
		report.Renewed++
	}

	logrus.WithFields(logrus.Fields{
		"attempted": report.Attempted,
		"renewed":   report.Renewed,
		"failed":    len(report.Failed),
	}).Info("finished lease sweep")
	return report, nil
}

// Renew re-subscribes one identity regardless of its expiry.
func (r *Renewer) Renew(ctx context.Context, identity string) error {
	sub, err := r.store.GetSubscription(ctx, identity)
	if err != nil {
		return fmt.Errorf("renew %q: %w", identity, err)
	}

	topic := sub.Topic()
	if topic == "" {
		topic = r.defaultTopic
	}
	if topic == "" {
		return fmt.Errorf("renew %q: %w", identity, ErrNoTopic)
	}

	if err := r.hub.Subscribe(ctx, topic); err != nil {
		return fmt.Errorf("renew %q: %w", identity, err)
	}
	logrus.WithFields(logrus.Fields{
		"identity": identity,
		"topic":    topic,
		"state":    sub.LeaseState(r.now(), r.margin),
	}).Info("resubscribe requested")
	return nil
}
