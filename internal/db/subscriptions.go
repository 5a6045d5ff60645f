package db

import (
	"context"
	"fmt"
	"time"

	"yt-announcer/internal/models"
)

const subscriptionColumns = `id, identity, access_token, access_token_secret, hub_topic, lease_expires_at, created_at, updated_at`

// EnsureSubscription creates the record for identity if it does not exist yet.
func (s *Store) EnsureSubscription(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO subscriptions (identity) VALUES ($1) ON CONFLICT (identity) DO NOTHING`, identity)
	if err != nil {
		return fmt.Errorf("ensure subscription %q: %w", identity, err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, identity string) (models.Subscription, error) {
	sub := models.Subscription{}
	err := s.db.GetContext(ctx, &sub, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE identity = $1`, identity)
	return sub, notFound(err)
}

// UpdateCredentials stores the OAuth token pair, creating the record if needed.
func (s *Store) UpdateCredentials(ctx context.Context, identity string, creds models.Credentials) error {
	query := `
		INSERT INTO subscriptions (identity, access_token, access_token_secret)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			access_token_secret = EXCLUDED.access_token_secret,
			updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, identity, creds.AccessToken, creds.AccessTokenSecret)
	if err != nil {
		return fmt.Errorf("update credentials for %q: %w", identity, err)
	}
	return nil
}

// RecordLease sets topic and expiry together in a single statement so that
// concurrent acknowledgments cannot interleave a half-written lease.
func (s *Store) RecordLease(ctx context.Context, identity, topic string, expiresAt time.Time) error {
	query := `
		UPDATE subscriptions
		SET hub_topic = $1, lease_expires_at = $2, updated_at = NOW()
		WHERE identity = $3
	`
	res, err := s.db.ExecContext(ctx, query, topic, expiresAt, identity)
	if err != nil {
		return fmt.Errorf("record lease for %q: %w", identity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record lease for %q: %w", identity, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSubscriptionsToRenew lists records whose lease expires at or before the
// given instant, soonest first.
func (s *Store) GetSubscriptionsToRenew(ctx context.Context, before time.Time) ([]models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE hub_topic IS NOT NULL
			AND lease_expires_at IS NOT NULL
			AND lease_expires_at <= $1
		ORDER BY lease_expires_at ASC
	`
	var subs []models.Subscription
	if err := s.db.SelectContext(ctx, &subs, query, before); err != nil {
		return nil, fmt.Errorf("list subscriptions to renew: %w", err)
	}
	return subs, nil
}
