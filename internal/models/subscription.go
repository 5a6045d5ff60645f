package models

import "time"

// LeaseState is the lifecycle position of a push subscription lease.
type LeaseState string

const (
	LeaseUnsubscribed LeaseState = "UNSUBSCRIBED"
	LeasePending      LeaseState = "PENDING"
	LeaseActive       LeaseState = "ACTIVE"
	LeaseExpiring     LeaseState = "EXPIRING"
	LeaseExpired      LeaseState = "EXPIRED"
)

// Subscription is the persisted state of one subscribing identity.
// A non-nil LeaseExpiresAt always comes with a non-nil HubTopic.
type Subscription struct {
	ID                int        `db:"id"`
	Identity          string     `db:"identity"`
	AccessToken       *string    `db:"access_token"`
	AccessTokenSecret *string    `db:"access_token_secret"`
	HubTopic          *string    `db:"hub_topic"`
	LeaseExpiresAt    *time.Time `db:"lease_expires_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Credentials is the social account token pair used to publish posts.
type Credentials struct {
	AccessToken       string
	AccessTokenSecret string
}

// Credentials returns the stored token pair, or false until the OAuth
// callback has populated both halves.
func (s Subscription) Credentials() (Credentials, bool) {
	if s.AccessToken == nil || s.AccessTokenSecret == nil || *s.AccessToken == "" || *s.AccessTokenSecret == "" {
		return Credentials{}, false
	}
	return Credentials{AccessToken: *s.AccessToken, AccessTokenSecret: *s.AccessTokenSecret}, true
}

// Topic returns the watched topic URL or "" when none is recorded.
func (s Subscription) Topic() string {
	if s.HubTopic == nil {
		return ""
	}
	return *s.HubTopic
}

// LeaseState derives the lease position at now. A lease that expires within
// margin of now is EXPIRING and eligible for renewal.
func (s Subscription) LeaseState(now time.Time, margin time.Duration) LeaseState {
	switch {
	case s.HubTopic == nil:
		return LeaseUnsubscribed
	case s.LeaseExpiresAt == nil:
		return LeasePending
	case !s.LeaseExpiresAt.After(now):
		return LeaseExpired
	case !s.LeaseExpiresAt.After(now.Add(margin)):
		return LeaseExpiring
	default:
		return LeaseActive
	}
}
