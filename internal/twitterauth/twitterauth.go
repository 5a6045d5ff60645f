// Package twitterauth runs the OAuth1 three-legged handshake that gives the
// relay user-context credentials for posting.
package twitterauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/garyburd/go-oauth/oauth"
	"github.com/sirupsen/logrus"

	"yt-announcer/internal/db"
	"yt-announcer/internal/models"
)

var (
	// ErrUnknownRequestToken is returned when a callback carries a token this
	// process never issued, one that expired, or one already exchanged.
	ErrUnknownRequestToken = errors.New("unknown oauth request token")
	// ErrAlreadyLinked is returned when the identity has credentials and the
	// handshake was not started as a relink.
	ErrAlreadyLinked = errors.New("account already linked")
	// ErrTooManyPending is returned when too many handshakes are in flight.
	ErrTooManyPending = errors.New("too many pending oauth handshakes")
)

const (
	// PendingTTL is how long a request token stays exchangeable.
	PendingTTL = 15 * time.Minute
	// MaxPending caps unexchanged request tokens held in memory.
	MaxPending = 16
)

// Endpoints are the provider's OAuth1 URLs.
type Endpoints struct {
	RequestToken string
	Authorize    string
	AccessToken  string
}

var TwitterEndpoints = Endpoints{
	RequestToken: "https://api.twitter.com/oauth/request_token",
	Authorize:    "https://api.twitter.com/oauth/authorize",
	AccessToken:  "https://api.twitter.com/oauth/access_token",
}

type CredentialStore interface {
	GetSubscription(ctx context.Context, identity string) (models.Subscription, error)
	UpdateCredentials(ctx context.Context, identity string, creds models.Credentials) error
}

type pendingToken struct {
	secret  string
	relink  bool
	expires time.Time
}

type Flow struct {
	client      oauth.Client
	httpClient  *http.Client
	callbackURL string
	identity    string
	store       CredentialStore
	now         func() time.Time

	mu      sync.Mutex
	pending map[string]pendingToken
}

// NewFlow prepares a handshake that stores the resulting credentials on
// identity's record.
func NewFlow(apiKey, apiKeySecret, callbackURL, identity string, endpoints Endpoints, store CredentialStore) *Flow {
	return &Flow{
		client: oauth.Client{
			TemporaryCredentialRequestURI: endpoints.RequestToken,
			ResourceOwnerAuthorizationURI: endpoints.Authorize,
			TokenRequestURI:               endpoints.AccessToken,
			Credentials:                   oauth.Credentials{Token: apiKey, Secret: apiKeySecret},
		},
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		callbackURL: callbackURL,
		identity:    identity,
		store:       store,
		now:         time.Now,
		pending:     make(map[string]pendingToken),
	}
}

// Start obtains temporary credentials and returns the URL the account owner
// must visit to grant access. Unless relink is set, an identity that already
// has credentials is refused.
func (f *Flow) Start(ctx context.Context, relink bool) (string, error) {
	if !relink {
		if err := f.refuseIfLinked(ctx); err != nil {
			return "", err
		}
	}
	if !f.hasRoom() {
		return "", ErrTooManyPending
	}

	temp, err := f.client.RequestTemporaryCredentials(f.httpClient, f.callbackURL, nil)
	if err != nil {
		return "", fmt.Errorf("request temporary credentials: %w", err)
	}

	f.mu.Lock()
	f.prune()
	if len(f.pending) >= MaxPending {
		f.mu.Unlock()
		return "", ErrTooManyPending
	}
	f.pending[temp.Token] = pendingToken{secret: temp.Secret, relink: relink, expires: f.now().Add(PendingTTL)}
	f.mu.Unlock()

	return f.client.AuthorizationURL(temp, nil), nil
}

// Complete exchanges the verifier for access credentials and stores them.
func (f *Flow) Complete(ctx context.Context, token, verifier string) error {
	f.mu.Lock()
	p, ok := f.pending[token]
	delete(f.pending, token)
	f.mu.Unlock()
	if !ok || !f.now().Before(p.expires) {
		return ErrUnknownRequestToken
	}

	if !p.relink {
		if err := f.refuseIfLinked(ctx); err != nil {
			return err
		}
	}

	creds, values, err := f.client.RequestToken(f.httpClient, &oauth.Credentials{Token: token, Secret: p.secret}, verifier)
	if err != nil {
		return fmt.Errorf("request access token: %w", err)
	}

	err = f.store.UpdateCredentials(ctx, f.identity, models.Credentials{
		AccessToken:       creds.Token,
		AccessTokenSecret: creds.Secret,
	})
	if err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"identity":    f.identity,
		"screen_name": values.Get("screen_name"),
		"relink":      p.relink,
	}).Info("twitter account connected")
	return nil
}

func (f *Flow) refuseIfLinked(ctx context.Context) error {
	sub, err := f.store.GetSubscription(ctx, f.identity)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	if _, ok := sub.Credentials(); ok {
		return ErrAlreadyLinked
	}
	return nil
}

func (f *Flow) hasRoom() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prune()
	return len(f.pending) < MaxPending
}

// prune drops expired request tokens. Callers hold f.mu.
func (f *Flow) prune() {
	now := f.now()
	for token, p := range f.pending {
		if !now.Before(p.expires) {
			delete(f.pending, token)
		}
	}
}
