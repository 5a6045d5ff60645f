// Package announce coordinates claim, composition and publishing of one
// upload notification.
//
// The claim is the only durability boundary. A crash or publish failure
// after a successful claim loses that announcement for good; it is never
// retried. Duplicate posts are prevented at the cost of occasional misses.
package announce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"yt-announcer/internal/models"
)

// DefaultPublishTimeout bounds the external publish call.
const DefaultPublishTimeout = 5 * time.Second

var (
	// ErrPublishFailure wraps every downstream publish error.
	ErrPublishFailure = errors.New("publish failed")
	// ErrNoCredentials means OAuth has not completed for the identity.
	ErrNoCredentials = errors.New("no credentials for identity")
)

type Ledger interface {
	ClaimNotification(ctx context.Context, link string) (bool, error)
}

type Renderer interface {
	Render(ctx context.Context, identity, title, link string) (string, bool, error)
}

type Accounts interface {
	GetSubscription(ctx context.Context, identity string) (models.Subscription, error)
}

// Publisher posts text on behalf of the account owning creds and returns the
// id of the created post.
type Publisher interface {
	Publish(ctx context.Context, creds models.Credentials, text string) (string, error)
}

// Outcome is what happened to a single announcement.
type Outcome int

const (
	OutcomeAlreadyPosted Outcome = iota
	OutcomeNoTemplate
	OutcomePublished
	OutcomePublishFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyPosted:
		return "already posted"
	case OutcomeNoTemplate:
		return "no template"
	case OutcomePublished:
		return "published"
	case OutcomePublishFailed:
		return "publish failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is returned for every announcement that got past the store. Err is
// set only for OutcomePublishFailed and always wraps ErrPublishFailure.
type Result struct {
	Outcome Outcome
	PostID  string
	Err     error
}

type Orchestrator struct {
	ledger    Ledger
	renderer  Renderer
	accounts  Accounts
	publisher Publisher
	timeout   time.Duration
}

func New(ledger Ledger, renderer Renderer, accounts Accounts, publisher Publisher, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Orchestrator{
		ledger:    ledger,
		renderer:  renderer,
		accounts:  accounts,
		publisher: publisher,
		timeout:   timeout,
	}
}

// Announce claims link and, if this caller won the claim, posts the rendered
// template. Publish errors are contained in the Result; the returned error is
// reserved for store and template failures.
func (o *Orchestrator) Announce(ctx context.Context, identity, title, link string) (Result, error) {
	log := logrus.WithFields(logrus.Fields{"identity": identity, "link": link})

	claimed, err := o.ledger.ClaimNotification(ctx, link)
	if err != nil {
		return Result{}, fmt.Errorf("claim notification: %w", err)
	}
	if !claimed {
		log.Info("already posted")
		return Result{Outcome: OutcomeAlreadyPosted}, nil
	}

	text, ok, err := o.renderer.Render(ctx, identity, title, link)
	if err != nil {
		return Result{}, fmt.Errorf("render post: %w", err)
	}
	if !ok {
		log.Info("no template")
		return Result{Outcome: OutcomeNoTemplate}, nil
	}

	postID, err := o.publish(ctx, identity, text)
	if err != nil {
		log.WithError(err).Error("publishing announcement")
		return Result{Outcome: OutcomePublishFailed, Err: err}, nil
	}

	log.WithField("post_id", postID).Info("announcement published")
	return Result{Outcome: OutcomePublished, PostID: postID}, nil
}

func (o *Orchestrator) publish(ctx context.Context, identity, text string) (postID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: publisher panic: %v", ErrPublishFailure, r)
		}
	}()

	sub, err := o.accounts.GetSubscription(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("%w: loading account: %v", ErrPublishFailure, err)
	}
	creds, ok := sub.Credentials()
	if !ok {
		return "", fmt.Errorf("%w: %w", ErrPublishFailure, ErrNoCredentials)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	postID, err = o.publisher.Publish(ctx, creds, text)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPublishFailure, err)
	}
	return postID, nil
}
