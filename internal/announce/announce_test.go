package announce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-announcer/internal/db"
	"yt-announcer/internal/models"
)

type memLedger struct {
	mu    sync.Mutex
	links map[string]bool
	err   error
}

func (l *memLedger) ClaimNotification(ctx context.Context, link string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.links == nil {
		l.links = map[string]bool{}
	}
	if l.links[link] {
		return false, nil
	}
	l.links[link] = true
	return true, nil
}

type stubRenderer struct {
	text string
	ok   bool
	err  error
}

func (r stubRenderer) Render(ctx context.Context, identity, title, link string) (string, bool, error) {
	return r.text + " " + title + " " + link, r.ok, r.err
}

type stubAccounts struct {
	sub models.Subscription
	err error
}

func (a stubAccounts) GetSubscription(ctx context.Context, identity string) (models.Subscription, error) {
	return a.sub, a.err
}

type recordingPublisher struct {
	mu    sync.Mutex
	texts []string
	err   error
	block bool
	panic bool
}

func (p *recordingPublisher) Publish(ctx context.Context, creds models.Credentials, text string) (string, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()
	if p.panic {
		panic("client exploded")
	}
	if p.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if p.err != nil {
		return "", p.err
	}
	return "post-1", nil
}

func (p *recordingPublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.texts)
}

func strPtr(s string) *string { return &s }

var authorized = stubAccounts{sub: models.Subscription{
	Identity:          "default",
	AccessToken:       strPtr("token"),
	AccessTokenSecret: strPtr("secret"),
}}

func TestAnnouncePublishesOnce(t *testing.T) {
	pub := &recordingPublisher{}
	o := New(&memLedger{}, stubRenderer{text: "new:", ok: true}, authorized, pub, time.Second)
	ctx := context.Background()

	res, err := o.Announce(ctx, "default", "T", "http://x")
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, res.Outcome)
	assert.Equal(t, "post-1", res.PostID)
	assert.Equal(t, []string{"new: T http://x"}, pub.texts)

	res, err = o.Announce(ctx, "default", "T", "http://x")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPosted, res.Outcome)
	assert.Equal(t, 1, pub.calls())
}

func TestAnnounceConcurrentClaims(t *testing.T) {
	pub := &recordingPublisher{}
	o := New(&memLedger{}, stubRenderer{ok: true}, authorized, pub, time.Second)

	const callers = 16
	outcomes := make(chan Outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.Announce(context.Background(), "default", "T", "http://x")
			assert.NoError(t, err)
			outcomes <- res.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[Outcome]int{}
	for oc := range outcomes {
		counts[oc]++
	}
	assert.Equal(t, 1, counts[OutcomePublished])
	assert.Equal(t, callers-1, counts[OutcomeAlreadyPosted])
	assert.Equal(t, 1, pub.calls())
}

func TestAnnounceNoTemplate(t *testing.T) {
	pub := &recordingPublisher{}
	o := New(&memLedger{}, stubRenderer{ok: false}, authorized, pub, time.Second)

	res, err := o.Announce(context.Background(), "default", "T", "http://x")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoTemplate, res.Outcome)
	assert.Equal(t, 0, pub.calls())
}

func TestAnnouncePublishFailureKeepsClaim(t *testing.T) {
	ledger := &memLedger{}
	pub := &recordingPublisher{err: errors.New("503 from upstream")}
	o := New(ledger, stubRenderer{ok: true}, authorized, pub, time.Second)
	ctx := context.Background()

	res, err := o.Announce(ctx, "default", "T", "http://x")
	require.NoError(t, err)
	assert.Equal(t, OutcomePublishFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrPublishFailure)

	pub.err = nil
	res, err = o.Announce(ctx, "default", "T", "http://x")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPosted, res.Outcome)
	assert.Equal(t, 1, pub.calls())
}

func TestAnnouncePublishTimeout(t *testing.T) {
	pub := &recordingPublisher{block: true}
	o := New(&memLedger{}, stubRenderer{ok: true}, authorized, pub, 20*time.Millisecond)

	res, err := o.Announce(context.Background(), "default", "T", "http://x")
	require.NoError(t, err)
	assert.Equal(t, OutcomePublishFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestAnnouncePublisherPanic(t *testing.T) {
	pub := &recordingPublisher{panic: true}
	o := New(&memLedger{}, stubRenderer{ok: true}, authorized, pub, time.Second)

	res, err := o.Announce(context.Background(), "default", "T", "http://x")
	require.NoError(t, err)
	assert.Equal(t, OutcomePublishFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrPublishFailure)
}

func TestAnnounceWithoutCredentials(t *testing.T) {
	pub := &recordingPublisher{}
	o := New(&memLedger{}, stubRenderer{ok: true}, stubAccounts{sub: models.Subscription{Identity: "default"}}, pub, time.Second)

	res, err := o.Announce(context.Background(), "default", "T", "http://x")
	require.NoError(t, err)
	assert.Equal(t, OutcomePublishFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrNoCredentials)
	assert.Equal(t, 0, pub.calls())
}

func TestAnnounceUnknownAccount(t *testing.T) {
	o := New(&memLedger{}, stubRenderer{ok: true}, stubAccounts{err: db.ErrNotFound}, &recordingPublisher{}, time.Second)

	res, err := o.Announce(context.Background(), "ghost", "T", "http://x")
	require.NoError(t, err)
	assert.Equal(t, OutcomePublishFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrPublishFailure)
}

func TestAnnounceErrors(t *testing.T) {
	t.Run("ledger failure", func(t *testing.T) {
		o := New(&memLedger{err: errors.New("db down")}, stubRenderer{ok: true}, authorized, &recordingPublisher{}, time.Second)
		_, err := o.Announce(context.Background(), "default", "T", "http://x")
		assert.Error(t, err)
	})

	t.Run("render failure", func(t *testing.T) {
		o := New(&memLedger{}, stubRenderer{err: errors.New("bad placeholder")}, authorized, &recordingPublisher{}, time.Second)
		_, err := o.Announce(context.Background(), "default", "T", "http://x")
		assert.Error(t, err)
	})
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "already posted", OutcomeAlreadyPosted.String())
	assert.Equal(t, "publish failed", OutcomePublishFailed.String())
}
