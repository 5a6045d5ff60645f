package renewal

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

type fakeStore struct {
	subs    []models.Subscription
	listErr error
	before  time.Time

	// unfiltered returns every record from GetSubscriptionsToRenew.
	unfiltered bool
}

func (s *fakeStore) GetSubscription(ctx context.Context, identity string) (models.Subscription, error) {
	for _, sub := range s.subs {
		if sub.Identity == identity {
			return sub, nil
		}
	}
	return models.Subscription{}, db.ErrNotFound
}

func (s *fakeStore) GetSubscriptionsToRenew(ctx context.Context, before time.Time) ([]models.Subscription, error) {
	s.before = before
	if s.listErr != nil {
		return nil, s.listErr
	}
	var due []models.Subscription
	if s.unfiltered {
		return s.subs, nil
	}
	for _, sub := range s.subs {
		if sub.LeaseExpiresAt != nil && !sub.LeaseExpiresAt.After(before) {
			due = append(due, sub)
		}
	}
	return due, nil
}

type fakeHub struct {
	mu     sync.Mutex
	topics []string
	fail   map[string]error
}

func (h *fakeHub) Subscribe(ctx context.Context, topic string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.topics = append(h.topics, topic)
	return h.fail[topic]
}

func lease(identity, topic string, expires time.Time) models.Subscription {
	return models.Subscription{Identity: identity, HubTopic: &topic, LeaseExpiresAt: &expires}
}

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestSweepOnlyRenewsLeasesInsideMargin(t *testing.T) {
	store := &fakeStore{subs: []models.Subscription{
		lease("a", "topic-a", now.Add(24*time.Hour)),
		lease("b", "topic-b", now.Add(30*24*time.Hour)),
	}}
	hub := &fakeHub{}
	r := New(store, hub, 48*time.Hour, "")
	r.now = func() time.Time { return now }

	report, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(48*time.Hour), store.before)
	assert.Equal(t, []string{"topic-a"}, hub.topics)
	assert.Equal(t, Report{Attempted: 1, Renewed: 1}, report)
}

func TestSweepContinuesAfterFailure(t *testing.T) {
	store := &fakeStore{subs: []models.Subscription{
		lease("a", "topic-a", now.Add(24*time.Hour)),
		lease("b", "topic-b", now.Add(30*24*time.Hour)),
	}}
	hub := &fakeHub{fail: map[string]error{"topic-a": errors.New("hub unavailable")}}
	// A margin wide enough to include both records.
	r := New(store, hub, 31*24*time.Hour, "")
	r.now = func() time.Time { return now }

	report, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"topic-a", "topic-b"}, hub.topics)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Renewed)
	assert.Equal(t, []string{"a"}, report.Failed)
}

func TestSweepAttemptsEveryListedRecord(t *testing.T) {
	store := &fakeStore{unfiltered: true, subs: []models.Subscription{
		lease("a", "topic-a", now.Add(24*time.Hour)),
		lease("b", "topic-b", now.Add(30*24*time.Hour)),
	}}
	hub := &fakeHub{fail: map[string]error{"topic-a": errors.New("connection reset")}}
	r := New(store, hub, 48*time.Hour, "")
	r.now = func() time.Time { return now }

	report, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"topic-a", "topic-b"}, hub.topics)
	assert.Equal(t, []string{"a"}, report.Failed)
}

func TestSweepListFailure(t *testing.T) {
	r := New(&fakeStore{listErr: errors.New("db down")}, &fakeHub{}, 0, "")
	_, err := r.Sweep(context.Background())
	assert.Error(t, err)
}

func TestRenew(t *testing.T) {
	t.Run("uses recorded topic", func(t *testing.T) {
		hub := &fakeHub{}
		r := New(&fakeStore{subs: []models.Subscription{lease("a", "topic-a", now)}}, hub, 0, "default-topic")
		require.NoError(t, r.Renew(context.Background(), "a"))
		assert.Equal(t, []string{"topic-a"}, hub.topics)
	})

	t.Run("falls back to configured topic", func(t *testing.T) {
		hub := &fakeHub{}
		r := New(&fakeStore{subs: []models.Subscription{{Identity: "fresh"}}}, hub, 0, "default-topic")
		require.NoError(t, r.Renew(context.Background(), "fresh"))
		assert.Equal(t, []string{"default-topic"}, hub.topics)
	})

	t.Run("no topic anywhere", func(t *testing.T) {
		r := New(&fakeStore{subs: []models.Subscription{{Identity: "fresh"}}}, &fakeHub{}, 0, "")
		assert.ErrorIs(t, r.Renew(context.Background(), "fresh"), ErrNoTopic)
	})

	t.Run("unknown identity", func(t *testing.T) {
		r := New(&fakeStore{}, &fakeHub{}, 0, "default-topic")
		assert.ErrorIs(t, r.Renew(context.Background(), "ghost"), db.ErrNotFound)
	})

	t.Run("hub failure", func(t *testing.T) {
		boom := errors.New("hub unavailable")
		r := New(&fakeStore{subs: []models.Subscription{lease("a", "topic-a", now)}}, &fakeHub{fail: map[string]error{"topic-a": boom}}, 0, "")
		assert.ErrorIs(t, r.Renew(context.Background(), "a"), boom)
	})
}
