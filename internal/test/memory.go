package test

import (
	"context"
	"sync"
	"time"

	"yt-announcer/internal/db"
	"yt-announcer/internal/models"
)

// MemoryStore is an in-process stand-in for *db.Store with the same
// not-found and claim semantics.
type MemoryStore struct {
	mu            sync.Mutex
	subscriptions map[string]models.Subscription
	notifications map[string]time.Time
	templates     map[string]models.PostTemplate
	scheduled     []models.PostTemplate
	nextID        int
}

func NewMemoryStore(identities ...string) *MemoryStore {
	s := &MemoryStore{
		subscriptions: map[string]models.Subscription{},
		notifications: map[string]time.Time{},
		templates:     map[string]models.PostTemplate{},
	}
	for _, id := range identities {
		s.EnsureSubscription(context.Background(), id)
	}
	return s
}

func (s *MemoryStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) EnsureSubscription(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[identity]; !ok {
		now := time.Now()
		s.subscriptions[identity] = models.Subscription{ID: s.id(), Identity: identity, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (s *MemoryStore) GetSubscription(ctx context.Context, identity string) (models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[identity]
	if !ok {
		return models.Subscription{}, db.ErrNotFound
	}
	return sub, nil
}

func (s *MemoryStore) UpdateCredentials(ctx context.Context, identity string, creds models.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[identity]
	if !ok {
		sub = models.Subscription{ID: s.id(), Identity: identity, CreatedAt: time.Now()}
	}
	token, secret := creds.AccessToken, creds.AccessTokenSecret
	sub.AccessToken, sub.AccessTokenSecret = &token, &secret
	sub.UpdatedAt = time.Now()
	s.subscriptions[identity] = sub
	return nil
}

func (s *MemoryStore) RecordLease(ctx context.Context, identity, topic string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[identity]
	if !ok {
		return db.ErrNotFound
	}
	sub.HubTopic, sub.LeaseExpiresAt = &topic, &expiresAt
	sub.UpdatedAt = time.Now()
	s.subscriptions[identity] = sub
	return nil
}

func (s *MemoryStore) GetSubscriptionsToRenew(ctx context.Context, before time.Time) ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.Subscription
	for _, sub := range s.subscriptions {
		if sub.HubTopic != nil && sub.LeaseExpiresAt != nil && !sub.LeaseExpiresAt.After(before) {
			due = append(due, sub)
		}
	}
	return due, nil
}

func (s *MemoryStore) ClaimNotification(ctx context.Context, link string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[link]; ok {
		return false, nil
	}
	s.notifications[link] = time.Now()
	return true, nil
}

// Claimed reports whether link is in the ledger.
func (s *MemoryStore) Claimed(link string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notifications[link]
	return ok
}

func (s *MemoryStore) UpsertNewUploadTemplate(ctx context.Context, identity, body string) (models.PostTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	tmpl, ok := s.templates[identity]
	if !ok {
		tmpl = models.PostTemplate{ID: s.id(), Identity: identity, Trigger: models.TriggerNewUpload, CreatedAt: now}
	}
	tmpl.Body = body
	tmpl.UpdatedAt = now
	s.templates[identity] = tmpl
	return tmpl, nil
}

func (s *MemoryStore) CreateScheduledTemplate(ctx context.Context, identity, body string, at time.Time) (models.PostTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	tmpl := models.PostTemplate{ID: s.id(), Identity: identity, Trigger: models.TriggerSchedule, Body: body, ScheduledAt: &at, CreatedAt: now, UpdatedAt: now}
	s.scheduled = append(s.scheduled, tmpl)
	return tmpl, nil
}

func (s *MemoryStore) GetNewUploadTemplate(ctx context.Context, identity string) (models.PostTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmpl, ok := s.templates[identity]
	if !ok {
		return models.PostTemplate{}, db.ErrNotFound
	}
	return tmpl, nil
}
