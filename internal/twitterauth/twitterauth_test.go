package twitterauth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-announcer/internal/models"
	"yt-announcer/internal/test"
)

// newProvider issues a distinct request token per call and exchanges any
// verifier for the access pair named after it.
func newProvider(t *testing.T) *httptest.Server {
	t.Helper()
	var issued int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/request_token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&issued, 1)
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		fmt.Fprintf(w, "oauth_token=req-token-%d&oauth_token_secret=req-secret&oauth_callback_confirmed=true", n)
	})
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		v := verifierOf(r)
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		fmt.Fprintf(w, "oauth_token=access-%s&oauth_token_secret=secret-%s&screen_name=channel", v, v)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

var headerVerifier = regexp.MustCompile(`oauth_verifier="([^"]*)"`)

// verifierOf finds the verifier in the form or in the OAuth header.
func verifierOf(r *http.Request) string {
	if v := r.FormValue("oauth_verifier"); v != "" {
		return v
	}
	if m := headerVerifier.FindStringSubmatch(r.Header.Get("Authorization")); m != nil {
		return m[1]
	}
	return ""
}

func endpointsFor(srv *httptest.Server) Endpoints {
	return Endpoints{
		RequestToken: srv.URL + "/oauth/request_token",
		Authorize:    srv.URL + "/oauth/authorize",
		AccessToken:  srv.URL + "/oauth/access_token",
	}
}

func requestToken(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "/oauth/authorize", u.Path)
	return u.Query().Get("oauth_token")
}

func storedCreds(t *testing.T, store *test.MemoryStore) models.Credentials {
	t.Helper()
	sub, err := store.GetSubscription(context.Background(), "default")
	require.NoError(t, err)
	creds, ok := sub.Credentials()
	require.True(t, ok)
	return creds
}

func TestFlow(t *testing.T) {
	ctx := context.Background()
	srv := newProvider(t)
	store := test.NewMemoryStore("default")
	flow := NewFlow("key", "secret", "http://relay/twitter/callback", "default", endpointsFor(srv), store)

	authURL, err := flow.Start(ctx, false)
	require.NoError(t, err)
	token := requestToken(t, authURL)
	assert.Equal(t, "req-token-1", token)

	require.NoError(t, flow.Complete(ctx, token, "v1"))
	assert.Equal(t, models.Credentials{AccessToken: "access-v1", AccessTokenSecret: "secret-v1"}, storedCreds(t, store))

	// a request token is only good once
	assert.ErrorIs(t, flow.Complete(ctx, token, "v1"), ErrUnknownRequestToken)
}

func TestLinkedAccountIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	srv := newProvider(t)
	store := test.NewMemoryStore("default")
	flow := NewFlow("key", "secret", "http://relay/twitter/callback", "default", endpointsFor(srv), store)

	// two handshakes started before either completes
	first, err := flow.Start(ctx, false)
	require.NoError(t, err)
	second, err := flow.Start(ctx, false)
	require.NoError(t, err)

	require.NoError(t, flow.Complete(ctx, requestToken(t, first), "owner"))
	assert.ErrorIs(t, flow.Complete(ctx, requestToken(t, second), "intruder"), ErrAlreadyLinked)
	assert.Equal(t, "access-owner", storedCreds(t, store).AccessToken)

	_, err = flow.Start(ctx, false)
	assert.ErrorIs(t, err, ErrAlreadyLinked)

	relinkURL, err := flow.Start(ctx, true)
	require.NoError(t, err)
	require.NoError(t, flow.Complete(ctx, requestToken(t, relinkURL), "replacement"))
	assert.Equal(t, "access-replacement", storedCreds(t, store).AccessToken)
}

func TestPendingTokensExpire(t *testing.T) {
	ctx := context.Background()
	srv := newProvider(t)
	flow := NewFlow("key", "secret", "http://relay/twitter/callback", "default", endpointsFor(srv), test.NewMemoryStore("default"))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	flow.now = func() time.Time { return now }

	authURL, err := flow.Start(ctx, false)
	require.NoError(t, err)

	now = now.Add(PendingTTL)
	assert.ErrorIs(t, flow.Complete(ctx, requestToken(t, authURL), "late"), ErrUnknownRequestToken)
}

func TestPendingTokensAreCapped(t *testing.T) {
	ctx := context.Background()
	srv := newProvider(t)
	flow := NewFlow("key", "secret", "http://relay/twitter/callback", "default", endpointsFor(srv), test.NewMemoryStore("default"))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	flow.now = func() time.Time { return now }

	for i := 0; i < MaxPending; i++ {
		_, err := flow.Start(ctx, false)
		require.NoError(t, err)
	}
	_, err := flow.Start(ctx, false)
	assert.ErrorIs(t, err, ErrTooManyPending)

	// expired handshakes free their slots
	now = now.Add(PendingTTL + time.Second)
	_, err = flow.Start(ctx, false)
	assert.NoError(t, err)
	assert.Len(t, flow.pending, 1)
}

func TestCompleteUnknownToken(t *testing.T) {
	flow := NewFlow("key", "secret", "http://relay/twitter/callback", "default", TwitterEndpoints, test.NewMemoryStore())
	assert.ErrorIs(t, flow.Complete(context.Background(), "forged", "verifier"), ErrUnknownRequestToken)
}

func TestStartProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad consumer key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	flow := NewFlow("key", "secret", "http://relay/twitter/callback", "default", endpointsFor(srv), test.NewMemoryStore())
	_, err := flow.Start(context.Background(), false)
	assert.Error(t, err)
	assert.Empty(t, flow.pending)
}
