// Package hub talks to a WebSub (PubSubHubbub) hub.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultURL is the hub YouTube publishes channel feeds through.
	DefaultURL = "https://pubsubhubbub.appspot.com/subscribe"

	// DefaultTimeout bounds one subscribe request.
	DefaultTimeout = 5 * time.Second
)

// ErrSubscribeFailure wraps every failed subscribe request.
var ErrSubscribeFailure = errors.New("subscribe failed")

// ChannelTopic is the feed URL YouTube publishes uploads of channelID to.
func ChannelTopic(channelID string) string {
	return "https://www.youtube.com/xml/feeds/videos.xml?channel_id=" + url.QueryEscape(channelID)
}

type Client struct {
	hubURL      string
	callbackURL string
	verifyToken string
	http        *http.Client
}

func NewClient(hubURL, callbackURL, verifyToken string, timeout time.Duration) *Client {
	if hubURL == "" {
		hubURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		hubURL:      hubURL,
		callbackURL: callbackURL,
		verifyToken: verifyToken,
		http:        &http.Client{Timeout: timeout},
	}
}

// Subscribe asks the hub to (re)subscribe the callback to topic. The hub
// confirms asynchronously through a verification request to the callback.
func (c *Client) Subscribe(ctx context.Context, topic string) error {
	form := url.Values{
		"hub.callback":     {c.callbackURL},
		"hub.mode":         {"subscribe"},
		"hub.topic":        {topic},
		"hub.verify":       {"async"},
		"hub.verify_token": {c.verifyToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hubURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrSubscribeFailure, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	logrus.WithField("topic", topic).Info("subscribing to topic")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: topic %s: status %d: %s", ErrSubscribeFailure, topic, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
