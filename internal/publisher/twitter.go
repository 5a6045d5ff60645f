// Package publisher posts announcements to X (Twitter) through the v2 API.
package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/michimani/gotwi"
	"github.com/michimani/gotwi/tweet/managetweet"
	"github.com/michimani/gotwi/tweet/managetweet/types"
	"golang.org/x/text/unicode/norm"

	"yt-announcer/internal/models"
)

var errEmptyText = errors.New("post text is empty")

// Twitter publishes tweets with OAuth1 user-context credentials. The consumer
// key pair belongs to the app; the access token pair to the posting account.
type Twitter struct {
	apiKey       string
	apiKeySecret string
	create       func(ctx context.Context, c *gotwi.Client, p *types.CreateInput) (*types.CreateOutput, error)
}

func NewTwitter(apiKey, apiKeySecret string) *Twitter {
	return &Twitter{
		apiKey:       apiKey,
		apiKeySecret: apiKeySecret,
		create:       managetweet.Create,
	}
}

// Publish creates a tweet and returns its id. Text is NFC-normalised first,
// which is the form X counts characters in.
func (t *Twitter) Publish(ctx context.Context, creds models.Credentials, text string) (string, error) {
	if creds.AccessToken == "" || creds.AccessTokenSecret == "" {
		return "", errors.New("twitter: missing access token")
	}
	text = norm.NFC.String(text)
	if text == "" {
		return "", errEmptyText
	}

	c, err := gotwi.NewClient(&gotwi.NewClientInput{
		AuthenticationMethod: gotwi.AuthenMethodOAuth1UserContext,
		OAuthToken:           creds.AccessToken,
		OAuthTokenSecret:     creds.AccessTokenSecret,
		APIKey:               t.apiKey,
		APIKeySecret:         t.apiKeySecret,
	})
	if err != nil {
		return "", fmt.Errorf("twitter: creating client: %w", err)
	}

	res, err := t.create(ctx, c, &types.CreateInput{Text: gotwi.String(text)})
	if err != nil {
		return "", fmt.Errorf("twitter: creating tweet: %w", err)
	}
	return gotwi.StringValue(res.Data.ID), nil
}
