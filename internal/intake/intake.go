// Package intake turns a WebSub push body into upload events.
package intake

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"bitbucket.org/creachadair/stringset"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
)

// DefaultStalenessThreshold is how old an entry may be, measured from its
// publish time to receipt, before it is treated as a replay and dropped.
const DefaultStalenessThreshold = 43200 * time.Second

// ErrMalformedPayload is returned for bodies that are not a parseable feed or
// contain an entry without a link or publish time.
var ErrMalformedPayload = errors.New("malformed payload")

// Event is one upload announced by the hub.
type Event struct {
	Title       string
	Link        string
	PublishedAt time.Time
}

// Age is the time between publication and receivedAt.
func (e Event) Age(receivedAt time.Time) time.Duration {
	return receivedAt.Sub(e.PublishedAt)
}

type Intake struct {
	parser    *gofeed.Parser
	threshold time.Duration
}

func New(threshold time.Duration) *Intake {
	if threshold <= 0 {
		threshold = DefaultStalenessThreshold
	}
	return &Intake{
		parser:    gofeed.NewParser(),
		threshold: threshold,
	}
}

// Parse reads the whole payload before returning any event, so a malformed
// entry rejects its siblings too.
func (in *Intake) Parse(body io.Reader) ([]Event, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrMalformedPayload, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}

	feed, err := in.parser.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	events := make([]Event, 0, len(feed.Items))
	for i, item := range feed.Items {
		link := itemLink(item)
		if link == "" {
			return nil, fmt.Errorf("%w: entry %d has no link", ErrMalformedPayload, i)
		}
		if item.PublishedParsed == nil {
			return nil, fmt.Errorf("%w: entry %d has no published time", ErrMalformedPayload, i)
		}
		events = append(events, Event{
			Title:       item.Title,
			Link:        link,
			PublishedAt: *item.PublishedParsed,
		})
	}
	return events, nil
}

// Fresh drops stale entries and repeated links within one payload. An entry
// whose age equals the threshold is kept.
func (in *Intake) Fresh(events []Event, receivedAt time.Time) []Event {
	seen := stringset.New()
	fresh := make([]Event, 0, len(events))
	for _, ev := range events {
		if seen.Contains(ev.Link) {
			logrus.WithField("link", ev.Link).Debug("repeated entry in payload")
			continue
		}
		seen.Add(ev.Link)

		if age := ev.Age(receivedAt); age > in.threshold {
			logrus.WithFields(logrus.Fields{
				"link":      ev.Link,
				"published": ev.PublishedAt,
				"age":       age,
			}).Info("discarding stale entry")
			continue
		}
		fresh = append(fresh, ev)
	}
	return fresh
}

// Accept parses body and returns the entries that should be announced.
func (in *Intake) Accept(body io.Reader, receivedAt time.Time) ([]Event, error) {
	events, err := in.Parse(body)
	if err != nil {
		return nil, err
	}
	return in.Fresh(events, receivedAt), nil
}

func itemLink(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	for _, l := range item.Links {
		if l != "" {
			return l
		}
	}
	return ""
}
