package compose

import (
	"context"
	"errors"
	"fmt"

	"yt-announcer/internal/db"
	"yt-announcer/internal/models"
)

// TemplateSource looks up the on-new-upload template of an identity.
type TemplateSource interface {
	GetNewUploadTemplate(ctx context.Context, identity string) (models.PostTemplate, error)
}

type Composer struct {
	templates TemplateSource
}

func New(templates TemplateSource) *Composer {
	return &Composer{templates: templates}
}

// Render resolves the identity's template for the given video. ok is false
// when no template is configured, which callers treat as "skip posting".
func (c *Composer) Render(ctx context.Context, identity, title, link string) (text string, ok bool, err error) {
	tmpl, err := c.templates.GetNewUploadTemplate(ctx, identity)
	if errors.Is(err, db.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load template for %q: %w", identity, err)
	}

	text, err = Substitute(tmpl.Body, map[string]string{
		PlaceholderTitle: title,
		PlaceholderLink:  link,
	})
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}
