package db

import (
	"context"
	"fmt"
	"time"

	"yt-announcer/internal/models"
)

const templateColumns = `id, identity, trigger_kind, body, scheduled_at, created_at, updated_at`

// UpsertNewUploadTemplate writes the single on-new-upload template of identity,
// overwriting any previous body.
func (s *Store) UpsertNewUploadTemplate(ctx context.Context, identity, body string) (models.PostTemplate, error) {
	query := `
		INSERT INTO post_templates (identity, trigger_kind, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) WHERE trigger_kind = 'new_upload' DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = NOW()
		RETURNING ` + templateColumns
	tmpl := models.PostTemplate{}
	err := s.db.GetContext(ctx, &tmpl, query, identity, models.TriggerNewUpload, body)
	if err != nil {
		return tmpl, fmt.Errorf("upsert template for %q: %w", identity, err)
	}
	return tmpl, nil
}

func (s *Store) CreateScheduledTemplate(ctx context.Context, identity, body string, at time.Time) (models.PostTemplate, error) {
	query := `
		INSERT INTO post_templates (identity, trigger_kind, body, scheduled_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + templateColumns
	tmpl := models.PostTemplate{}
	err := s.db.GetContext(ctx, &tmpl, query, identity, models.TriggerSchedule, body, at)
	if err != nil {
		return tmpl, fmt.Errorf("create scheduled template for %q: %w", identity, err)
	}
	return tmpl, nil
}

func (s *Store) GetNewUploadTemplate(ctx context.Context, identity string) (models.PostTemplate, error) {
	tmpl := models.PostTemplate{}
	err := s.db.GetContext(ctx, &tmpl, `SELECT `+templateColumns+` FROM post_templates WHERE identity = $1 AND trigger_kind = $2`, identity, models.TriggerNewUpload)
	return tmpl, notFound(err)
}
