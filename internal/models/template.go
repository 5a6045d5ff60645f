package models

import "time"

// TriggerKind says when a post template fires.
type TriggerKind string

const (
	TriggerNewUpload TriggerKind = "new_upload"
	TriggerSchedule  TriggerKind = "schedule"
)

// PostTemplate holds the body used to render a post. ScheduledAt is set iff
// Trigger is TriggerSchedule.
type PostTemplate struct {
	ID          int         `db:"id" json:"id"`
	Identity    string      `db:"identity" json:"identity"`
	Trigger     TriggerKind `db:"trigger_kind" json:"trigger"`
	Body        string      `db:"body" json:"text"`
	ScheduledAt *time.Time  `db:"scheduled_at" json:"scheduled_time,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}
