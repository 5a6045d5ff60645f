package models

import "time"

// Notification is a dedup ledger entry. Its existence means an announcement
// for Link was claimed, not that the post went out.
type Notification struct {
	ID        int       `db:"id"`
	Link      string    `db:"link"`
	ClaimedAt time.Time `db:"claimed_at"`
}
