package models

import "time"

// Event is a shared calendar entry. The reminder core consumes id,
// title and occurrence time; everything else belongs to the events
// surface.
type Event struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	OwnerID   string    `gorm:"index" json:"owner_id"`
	Title     string    `json:"title"`
	OccursAt  time.Time `json:"occurs_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
