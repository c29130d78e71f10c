package models

import "time"

// ReminderJob is the durable scheduler row. Key is derived from the
// event id, so at most one job can exist per event.
type ReminderJob struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	FireAt    time.Time `gorm:"index" json:"fire_at"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
