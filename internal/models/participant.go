package models

import "time"

// Participant is the identity projection this service keeps: enough to
// snapshot a requester onto an SOS session. Credentials live in the
// auth service.
type Participant struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
