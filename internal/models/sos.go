package models

import (
	"encoding/json"
	"time"
)

// SosStatus is the session sub-machine: Active may move to Cancelled,
// never back. There is no resolved/expired status: an uncancelled
// session stays Active as a historical record.
type SosStatus string

const (
	SosActive    SosStatus = "active"
	SosCancelled SosStatus = "cancelled"
)

// SosSession is one emergency episode. Requester display fields are a
// snapshot taken at creation so later profile edits do not rewrite
// history. NotifiedIDs and the requester fields are immutable after
// creation; only Status may change.
type SosSession struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	RequesterID     string    `gorm:"index" json:"requester_id"`
	RequesterName   string    `json:"requester_name"`
	RequesterAvatar string    `json:"requester_avatar"`
	NotifiedIDs     string    `json:"-"` // JSON-encoded []string
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	LocatedAt       time.Time `json:"located_at"`
	Status          SosStatus `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Recipients decodes the frozen notified-recipient set.
func (s *SosSession) Recipients() []string {
	var ids []string
	_ = json.Unmarshal([]byte(s.NotifiedIDs), &ids)
	return ids
}

// SetRecipients freezes the notified-recipient set. Called exactly
// once, before the session row is created.
func (s *SosSession) SetRecipients(ids []string) {
	raw, _ := json.Marshal(ids)
	s.NotifiedIDs = string(raw)
}
