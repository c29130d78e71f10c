package models

import "time"

// Friendship is one edge of the trusted-contact graph. The SOS fan-out
// reads the accepted edges of the requester as its recipient set.
type Friendship struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index:idx_friend_pair,unique" json:"user_id"`
	FriendID  string    `gorm:"index:idx_friend_pair,unique" json:"friend_id"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"created_at"`
}
