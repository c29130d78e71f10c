package store

import (
	"context"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"

	"gorm.io/gorm"
)

// FriendStore reads the trusted-contact graph. The SOS coordinator
// consumes it as the notified-recipient source.
type FriendStore struct {
	db *gorm.DB
}

func NewFriendStore(db *gorm.DB) *FriendStore { return &FriendStore{db: db} }

// FriendIDs returns the accepted contacts of a participant.
func (s *FriendStore) FriendIDs(ctx context.Context, participantID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Friendship{}).
		Where("user_id = ? AND accepted = ?", participantID, true).
		Pluck("friend_id", &ids).Error
	if err != nil {
		return nil, errors.WrapCode(errors.CodePersistenceFailure, err, "reading friend list")
	}
	return ids, nil
}

// Add creates an accepted edge. Used by fixtures and the contacts
// surface; request/accept flows live outside this service.
func (s *FriendStore) Add(ctx context.Context, userID, friendID string) error {
	edge := models.Friendship{UserID: userID, FriendID: friendID, Accepted: true}
	if err := s.db.WithContext(ctx).Create(&edge).Error; err != nil {
		return errors.WrapCode(errors.CodePersistenceFailure, err, "creating friendship")
	}
	return nil
}
