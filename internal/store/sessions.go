package store

import (
	"context"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"

	"gorm.io/gorm"
)

// SessionStore persists SOS sessions. Sessions are never deleted; the
// only mutable column is status, and only from active to cancelled.
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore { return &SessionStore{db: db} }

func (s *SessionStore) Create(ctx context.Context, session *models.SosSession) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return errors.WrapCode(errors.CodePersistenceFailure, err, "creating sos session")
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*models.SosSession, error) {
	var session models.SosSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.WithCodef(errors.CodeNotFound, "sos session %s not found", id)
	}
	if err != nil {
		return nil, errors.WrapCode(errors.CodePersistenceFailure, err, "reading sos session")
	}
	return &session, nil
}

// Cancel flips an active session to cancelled. The guarded update
// keeps the transition monotone: a session already cancelled is left
// untouched and Cancel reports changed=false.
func (s *SessionStore) Cancel(ctx context.Context, id string) (changed bool, err error) {
	res := s.db.WithContext(ctx).
		Model(&models.SosSession{}).
		Where("id = ? AND status = ?", id, models.SosActive).
		Update("status", models.SosCancelled)
	if res.Error != nil {
		return false, errors.WrapCode(errors.CodePersistenceFailure, res.Error, "cancelling sos session")
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// distinguish "already cancelled" from "no such session"
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ListByRequester returns a requester's episodes, newest first.
func (s *SessionStore) ListByRequester(ctx context.Context, requesterID string) ([]models.SosSession, error) {
	var sessions []models.SosSession
	err := s.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, errors.WrapCode(errors.CodePersistenceFailure, err, "listing sos sessions")
	}
	return sessions, nil
}
