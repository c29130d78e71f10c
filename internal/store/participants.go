package store

import (
	"context"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ParticipantStore keeps the identity projection.
type ParticipantStore struct {
	db *gorm.DB
}

func NewParticipantStore(db *gorm.DB) *ParticipantStore { return &ParticipantStore{db: db} }

func (s *ParticipantStore) Get(ctx context.Context, id string) (*models.Participant, error) {
	var p models.Participant
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.WithCodef(errors.CodeNotFound, "participant %s not found", id)
	}
	if err != nil {
		return nil, errors.WrapCode(errors.CodePersistenceFailure, err, "reading participant")
	}
	return &p, nil
}

func (s *ParticipantStore) Upsert(ctx context.Context, p *models.Participant) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "avatar", "updated_at"}),
		}).
		Create(p).Error
	if err != nil {
		return errors.WrapCode(errors.CodePersistenceFailure, err, "upserting participant")
	}
	return nil
}
