package store

import (
	"context"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventStore persists shared calendar events.
type EventStore struct {
	db *gorm.DB
}

func NewEventStore(db *gorm.DB) *EventStore { return &EventStore{db: db} }

func (s *EventStore) Upsert(ctx context.Context, event *models.Event) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner_id", "title", "occurs_at", "updated_at"}),
		}).
		Create(event).Error
	if err != nil {
		return errors.WrapCode(errors.CodePersistenceFailure, err, "upserting event")
	}
	return nil
}

func (s *EventStore) Get(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.WithCodef(errors.CodeNotFound, "event %s not found", id)
	}
	if err != nil {
		return nil, errors.WrapCode(errors.CodePersistenceFailure, err, "reading event")
	}
	return &event, nil
}

func (s *EventStore) List(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).Order("occurs_at ASC").Find(&events).Error
	if err != nil {
		return nil, errors.WrapCode(errors.CodePersistenceFailure, err, "listing events")
	}
	return events, nil
}
