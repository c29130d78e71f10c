package store

import (
	"context"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/scheduler"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobStore backs the scheduler with the reminder_jobs table.
type JobStore struct {
	db *gorm.DB
}

var _ scheduler.JobStore = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) *JobStore { return &JobStore{db: db} }

func (s *JobStore) Put(ctx context.Context, rec scheduler.JobRecord) error {
	row := models.ReminderJob{Key: rec.Key, FireAt: rec.FireAt, Payload: rec.Payload}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"fire_at", "payload", "updated_at"}),
		}).
		Create(&row).Error
}

func (s *JobStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&models.ReminderJob{}, "key = ?", key).Error
}

func (s *JobStore) Due(ctx context.Context, now time.Time) ([]scheduler.JobRecord, error) {
	var rows []models.ReminderJob
	if err := s.db.WithContext(ctx).Where("fire_at <= ?", now).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

func (s *JobStore) All(ctx context.Context) ([]scheduler.JobRecord, error) {
	var rows []models.ReminderJob
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

func toRecords(rows []models.ReminderJob) []scheduler.JobRecord {
	recs := make([]scheduler.JobRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, scheduler.JobRecord{Key: row.Key, FireAt: row.FireAt, Payload: row.Payload})
	}
	return recs
}
