package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/pkg/logger"
	"SafeCircle/pkg/metrics"
	"SafeCircle/pkg/notification"
	"SafeCircle/pkg/scheduler"

	"go.uber.org/zap"
)

// LeadTime is how long before an event its reminder fires.
const LeadTime = 5 * time.Minute

// JobKey derives the scheduler key for an event. The derivation is the
// uniqueness guarantee: one event, one possible job.
func JobKey(eventID string) string { return "reminder_for_" + eventID }

// Payload travels with the job row and must stay decodable by a later
// process version.
type Payload struct {
	EventID string `json:"event_id"`
	OwnerID string `json:"owner_id,omitempty"`
	Title   string `json:"title"`
}

// JobScheduler is the slice of the scheduler the planner uses.
type JobScheduler interface {
	Schedule(ctx context.Context, key string, fireAt time.Time, payload []byte) error
	Cancel(ctx context.Context, key string) error
}

// Planner computes and (re)schedules one reminder per event. It is
// safe to call for the same event any number of times: the scheduled
// state converges on the event's current occurrence time.
type Planner struct {
	sched JobScheduler
	sink  notification.Sink
}

func NewPlanner(sched JobScheduler, sink notification.Sink) *Planner {
	return &Planner{sched: sched, sink: sink}
}

// PlanReminder schedules the event's reminder for occurrence minus
// LeadTime. A fire time not in the future clears any previously
// scheduled job instead.
func (p *Planner) PlanReminder(ctx context.Context, event models.Event) error {
	key := JobKey(event.ID)
	fireAt := event.OccursAt.Add(-LeadTime)

	if !fireAt.After(time.Now()) {
		return p.sched.Cancel(ctx, key)
	}

	raw, err := json.Marshal(Payload{EventID: event.ID, OwnerID: event.OwnerID, Title: event.Title})
	if err != nil {
		return err
	}
	return p.sched.Schedule(ctx, key, fireAt, raw)
}

// PlanAll re-plans every event, as on an event-list refresh. Failures
// are logged per event; the first one is returned.
func (p *Planner) PlanAll(ctx context.Context, events []models.Event) error {
	var first error
	for _, event := range events {
		if err := p.PlanReminder(ctx, event); err != nil {
			logger.Error("planning reminder failed", zap.String("event", event.ID), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// HandleFire is the scheduler's FireFunc: render and deliver the
// reminder. The event id is the dedup key, so a re-fire updates the
// visible notification rather than stacking a second one.
func (p *Planner) HandleFire(ctx context.Context, rec scheduler.JobRecord) {
	var payload Payload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		logger.Error("undecodable reminder payload", zap.String("key", rec.Key), zap.Error(err))
		return
	}

	n := notification.Notification{
		Tag:   notification.TagReminder,
		Key:   payload.EventID,
		To:    payload.OwnerID,
		Title: "Upcoming event",
		Body:  fmt.Sprintf("Event '%s' starts in a few minutes", payload.Title),
		Extras: map[string]string{
			"event_id": payload.EventID,
		},
	}
	if err := p.sink.Notify(ctx, n); err != nil {
		logger.Error("reminder delivery failed", zap.String("event", payload.EventID), zap.Error(err))
		return
	}
	metrics.ReminderFires.Inc()
	logger.Info("reminder fired", zap.String("event", payload.EventID))
}
