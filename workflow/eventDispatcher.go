package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventDispatcher drains the task-event outbox. With a topic configured it
// publishes to Pub/Sub; without one it marks rows DIRECT and hands them to
// the orchestrator in-process, which is the single-instance deployment mode.
type EventDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Orchestrator *Orchestrator
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewEventDispatcher(db *gorm.DB, logger *logrus.Logger, orchestrator *Orchestrator) *EventDispatcher {
	return &EventDispatcher{
		DB:             db,
		Logger:         logger,
		Orchestrator:   orchestrator,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *EventDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *EventDispatcher) dispatchOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	db := d.DB
	if db == nil {
		return
	}

	var claimed []models.TaskEvent
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING but lock is stale (dispatcher crashed mid-batch), reclaim after LockTimeout
		q := tx.
			Where(`
				(
					dispatch_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					dispatch_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.EventDispatchStatusPending, models.EventDispatchStatusFailed}, now, models.EventDispatchStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			// Poison events go terminal after MaxAttempts.
			if d.MaxAttempts > 0 && claimed[i].DispatchAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max dispatch attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].DispatchStatus = models.EventDispatchStatusDead
				if err := tx.Model(&models.TaskEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"dispatch_status":     models.EventDispatchStatusDead,
					"last_dispatch_error": &msg,
					"next_attempt_at":     nil,
					"locked_at":           nil,
					"locked_by":           "",
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].DispatchStatus = models.EventDispatchStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = d.DispatcherID
			claimed[i].DispatchAttempts = claimed[i].DispatchAttempts + 1
			if err := tx.Model(&models.TaskEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"dispatch_status":     claimed[i].DispatchStatus,
				"locked_at":           claimed[i].LockedAt,
				"locked_by":           claimed[i].LockedBy,
				"dispatch_attempts":   gorm.Expr("dispatch_attempts + 1"),
				"last_dispatch_error": nil,
				"next_attempt_at":     nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, event := range claimed {
		if event.DispatchStatus == models.EventDispatchStatusDead {
			continue
		}
		if config.TaskEventTopic() == "" {
			d.deliverDirect(ctx, event, now)
			continue
		}
		msg := config.TaskEventMessage{
			ID:            event.ID,
			TaskId:        event.TaskId,
			EventType:     "TASK_STATUS_CHANGED",
			FromStatus:    event.FromStatus,
			ToStatus:      event.ToStatus,
			OccurredAt:    event.CreatedAt,
			CorrelationId: event.CorrelationId,
		}
		if _, pubErr := config.PublishTaskEventWithResult(ctx, msg); pubErr != nil {
			d.markDispatchFailed(ctx, event.ID, event.TaskId, pubErr, event.DispatchAttempts)
			continue
		}
		d.markDispatched(ctx, event.ID, models.EventDispatchStatusPublished)
	}
}

// deliverDirect re-triggers the orchestrator in-process for events whose
// target status still needs pipeline work.
func (d *EventDispatcher) deliverDirect(ctx context.Context, event models.TaskEvent, now time.Time) {
	d.markDispatched(ctx, event.ID, models.EventDispatchStatusDirect)
	if d.Orchestrator == nil {
		return
	}
	to := models.TaskStatus(event.ToStatus)
	if to.IsTerminal() || to == models.TaskStatusPendingApproval {
		return
	}
	if err := d.Orchestrator.Advance(ctx, event.TaskId); err != nil {
		config.LogError(d.Logger, "workflow", "EventDispatcher.deliverDirect",
			fmt.Sprintf("event %d", event.ID), logrus.Fields{"taskId": event.TaskId}, err)
	}
}

func (d *EventDispatcher) markDispatched(ctx context.Context, eventId int, status string) {
	db := d.DB.WithContext(ctx)
	_ = db.Model(&models.TaskEvent{}).
		Where("id = ?", eventId).
		Updates(map[string]interface{}{
			"dispatch_status":     status,
			"locked_at":           nil,
			"locked_by":           "",
			"next_attempt_at":     nil,
			"last_dispatch_error": nil,
		}).Error
}

func (d *EventDispatcher) markDispatchFailed(ctx context.Context, eventId int, taskId int, err error, attempt int) {
	db := d.DB.WithContext(ctx)
	now := time.Now().UTC()
	msg := err.Error()

	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		_ = db.Model(&models.TaskEvent{}).
			Where("id = ?", eventId).
			Updates(map[string]interface{}{
				"dispatch_status":     models.EventDispatchStatusDead,
				"last_dispatch_error": &msg,
				"next_attempt_at":     nil,
				"locked_at":           nil,
				"locked_by":           "",
			}).Error
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":    "EventDispatcher",
				"task_id":  taskId,
				"event_id": eventId,
				"attempt":  attempt,
			}).Error("task event moved to DEAD after max attempts: " + fmt.Sprintf("%v", err))
		}
		return
	}

	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > time.Minute*10 {
			backoff = time.Minute * 10
			break
		}
	}
	next := now.Add(backoff)
	_ = db.Model(&models.TaskEvent{}).
		Where("id = ?", eventId).
		Updates(map[string]interface{}{
			"dispatch_status":     models.EventDispatchStatusFailed,
			"last_dispatch_error": &msg,
			"next_attempt_at":     &next,
			"locked_at":           nil,
			"locked_by":           "",
		}).Error
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "EventDispatcher",
			"task_id":         taskId,
			"event_id":        eventId,
			"attempt":         attempt,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("task event dispatch failed: " + fmt.Sprintf("%v", err))
	}
}
