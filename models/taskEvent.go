package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskEvent is a transactional-outbox row: every status transition appends
// one inside the same transaction, and the dispatcher publishes it after
// commit. Consumers re-trigger the orchestrator for the task.
type TaskEvent struct {
	ID         int    `gorm:"primary_key" json:"id"`
	TaskId     int    `gorm:"index;not null" json:"task_id"`
	FromStatus string `gorm:"size:50;not null" json:"from_status"`
	ToStatus   string `gorm:"size:50;not null" json:"to_status"`

	CorrelationId string `gorm:"size:64" json:"correlation_id"`

	DispatchStatus    string     `gorm:"size:20;not null;default:'PENDING';index" json:"dispatch_status"`
	DispatchAttempts  int        `gorm:"default:0" json:"dispatch_attempts"`
	NextAttemptAt     *time.Time `gorm:"default:null" json:"next_attempt_at"`
	LockedAt          *time.Time `gorm:"default:null" json:"locked_at"`
	LockedBy          string     `gorm:"size:64" json:"locked_by"`
	LastDispatchError *string    `gorm:"type:text" json:"last_dispatch_error"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func AppendTaskEvent(tx *gorm.DB, taskId int, fromStatus string, toStatus string) error {
	event := TaskEvent{
		TaskId:         taskId,
		FromStatus:     fromStatus,
		ToStatus:       toStatus,
		CorrelationId:  uuid.NewString(),
		DispatchStatus: EventDispatchStatusPending,
	}
	return tx.Create(&event).Error
}
