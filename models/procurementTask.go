package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"gorm.io/gorm"
)

// ProcurementTask is one replenishment need for a single medicine. Tasks are
// never deleted; they terminate into COMPLETED, FAILED or REJECTED.
type ProcurementTask struct {
	ID               int          `gorm:"primary_key" json:"id"`
	MedicineId       int          `gorm:"index;not null" json:"medicine_id"`
	RequiredQuantity int          `gorm:"not null" json:"required_quantity"`
	Urgency          UrgencyLevel `gorm:"type:enum('CRITICAL','HIGH','MEDIUM','LOW');not null;default:'MEDIUM'" json:"urgency"`
	Status           TaskStatus   `gorm:"type:enum('QUEUED','IN_PROGRESS','NEGOTIATING','PENDING_APPROVAL','APPROVED','COMPLETED','FAILED','REJECTED');not null;default:'QUEUED';index" json:"status"`
	CurrentStage     string       `gorm:"size:100" json:"current_stage"`
	ErrorMessage     string       `gorm:"type:text" json:"error_message"`

	StartedAt   *time.Time `gorm:"default:null" json:"started_at"`
	CompletedAt *time.Time `gorm:"default:null" json:"completed_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProcurementTask struct {
	MedicineId       int    `json:"medicine_id" binding:"required" validate:"required,gt=0"`
	RequiredQuantity int    `json:"required_quantity" binding:"required" validate:"required,gt=0"`
	Urgency          string `json:"urgency"`
}

// CreateProcurementTask opens a task. At most one non-terminal task may exist
// per medicine at a time.
func CreateProcurementTask(ctx context.Context, input *NewProcurementTask) (*ProcurementTask, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	urgency, err := ParseUrgencyLevel(input.Urgency)
	if err != nil {
		return nil, err
	}
	if _, err := GetMedicine(ctx, input.MedicineId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	task := ProcurementTask{
		MedicineId:       input.MedicineId,
		RequiredQuantity: input.RequiredQuantity,
		Urgency:          urgency,
		Status:           TaskStatusQueued,
		CurrentStage:     "QUEUED",
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		err := tx.Model(&ProcurementTask{}).
			Where("medicine_id = ?", input.MedicineId).
			Where("status NOT IN ?", []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusRejected}).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open > 0 {
			return utils.ErrorTaskAlreadyOpen
		}
		return tx.Create(&task).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func GetProcurementTask(ctx context.Context, id int) (*ProcurementTask, error) {
	db := config.GetDB()
	var task ProcurementTask
	if err := db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &task, nil
}

func ListTasksByStatus(ctx context.Context, statuses ...TaskStatus) ([]ProcurementTask, error) {
	db := config.GetDB()
	var tasks []ProcurementTask
	err := db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// TransitionTaskStatus validates and applies a status change inside tx, and
// appends the matching task event in the same transaction. The write is a
// compare-and-set on the previous status so two racing triggers cannot both
// enter the same stage.
func TransitionTaskStatus(tx *gorm.DB, task *ProcurementTask, to TaskStatus, stage string, errorMessage string) error {
	from := task.Status
	if !from.CanTransition(to) {
		return utils.ErrorInvalidTransition
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        to,
		"current_stage": stage,
	}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	if from == TaskStatusQueued && to == TaskStatusInProgress {
		updates["started_at"] = now
	}
	if to.IsTerminal() {
		updates["completed_at"] = now
	}

	res := tx.Model(&ProcurementTask{}).
		Where("id = ? AND status = ?", task.ID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race to another trigger.
		return utils.ErrorInvalidTransition
	}

	if err := AppendTaskEvent(tx, task.ID, string(from), string(to)); err != nil {
		return err
	}

	task.Status = to
	task.CurrentStage = stage
	if errorMessage != "" {
		task.ErrorMessage = errorMessage
	}
	if to.IsTerminal() {
		task.CompletedAt = &now
	}
	return nil
}

// FailTask terminates a task with a human-readable reason. A terminal task is
// left untouched so late failure signals cannot resurrect it.
func FailTask(ctx context.Context, taskId int, reason string) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task ProcurementTask
		if err := tx.First(&task, taskId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if task.Status.IsTerminal() {
			return nil
		}
		return TransitionTaskStatus(tx, &task, TaskStatusFailed, "FAILED", reason)
	})
}
