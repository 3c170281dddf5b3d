package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Decision is the finalized supplier selection for a task, with the full
// score set denormalized for audit.
type Decision struct {
	ID                int `gorm:"primary_key" json:"id"`
	ProcurementTaskId int `gorm:"index;not null" json:"procurement_task_id"`

	SelectedSupplierId    int `gorm:"not null" json:"selected_supplier_id"`
	SelectedQuoteId       int `gorm:"default:null" json:"selected_quote_id"`
	SelectedNegotiationId int `gorm:"default:null" json:"selected_negotiation_id"`

	WinningScore float64         `gorm:"type:decimal(7,2);not null" json:"winning_score"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount"`
	DeliveryDays int             `gorm:"not null" json:"delivery_days"`

	AllScores     []byte `gorm:"type:json" json:"all_scores"`
	ReasoningText string `gorm:"type:text;not null" json:"reasoning_text"`

	Urgency    UrgencyLevel `gorm:"type:enum('CRITICAL','HIGH','MEDIUM','LOW')" json:"urgency"`
	BudgetMode *bool        `gorm:"not null;default:false" json:"budget_mode"`

	RequiresApproval *bool      `gorm:"not null;default:false" json:"requires_approval"`
	IsApproved       *bool      `gorm:"default:null" json:"is_approved"`
	ApprovedBy       string     `gorm:"size:255" json:"approved_by"`
	ApprovalNotes    string     `gorm:"type:text" json:"approval_notes"`
	ApprovedAt       *time.Time `gorm:"default:null" json:"approved_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (d *Decision) SetAllScores(scores []SupplierScore) error {
	raw, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	d.AllScores = raw
	return nil
}

func CreateDecision(ctx context.Context, decision *Decision) error {
	db := config.GetDB()
	return db.WithContext(ctx).Create(decision).Error
}

// LatestDecisionForTask returns the most recent decision run for a task.
func LatestDecisionForTask(ctx context.Context, taskId int) (*Decision, error) {
	db := config.GetDB()
	var decision Decision
	err := db.WithContext(ctx).
		Where("procurement_task_id = ?", taskId).
		Order("id DESC").
		First(&decision).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &decision, nil
}

// MarkDecisionApproval stamps the approval outcome inside tx.
func MarkDecisionApproval(tx *gorm.DB, decisionId int, approved bool, by string, notes string) error {
	now := time.Now().UTC()
	return tx.Model(&Decision{}).
		Where("id = ?", decisionId).
		Updates(map[string]interface{}{
			"is_approved":    approved,
			"approved_by":    by,
			"approval_notes": notes,
			"approved_at":    now,
		}).Error
}
