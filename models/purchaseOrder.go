package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseOrder is the terminal artifact of an approved procurement task.
type PurchaseOrder struct {
	ID       int    `gorm:"primary_key" json:"id"`
	PoNumber string `gorm:"size:100;uniqueIndex;not null" json:"po_number"`

	ProcurementTaskId int `gorm:"index;not null" json:"procurement_task_id"`
	SupplierId        int `gorm:"index;not null" json:"supplier_id"`
	MedicineId        int `gorm:"index;not null" json:"medicine_id"`

	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount"`

	ExpectedDeliveryDays int        `gorm:"default:0" json:"expected_delivery_days"`
	ExpectedDeliveryDate *time.Time `gorm:"default:null" json:"expected_delivery_date"`
	ActualDeliveryDate   *time.Time `gorm:"default:null" json:"actual_delivery_date"`

	Status       OrderStatus `gorm:"type:enum('DRAFT','PENDING_APPROVAL','APPROVED','PLACED','CONFIRMED','IN_TRANSIT','DELIVERED','CANCELLED');not null;default:'DRAFT'" json:"status"`
	PaymentTerms string      `gorm:"size:100;default:'Net30'" json:"payment_terms"`

	DecisionScore     float64 `gorm:"type:decimal(7,2);default:0" json:"decision_score"`
	DecisionReasoning string  `gorm:"type:text" json:"decision_reasoning"`
	SelectedByAgent   *bool   `gorm:"not null;default:true" json:"selected_by_agent"`
	OverrideReason    string  `gorm:"type:text" json:"override_reason"`

	ApprovedBy    string `gorm:"size:255" json:"approved_by"`
	ApprovalNotes string `gorm:"type:text" json:"approval_notes"`
	Notes         string `gorm:"type:text" json:"notes"`

	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ApprovedAt *time.Time `gorm:"default:null" json:"approved_at"`
	PlacedAt   *time.Time `gorm:"default:null" json:"placed_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// GeneratePoNumber builds PO-YYYYMMDD-XXXXXX with a random hex suffix.
// Random suffix instead of a daily counter keeps concurrent issuance
// collision-free without serializing on a count query; the unique index on
// po_number is the backstop.
func GeneratePoNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:6])
	suffix = strings.ReplaceAll(suffix, "-", "0")
	return fmt.Sprintf("PO-%s-%s", now.UTC().Format("20060102"), suffix)
}

// CreatePurchaseOrder persists the order inside tx so that order emission and
// the task transition commit atomically.
func CreatePurchaseOrder(tx *gorm.DB, po *PurchaseOrder) error {
	if po.PoNumber == "" {
		po.PoNumber = GeneratePoNumber(time.Now())
	}
	expectedTotal := po.UnitPrice.Mul(decimal.NewFromInt(int64(po.Quantity)))
	if !po.TotalAmount.Equal(expectedTotal) {
		po.TotalAmount = expectedTotal
	}
	if po.ExpectedDeliveryDays > 0 && po.ExpectedDeliveryDate == nil {
		d := time.Now().UTC().AddDate(0, 0, po.ExpectedDeliveryDays)
		po.ExpectedDeliveryDate = &d
	}
	return tx.Create(po).Error
}

func GetPurchaseOrderForTask(ctx context.Context, taskId int) (*PurchaseOrder, error) {
	db := config.GetDB()
	var po PurchaseOrder
	err := db.WithContext(ctx).
		Where("procurement_task_id = ?", taskId).
		Order("id DESC").
		First(&po).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &po, nil
}

func GetPurchaseOrderByNumber(ctx context.Context, poNumber string) (*PurchaseOrder, error) {
	db := config.GetDB()
	var po PurchaseOrder
	err := db.WithContext(ctx).Where("po_number = ?", poNumber).First(&po).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &po, nil
}
