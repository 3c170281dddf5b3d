package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Quote is a supplier's initial offer for a task. Immutable once recorded
// except for the acceptance/rejection flags set by the decision stage.
type Quote struct {
	ID                int `gorm:"primary_key" json:"id"`
	ProcurementTaskId int `gorm:"index:idx_quote_task_supplier,unique;not null" json:"procurement_task_id"`
	SupplierId        int `gorm:"index:idx_quote_task_supplier,unique;not null" json:"supplier_id"`

	UnitPrice            decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	QuantityAvailable    int             `gorm:"default:0" json:"quantity_available"`
	DeliveryDays         int             `gorm:"not null" json:"delivery_days"`
	MinimumOrderQuantity int             `gorm:"default:0" json:"minimum_order_quantity"`

	BulkDiscountAvailable *bool           `gorm:"not null;default:false" json:"bulk_discount_available"`
	BulkDiscountPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bulk_discount_price"`
	BulkDiscountQuantity  int             `gorm:"default:0" json:"bulk_discount_quantity"`

	IsAccepted      *bool  `gorm:"not null;default:false" json:"is_accepted"`
	RejectionReason string `gorm:"type:text" json:"rejection_reason"`

	ResponseTimeSeconds int        `gorm:"default:0" json:"response_time_seconds"`
	QuoteValidUntil     *time.Time `gorm:"default:null" json:"quote_valid_until"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

type NewQuote struct {
	SupplierId            int             `json:"supplier_id" validate:"required,gt=0"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	QuantityAvailable     int             `json:"quantity_available"`
	DeliveryDays          int             `json:"delivery_days" validate:"required,gt=0"`
	MinimumOrderQuantity  int             `json:"minimum_order_quantity"`
	BulkDiscountAvailable bool            `json:"bulk_discount_available"`
	BulkDiscountPrice     decimal.Decimal `json:"bulk_discount_price"`
	BulkDiscountQuantity  int             `json:"bulk_discount_quantity"`
	ResponseTimeSeconds   int             `json:"response_time_seconds"`
	QuoteValidUntil       *time.Time      `json:"quote_valid_until"`
}

// RecordQuote is idempotent per (task, supplier): a second offer from the same
// supplier returns the stored quote without writing a duplicate.
func RecordQuote(ctx context.Context, taskId int, input *NewQuote) (*Quote, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.UnitPrice.IsPositive() {
		return nil, errors.New("unit price must be positive")
	}

	db := config.GetDB()

	var existing Quote
	err := db.WithContext(ctx).
		Where("procurement_task_id = ? AND supplier_id = ?", taskId, input.SupplierId).
		First(&existing).Error
	if err == nil {
		return &existing, utils.ErrorDuplicateQuote
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	bulk := input.BulkDiscountAvailable
	quote := Quote{
		ProcurementTaskId:     taskId,
		SupplierId:            input.SupplierId,
		UnitPrice:             input.UnitPrice,
		QuantityAvailable:     input.QuantityAvailable,
		DeliveryDays:          input.DeliveryDays,
		MinimumOrderQuantity:  input.MinimumOrderQuantity,
		BulkDiscountAvailable: &bulk,
		BulkDiscountPrice:     input.BulkDiscountPrice,
		BulkDiscountQuantity:  input.BulkDiscountQuantity,
		ResponseTimeSeconds:   input.ResponseTimeSeconds,
		QuoteValidUntil:       input.QuoteValidUntil,
	}
	if err := db.WithContext(ctx).Create(&quote).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func GetQuote(ctx context.Context, id int) (*Quote, error) {
	db := config.GetDB()
	var quote Quote
	if err := db.WithContext(ctx).First(&quote, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &quote, nil
}

func QuotesForTask(ctx context.Context, taskId int) ([]Quote, error) {
	db := config.GetDB()
	var quotes []Quote
	err := db.WithContext(ctx).
		Where("procurement_task_id = ?", taskId).
		Order("id ASC").
		Find(&quotes).Error
	return quotes, err
}

// HistoricalQuotesForMedicine returns quotes for the same medicine from other
// tasks within the trailing window, for price-spike detection.
func HistoricalQuotesForMedicine(ctx context.Context, medicineId int, excludeTaskId int, since time.Time) ([]Quote, error) {
	db := config.GetDB()
	var quotes []Quote
	err := db.WithContext(ctx).
		Joins("JOIN procurement_tasks ON procurement_tasks.id = quotes.procurement_task_id").
		Where("procurement_tasks.medicine_id = ?", medicineId).
		Where("quotes.procurement_task_id <> ?", excludeTaskId).
		Where("quotes.created_at >= ?", since).
		Find(&quotes).Error
	return quotes, err
}
