package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"github.com/shopspring/decimal"
)

type Medicine struct {
	ID       int    `gorm:"primary_key" json:"id"`
	Name     string `gorm:"size:100;index;not null" json:"name" validate:"required"`
	Dosage   string `gorm:"size:50" json:"dosage"`
	Form     string `gorm:"size:50" json:"form"`
	Category string `gorm:"size:100" json:"category"`

	CurrentStock      int             `gorm:"default:0" json:"current_stock"`
	AverageDailySales decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"average_daily_sales"`
	SafetyStock       int             `gorm:"default:0" json:"safety_stock"`
	ReorderPoint      int             `gorm:"default:0" json:"reorder_point"`

	LastPurchasePrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"last_purchase_price"`
	AveragePrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"average_price"`

	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	MinExpiryMonths int       `gorm:"default:12" json:"min_expiry_months"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMedicine struct {
	Name              string          `json:"name" binding:"required" validate:"required"`
	Dosage            string          `json:"dosage"`
	Form              string          `json:"form"`
	Category          string          `json:"category"`
	CurrentStock      int             `json:"current_stock"`
	AverageDailySales decimal.Decimal `json:"average_daily_sales"`
	SafetyStock       int             `json:"safety_stock"`
	ReorderPoint      int             `json:"reorder_point"`
}

func CreateMedicine(ctx context.Context, input *NewMedicine) (*Medicine, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	medicine := Medicine{
		Name:              input.Name,
		Dosage:            input.Dosage,
		Form:              input.Form,
		Category:          input.Category,
		CurrentStock:      input.CurrentStock,
		AverageDailySales: input.AverageDailySales,
		SafetyStock:       input.SafetyStock,
		ReorderPoint:      input.ReorderPoint,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&medicine).Error; err != nil {
		return nil, err
	}
	return &medicine, nil
}

func GetMedicine(ctx context.Context, id int) (*Medicine, error) {
	db := config.GetDB()
	var medicine Medicine
	if err := db.WithContext(ctx).First(&medicine, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &medicine, nil
}

func ListMedicines(ctx context.Context) ([]Medicine, error) {
	db := config.GetDB()
	var medicines []Medicine
	err := db.WithContext(ctx).Order("name ASC").Find(&medicines).Error
	return medicines, err
}
