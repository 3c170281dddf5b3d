package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
)

type Supplier struct {
	ID            int    `gorm:"primary_key" json:"id"`
	Code          string `gorm:"size:50;uniqueIndex;not null" json:"code" validate:"required"`
	Name          string `gorm:"size:100;not null" json:"name" validate:"required"`
	Email         string `gorm:"size:100" json:"email"`
	Phone         string `gorm:"size:20" json:"phone"`
	ContactPerson string `gorm:"size:100" json:"contact_person"`
	// ReliabilityScore is 0-100, accumulated from delivery history.
	// Zero means "no history yet"; scoring substitutes a neutral default.
	ReliabilityScore float64   `gorm:"type:decimal(7,2);default:0" json:"reliability_score"`
	IsActive         *bool     `gorm:"not null;default:true" json:"is_active"`
	Notes            string    `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Code             string  `json:"code" binding:"required" validate:"required"`
	Name             string  `json:"name" binding:"required" validate:"required"`
	Email            string  `json:"email"`
	Phone            string  `json:"phone"`
	ContactPerson    string  `json:"contact_person"`
	ReliabilityScore float64 `json:"reliability_score" validate:"gte=0,lte=100"`
	Notes            string  `json:"notes"`
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid supplier email")
	}

	supplier := Supplier{
		Code:             input.Code,
		Name:             input.Name,
		Email:            input.Email,
		Phone:            input.Phone,
		ContactPerson:    input.ContactPerson,
		ReliabilityScore: input.ReliabilityScore,
		Notes:            input.Notes,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	db := config.GetDB()
	var supplier Supplier
	if err := db.WithContext(ctx).First(&supplier, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &supplier, nil
}

func GetSupplierByCode(ctx context.Context, code string) (*Supplier, error) {
	db := config.GetDB()
	var supplier Supplier
	err := db.WithContext(ctx).Where("code = ?", code).First(&supplier).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &supplier, nil
}

func ListSuppliers(ctx context.Context) ([]Supplier, error) {
	db := config.GetDB()
	var suppliers []Supplier
	err := db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&suppliers).Error
	return suppliers, err
}

// SuppliersByIds returns a lookup map for score/decision presentation.
func SuppliersByIds(ctx context.Context, ids []int) (map[int]Supplier, error) {
	db := config.GetDB()
	var suppliers []Supplier
	if err := db.WithContext(ctx).Where("id IN ?", utils.UniqueSlice(ids)).Find(&suppliers).Error; err != nil {
		return nil, err
	}
	out := make(map[int]Supplier, len(suppliers))
	for _, s := range suppliers {
		out[s.ID] = s
	}
	return out, nil
}
