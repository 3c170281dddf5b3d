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

// Negotiation aggregates one supplier's bounded counter-offer exchange for a
// task. Its terminal state is derived from the last round.
type Negotiation struct {
	ID                int `gorm:"primary_key" json:"id"`
	ProcurementTaskId int `gorm:"index:idx_negotiation_task_supplier,unique;not null" json:"procurement_task_id"`
	SupplierId        int `gorm:"index:idx_negotiation_task_supplier,unique;not null" json:"supplier_id"`
	QuoteId           int `gorm:"index" json:"quote_id"`

	Status       NegotiationStatus `gorm:"type:enum('IN_PROGRESS','SUCCESSFUL','FAILED','TIMEOUT');not null;default:'IN_PROGRESS'" json:"status"`
	Action       NegotiationAction `gorm:"type:enum('skip','price_match','expedite','bulk_discount');not null" json:"action"`
	CurrentRound int               `gorm:"default:0" json:"current_round"`
	MaxRounds    int               `gorm:"default:3" json:"max_rounds"`

	InitialUnitPrice  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"initial_unit_price"`
	FinalUnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"final_unit_price"`
	FinalDeliveryDays int             `gorm:"default:0" json:"final_delivery_days"`
	SavingsAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"savings_amount"`

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	CompletedAt *time.Time `gorm:"default:null" json:"completed_at"`

	Rounds []NegotiationRound `gorm:"foreignKey:NegotiationId" json:"rounds"`
}

// NegotiationRound is one exchange. Rounds are append-only and never edited
// after the supplier response is classified.
type NegotiationRound struct {
	ID            int `gorm:"primary_key" json:"id"`
	NegotiationId int `gorm:"index;not null" json:"negotiation_id"`
	RoundNumber   int `gorm:"not null" json:"round_number"`

	OurMessage    string          `gorm:"type:text;not null" json:"our_message"`
	OurOfferPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"our_offer_price"`

	SupplierResponse     string          `gorm:"type:text" json:"supplier_response"`
	SupplierCounterPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"supplier_counter_price"`

	Status        RoundStatus `gorm:"type:enum('SENT','ACCEPTED','REJECTED','COUNTER_OFFER');not null;default:'SENT'" json:"status"`
	GeneratedByAI *bool       `gorm:"not null;default:true" json:"generated_by_ai"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// OpenNegotiation creates the aggregate for (task, supplier), or returns the
// existing one: starting a negotiation twice must not reset its rounds.
func OpenNegotiation(ctx context.Context, taskId int, supplierId int, quoteId int, action NegotiationAction, initialPrice decimal.Decimal, maxRounds int) (*Negotiation, bool, error) {
	db := config.GetDB()

	var existing Negotiation
	err := db.WithContext(ctx).
		Where("procurement_task_id = ? AND supplier_id = ?", taskId, supplierId).
		First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	negotiation := Negotiation{
		ProcurementTaskId: taskId,
		SupplierId:        supplierId,
		QuoteId:           quoteId,
		Status:            NegotiationInProgress,
		Action:            action,
		MaxRounds:         maxRounds,
		InitialUnitPrice:  initialPrice,
		FinalUnitPrice:    initialPrice,
	}
	if err := db.WithContext(ctx).Create(&negotiation).Error; err != nil {
		return nil, false, err
	}
	return &negotiation, true, nil
}

// AppendRound records one exchange and bumps the aggregate's round counter.
func AppendRound(ctx context.Context, negotiation *Negotiation, round *NegotiationRound) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		round.NegotiationId = negotiation.ID
		if err := tx.Create(round).Error; err != nil {
			return err
		}
		negotiation.CurrentRound = round.RoundNumber
		return tx.Model(&Negotiation{}).
			Where("id = ?", negotiation.ID).
			Update("current_round", round.RoundNumber).Error
	})
}

// CloseNegotiation finalizes the aggregate with the best terms reached.
func CloseNegotiation(ctx context.Context, negotiation *Negotiation, status NegotiationStatus, finalPrice decimal.Decimal, finalDeliveryDays int, savings decimal.Decimal) error {
	db := config.GetDB()
	now := time.Now().UTC()
	err := db.WithContext(ctx).Model(&Negotiation{}).
		Where("id = ?", negotiation.ID).
		Updates(map[string]interface{}{
			"status":              status,
			"final_unit_price":    finalPrice,
			"final_delivery_days": finalDeliveryDays,
			"savings_amount":      savings,
			"completed_at":        now,
		}).Error
	if err != nil {
		return err
	}
	negotiation.Status = status
	negotiation.FinalUnitPrice = finalPrice
	negotiation.FinalDeliveryDays = finalDeliveryDays
	negotiation.SavingsAmount = savings
	negotiation.CompletedAt = &now
	return nil
}

func NegotiationsForTask(ctx context.Context, taskId int) ([]Negotiation, error) {
	db := config.GetDB()
	var negotiations []Negotiation
	err := db.WithContext(ctx).
		Preload("Rounds", func(db *gorm.DB) *gorm.DB { return db.Order("round_number ASC") }).
		Where("procurement_task_id = ?", taskId).
		Order("id ASC").
		Find(&negotiations).Error
	return negotiations, err
}

func CountOpenNegotiations(ctx context.Context, taskId int) (int64, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&Negotiation{}).
		Where("procurement_task_id = ? AND status = ?", taskId, NegotiationInProgress).
		Count(&count).Error
	return count, err
}

func GetNegotiationForSupplier(ctx context.Context, taskId int, supplierId int) (*Negotiation, error) {
	db := config.GetDB()
	var negotiation Negotiation
	err := db.WithContext(ctx).
		Preload("Rounds", func(db *gorm.DB) *gorm.DB { return db.Order("round_number ASC") }).
		Where("procurement_task_id = ? AND supplier_id = ?", taskId, supplierId).
		First(&negotiation).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &negotiation, nil
}
