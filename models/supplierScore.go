package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
)

// SupplierScore is one scored candidate from a decision run. Runs insert new
// rows rather than overwrite, so scoring history is preserved per task.
type SupplierScore struct {
	ID                int `gorm:"primary_key" json:"id"`
	ProcurementTaskId int `gorm:"index;not null" json:"procurement_task_id"`
	SupplierId        int `gorm:"index;not null" json:"supplier_id"`
	QuoteId           int `gorm:"index" json:"quote_id"`

	PriceScore       float64 `gorm:"type:decimal(7,2);not null" json:"price_score"`
	SpeedScore       float64 `gorm:"type:decimal(7,2);not null" json:"speed_score"`
	ReliabilityScore float64 `gorm:"type:decimal(7,2);not null" json:"reliability_score"`
	StockScore       float64 `gorm:"type:decimal(7,2);not null" json:"stock_score"`

	PriceWeight       float64 `gorm:"type:decimal(5,3);not null" json:"price_weight"`
	SpeedWeight       float64 `gorm:"type:decimal(5,3);not null" json:"speed_weight"`
	ReliabilityWeight float64 `gorm:"type:decimal(5,3);not null" json:"reliability_weight"`
	StockWeight       float64 `gorm:"type:decimal(5,3);not null" json:"stock_weight"`

	TotalScore float64 `gorm:"type:decimal(7,2);not null;index" json:"total_score"`
	Rank       int     `gorm:"not null" json:"rank"`
	Reasoning  string  `gorm:"type:text" json:"reasoning"`

	Urgency    UrgencyLevel `gorm:"type:enum('CRITICAL','HIGH','MEDIUM','LOW')" json:"urgency"`
	BudgetMode *bool        `gorm:"not null;default:false" json:"budget_mode"`
	CreatedAt  time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func SaveSupplierScores(ctx context.Context, scores []SupplierScore) error {
	if len(scores) == 0 {
		return nil
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(&scores).Error
}

// LatestScoresForTask returns the most recent scoring run, ranked ascending.
func LatestScoresForTask(ctx context.Context, taskId int) ([]SupplierScore, error) {
	db := config.GetDB()

	var latest time.Time
	err := db.WithContext(ctx).Model(&SupplierScore{}).
		Where("procurement_task_id = ?", taskId).
		Select("MAX(created_at)").
		Scan(&latest).Error
	if err != nil {
		return nil, err
	}

	var scores []SupplierScore
	err = db.WithContext(ctx).
		Where("procurement_task_id = ? AND created_at = ?", taskId, latest).
		Order("`rank` ASC").
		Find(&scores).Error
	return scores, err
}
