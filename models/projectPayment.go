package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/venpus/labsemble-v1-1-sub002/config"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
	"gorm.io/gorm"
)

// ProjectPayment is the 1:1 payment record of a project. Amount columns
// (subtotal, fee, balance, total) are intentionally absent: they are derived
// and recomputed on every read.
type ProjectPayment struct {
	ID        int `gorm:"primary_key" json:"id"`
	ProjectId int `gorm:"uniqueIndex;not null" json:"project_id"`

	FeeRatePercent int             `gorm:"not null;default:0" json:"fee_rate_percent"`
	ShippingCost   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_cost"`

	AdvancePaid *bool `gorm:"not null;default:false" json:"advance_paid"`
	BalancePaid *bool `gorm:"not null;default:false" json:"balance_paid"`
	TotalPaid   *bool `gorm:"not null;default:false" json:"total_paid"`

	AdvancePaymentDate *time.Time `json:"advance_payment_date"`
	BalancePaymentDate *time.Time `json:"balance_payment_date"`
	TotalPaymentDate   *time.Time `json:"total_payment_date"`

	CostItems []PaymentCostItem `gorm:"foreignKey:ProjectPaymentId" json:"cost_items"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PaymentCostItem is one ad-hoc charge on a payment record (customs,
// inspection, rework and the like).
type PaymentCostItem struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ProjectPaymentId int             `gorm:"index;not null" json:"project_payment_id"`
	Description      string          `gorm:"size:200;not null" json:"description"`
	Cost             decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"cost"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func GetProjectPayment(ctx context.Context, projectId int) (*ProjectPayment, error) {
	db := config.GetDB()
	var payment ProjectPayment
	err := db.WithContext(ctx).Preload("CostItems").
		Where("project_id = ?", projectId).Take(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &payment, nil
}
