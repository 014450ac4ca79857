package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/venpus/labsemble-v1-1-sub002/config"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
	"gorm.io/gorm"
)

// SupplierLedgerEntry is one of the five fixed payment slots against the
// factory: an advance, up to three interim installments and the balance.
// Slots are upserted by name, never appended.
type SupplierLedgerEntry struct {
	ID          int               `gorm:"primary_key" json:"id"`
	ProjectId   int               `gorm:"index:idx_ledger_slot,unique;not null" json:"project_id"`
	Installment LedgerInstallment `gorm:"index:idx_ledger_slot,unique;size:20;not null" json:"installment"`
	Amount      decimal.Decimal   `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	Paid        *bool             `gorm:"not null;default:false" json:"paid"`
	PaidDate    *time.Time        `json:"paid_date"`
	Note        string            `gorm:"size:200" json:"note"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplierLedgerEntry struct {
	Installment LedgerInstallment `json:"installment" binding:"required"`
	Amount      decimal.Decimal   `json:"amount"`
	Paid        *bool             `json:"paid"`
	PaidDate    *time.Time        `json:"paid_date"`
	Note        string            `json:"note"`
}

func (input *NewSupplierLedgerEntry) validate() error {
	if !IsValidInstallment(input.Installment) {
		return utils.NewValidationError("installment", "must be one of Advance, Interim1, Interim2, Interim3, Balance")
	}
	if input.Amount.IsNegative() {
		return utils.NewValidationError("amount", "must not be negative")
	}
	return nil
}

func ListSupplierLedger(ctx context.Context, projectId int) ([]SupplierLedgerEntry, error) {
	db := config.GetDB()
	var entries []SupplierLedgerEntry
	if err := db.WithContext(ctx).Where("project_id = ?", projectId).Find(&entries).Error; err != nil {
		return nil, err
	}
	return orderLedgerEntries(entries), nil
}

// orderLedgerEntries applies the fixed slot order regardless of insertion order.
func orderLedgerEntries(entries []SupplierLedgerEntry) []SupplierLedgerEntry {
	ordered := make([]SupplierLedgerEntry, 0, len(entries))
	for _, name := range LedgerInstallments {
		for _, e := range entries {
			if e.Installment == name {
				ordered = append(ordered, e)
			}
		}
	}
	return ordered
}

// UpsertSupplierLedger replaces the named slots in one transaction. Slots not
// present in the input are left untouched.
func UpsertSupplierLedger(ctx context.Context, projectId int, inputs []NewSupplierLedgerEntry) ([]SupplierLedgerEntry, error) {
	if err := utils.ValidateResourceId[Project](ctx, projectId); err != nil {
		return nil, err
	}
	seen := map[LedgerInstallment]bool{}
	for i := range inputs {
		if err := inputs[i].validate(); err != nil {
			return nil, err
		}
		if seen[inputs[i].Installment] {
			return nil, utils.NewValidationError("installment", "duplicate installment slot")
		}
		seen[inputs[i].Installment] = true
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, input := range inputs {
			var entry SupplierLedgerEntry
			err := tx.Where("project_id = ? AND installment = ?", projectId, input.Installment).
				Take(&entry).Error
			if err != nil && err != gorm.ErrRecordNotFound {
				return err
			}
			paid := utils.DereferencePtr(input.Paid)
			paidDate := utils.NormalizeDatePtr(input.PaidDate)
			if paid && paidDate == nil {
				d := utils.NormalizeDate(time.Now().UTC())
				paidDate = &d
			}
			if !paid {
				paidDate = nil
			}
			if err == gorm.ErrRecordNotFound {
				entry = SupplierLedgerEntry{
					ProjectId:   projectId,
					Installment: input.Installment,
					Amount:      input.Amount,
					Paid:        &paid,
					PaidDate:    paidDate,
					Note:        input.Note,
				}
				if err := tx.Create(&entry).Error; err != nil {
					if isDuplicateKeyErr(err) {
						return utils.NewValidationError("installment", "slot written concurrently; retry")
					}
					return err
				}
				continue
			}
			if err := tx.Model(&entry).Updates(map[string]interface{}{
				"Amount":   input.Amount,
				"Paid":     paid,
				"PaidDate": paidDate,
				"Note":     input.Note,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ListSupplierLedger(ctx, projectId)
}
