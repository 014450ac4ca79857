package models

import (
	"context"
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/venpus/labsemble-v1-1-sub002/config"
	"github.com/venpus/labsemble-v1-1-sub002/engine"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// SnapshotGateway persists full reconciled snapshots. Each submission is one
// transaction over the project row, its payment record and the cost items;
// partial field merges are impossible by construction. The write is
// conditional on the version the snapshot was computed against.
type SnapshotGateway struct {
	logger *logrus.Logger
}

func NewSnapshotGateway(logger *logrus.Logger) *SnapshotGateway {
	return &SnapshotGateway{logger: logger}
}

func (g *SnapshotGateway) Submit(ctx context.Context, snap engine.ProjectSnapshot) error {
	db := config.GetDB()
	if db == nil {
		return &utils.TransportError{Cause: errors.New("database not connected")}
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&current, snap.ProjectId).Error; err != nil {
			return err
		}
		if current.Version != snap.BaseVersion {
			return engine.SubmittedButStale(snap.Version, current.Version)
		}

		orderCompleted := snap.OrderCompleted
		if err := tx.Model(&Project{}).Where("id = ?", snap.ProjectId).
			Updates(map[string]interface{}{
				"OrderCompleted":      orderCompleted,
				"ActualOrderDate":     snap.ActualOrderDate,
				"FactoryLeadTimeDays": snap.FactoryLeadTimeDays,
				"ActualShipDate":      snap.ActualShipDate,
				"OrderedQuantity":     snap.OrderedQuantity,
				"EnteredQuantity":     snap.EnteredQuantity,
				"UnitPrice":           snap.UnitPrice,
				"Version":             snap.Version,
			}).Error; err != nil {
			return err
		}

		var payment ProjectPayment
		err := tx.Where("project_id = ?", snap.ProjectId).Take(&payment).Error
		if err == gorm.ErrRecordNotFound {
			payment = ProjectPayment{ProjectId: snap.ProjectId}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		advancePaid := snap.PaymentStatus.AdvancePaid
		balancePaid := snap.PaymentStatus.BalancePaid
		totalPaid := snap.PaymentStatus.TotalPaid
		if err := tx.Model(&payment).Updates(map[string]interface{}{
			"FeeRatePercent":     snap.FeeRatePercent,
			"ShippingCost":       snap.ShippingCost,
			"AdvancePaid":        advancePaid,
			"BalancePaid":        balancePaid,
			"TotalPaid":          totalPaid,
			"AdvancePaymentDate": snap.PaymentDates.Advance,
			"BalancePaymentDate": snap.PaymentDates.Balance,
			"TotalPaymentDate":   snap.PaymentDates.Total,
		}).Error; err != nil {
			return err
		}

		// Cost items are replaced wholesale, matching the full-snapshot model.
		if err := tx.Where("project_payment_id = ?", payment.ID).
			Delete(&PaymentCostItem{}).Error; err != nil {
			return err
		}
		for _, item := range snap.AdditionalCostItems {
			row := PaymentCostItem{
				ProjectPaymentId: payment.ID,
				Description:      item.Description,
				Cost:             item.Cost,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		if utils.IsStaleWriteError(err) {
			return err
		}
		if err == gorm.ErrRecordNotFound {
			return utils.NewValidationError("project_id", "project not found")
		}
		config.LogError(g.logger, "models", "SnapshotGateway.Submit", "transaction", snap.ProjectId, err)
		return &utils.TransportError{Cause: err}
	}

	cacheSnapshot(snap)
	return nil
}
