package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/venpus/labsemble-v1-1-sub002/config"
	"github.com/venpus/labsemble-v1-1-sub002/engine"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
	"gorm.io/gorm"
)

// Project is one row on the order dashboard. Only primitives are stored;
// every derived column a list view needs is recomputed on read so stale
// derived values can never be served.
type Project struct {
	ID           int    `gorm:"primary_key" json:"id"`
	ProjectName  string `gorm:"size:200;not null" json:"project_name" binding:"required"`
	SupplierName string `gorm:"size:200" json:"supplier_name"`
	OwnerUserId  int    `gorm:"index" json:"owner_user_id"`

	// Delivery primitives.
	OrderCompleted      *bool      `gorm:"not null;default:false" json:"order_completed"`
	ActualOrderDate     *time.Time `json:"actual_order_date"`
	FactoryLeadTimeDays int        `gorm:"not null;default:7" json:"factory_lead_time_days"`
	ActualShipDate      *time.Time `json:"actual_ship_date"`
	OrderedQuantity     int        `gorm:"not null;default:0" json:"ordered_quantity"`

	// EnteredQuantity is an aggregate pushed from warehouse entries, never
	// edited directly.
	EnteredQuantity int `gorm:"not null;default:0" json:"entered_quantity"`

	UnitPrice decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`

	// Version guards optimistic full-snapshot writes.
	Version string `gorm:"size:40;index" json:"version"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProject struct {
	ProjectName     string          `json:"project_name" binding:"required"`
	SupplierName    string          `json:"supplier_name"`
	OrderedQuantity int             `json:"ordered_quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
}

/*
caches:
	ProjectSnapshot:$id
*/

func projectSnapshotKey(id int) string {
	return "ProjectSnapshot:" + fmt.Sprint(id)
}

func CreateProject(ctx context.Context, input *NewProject) (*Project, error) {
	owner, err := GetSessionUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Project](ctx, "project_name", input.ProjectName, 0); err != nil {
		return nil, err
	}
	if input.OrderedQuantity < 0 {
		return nil, utils.NewValidationError("ordered_quantity", "must not be negative")
	}
	if input.UnitPrice.IsNegative() {
		return nil, utils.NewValidationError("unit_price", "must not be negative")
	}

	project := Project{
		ProjectName:         input.ProjectName,
		SupplierName:        input.SupplierName,
		OwnerUserId:         owner.ID,
		OrderCompleted:      utils.NewFalse(),
		FactoryLeadTimeDays: engine.DefaultFactoryLeadTimeDays,
		OrderedQuantity:     input.OrderedQuantity,
		UnitPrice:           input.UnitPrice,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		payment := ProjectPayment{ProjectId: project.ID}
		return tx.Create(&payment).Error
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func GetProject(ctx context.Context, id int) (*Project, error) {
	db := config.GetDB()
	var project Project
	if err := db.WithContext(ctx).Take(&project, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &project, nil
}

func ListProjects(ctx context.Context) ([]Project, error) {
	db := config.GetDB()
	var projects []Project
	if err := db.WithContext(ctx).Order("id").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func DeleteProject(ctx context.Context, id int) (*Project, error) {
	project, err := GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&WarehouseEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&SupplierLedgerEntry{}).Error; err != nil {
			return err
		}
		var payment ProjectPayment
		if err := tx.Where("project_id = ?", id).Take(&payment).Error; err == nil {
			if err := tx.Where("project_payment_id = ?", payment.ID).Delete(&PaymentCostItem{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&payment).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&Project{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey(projectSnapshotKey(id))
	return project, nil
}

// LoadSnapshot assembles the full reconciled view of a project from its row
// and its payment record, consulting the redis cache first. Derived fields
// are left for the caller's recompute pass.
func LoadSnapshot(ctx context.Context, projectId int) (engine.ProjectSnapshot, error) {
	var snap engine.ProjectSnapshot
	exists, err := config.GetRedisObject(projectSnapshotKey(projectId), &snap)
	if err == nil && exists {
		return snap, nil
	}

	project, err := GetProject(ctx, projectId)
	if err != nil {
		return snap, err
	}
	payment, err := GetProjectPayment(ctx, projectId)
	if err != nil && err != utils.ErrorRecordNotFound {
		return snap, err
	}

	snap = engine.ProjectSnapshot{
		ProjectId:           project.ID,
		Version:             project.Version,
		OrderCompleted:      utils.DereferencePtr(project.OrderCompleted),
		ActualOrderDate:     utils.NormalizeDatePtr(project.ActualOrderDate),
		FactoryLeadTimeDays: project.FactoryLeadTimeDays,
		ActualShipDate:      utils.NormalizeDatePtr(project.ActualShipDate),
		OrderedQuantity:     project.OrderedQuantity,
		EnteredQuantity:     project.EnteredQuantity,
		UnitPrice:           project.UnitPrice,
	}
	if payment != nil {
		snap.FeeRatePercent = payment.FeeRatePercent
		snap.ShippingCost = payment.ShippingCost
		snap.PaymentStatus = engine.PaymentStatus{
			AdvancePaid: utils.DereferencePtr(payment.AdvancePaid),
			BalancePaid: utils.DereferencePtr(payment.BalancePaid),
			TotalPaid:   utils.DereferencePtr(payment.TotalPaid),
		}
		snap.PaymentDates = engine.PaymentDates{
			Advance: payment.AdvancePaymentDate,
			Balance: payment.BalancePaymentDate,
			Total:   payment.TotalPaymentDate,
		}
		for _, item := range payment.CostItems {
			snap.AdditionalCostItems = append(snap.AdditionalCostItems, engine.CostItem{
				Id:          item.ID,
				Description: item.Description,
				Cost:        item.Cost,
			})
		}
	}
	return snap, nil
}

func cacheSnapshot(snap engine.ProjectSnapshot) {
	_ = config.SetRedisObject(projectSnapshotKey(snap.ProjectId), &snap, time.Hour)
}
