package models

import (
	"context"
	"time"

	"github.com/venpus/labsemble-v1-1-sub002/config"
	"github.com/venpus/labsemble-v1-1-sub002/engine"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
	"gorm.io/gorm"
)

// WarehouseEntry is one receiving event against a project's order. A project
// holds at most ten entries; the sum of their quantities is pushed into the
// project row as entered_quantity so list views never join for it.
//
// Images are opaque refs (URLs) written by the upload service; this backend
// never touches the bytes.
type WarehouseEntry struct {
	ID           int                    `gorm:"primary_key" json:"id"`
	ProjectId    int                    `gorm:"index;not null" json:"project_id"`
	Quantity     int                    `gorm:"not null" json:"quantity" binding:"required"`
	EntryDate    *time.Time             `json:"entry_date"`
	ShippingDate *time.Time             `json:"shipping_date"`
	Status       engine.WarehouseStatus `gorm:"size:20;not null;default:Receiving" json:"status"`
	ImageUrls    string                 `gorm:"type:text" json:"image_urls"`
	Note         string                 `gorm:"size:200" json:"note"`
	CreatedAt    time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWarehouseEntry struct {
	Quantity     int                    `json:"quantity" binding:"required"`
	EntryDate    *time.Time             `json:"entry_date"`
	ShippingDate *time.Time             `json:"shipping_date"`
	Status       engine.WarehouseStatus `json:"status"`
	ImageUrls    string                 `json:"image_urls"`
	Note         string                 `json:"note"`
}

func (input *NewWarehouseEntry) validate() error {
	if input.Quantity <= 0 {
		return utils.NewValidationError("quantity", "must be positive")
	}
	if input.EntryDate == nil {
		return utils.NewValidationError("entry_date", "is required")
	}
	if input.ShippingDate == nil {
		return utils.NewValidationError("shipping_date", "is required")
	}
	switch input.Status {
	case "", engine.WarehouseStatusReceiving, engine.WarehouseStatusReceived:
	default:
		return utils.NewValidationError("status", "must be Receiving or Received")
	}
	return nil
}

func GetWarehouseEntry(ctx context.Context, entryId int) (*WarehouseEntry, error) {
	db := config.GetDB()
	var entry WarehouseEntry
	if err := db.WithContext(ctx).Take(&entry, entryId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func ListWarehouseEntries(ctx context.Context, projectId int) ([]WarehouseEntry, error) {
	db := config.GetDB()
	var entries []WarehouseEntry
	if err := db.WithContext(ctx).Where("project_id = ?", projectId).Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// SumEnteredQuantity is the aggregation rule: total received across entries.
func SumEnteredQuantity(entries []WarehouseEntry) int {
	total := 0
	for _, e := range entries {
		total += e.Quantity
	}
	return total
}

func CreateWarehouseEntry(ctx context.Context, projectId int, input *NewWarehouseEntry) (*WarehouseEntry, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Project](ctx, projectId); err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[WarehouseEntry](ctx, "project_id = ?", projectId)
	if err != nil {
		return nil, err
	}
	if count >= engine.MaxWarehouseEntries {
		return nil, utils.NewValidationError("quantity", "at most 10 warehouse entries per project")
	}

	status := input.Status
	if status == "" {
		status = engine.WarehouseStatusReceiving
	}
	entry := WarehouseEntry{
		ProjectId:    projectId,
		Quantity:     input.Quantity,
		EntryDate:    utils.NormalizeDatePtr(input.EntryDate),
		ShippingDate: utils.NormalizeDatePtr(input.ShippingDate),
		Status:       status,
		ImageUrls:    input.ImageUrls,
		Note:         input.Note,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return pushEnteredQuantity(tx, projectId)
	})
	if err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey(projectSnapshotKey(projectId))
	return &entry, nil
}

// SetEntryQuantity corrects one entry in place. The project aggregate is
// re-summed from all entries, not adjusted by the delta, so a concurrent
// correction can never skew it.
func SetEntryQuantity(ctx context.Context, entryId int, quantity int) (*WarehouseEntry, error) {
	if quantity <= 0 {
		return nil, utils.NewValidationError("quantity", "must be positive")
	}

	db := config.GetDB()
	var entry WarehouseEntry
	if err := db.WithContext(ctx).Take(&entry, entryId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entry).Update("quantity", quantity).Error; err != nil {
			return err
		}
		return pushEnteredQuantity(tx, entry.ProjectId)
	})
	if err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey(projectSnapshotKey(entry.ProjectId))
	return &entry, nil
}

func DeleteWarehouseEntry(ctx context.Context, entryId int) (*WarehouseEntry, error) {
	db := config.GetDB()
	var entry WarehouseEntry
	if err := db.WithContext(ctx).Take(&entry, entryId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&entry).Error; err != nil {
			return err
		}
		return pushEnteredQuantity(tx, entry.ProjectId)
	})
	if err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey(projectSnapshotKey(entry.ProjectId))
	return &entry, nil
}

// pushEnteredQuantity re-sums all entries of the project and writes the
// aggregate into the project row, inside the caller's transaction.
func pushEnteredQuantity(tx *gorm.DB, projectId int) error {
	var total int64
	err := tx.Model(&WarehouseEntry{}).
		Where("project_id = ?", projectId).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return err
	}
	return tx.Model(&Project{}).Where("id = ?", projectId).
		Update("entered_quantity", int(total)).Error
}
