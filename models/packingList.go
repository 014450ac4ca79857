package models

import (
	"context"
	"fmt"
	"time"

	"github.com/venpus/labsemble-v1-1-sub002/engine"
	"github.com/xuri/excelize/v2"
)

const packingListSheet = "Packing List"

// BuildPackingList renders one project's receiving history as an xlsx
// workbook: a header block with the reconciled delivery view and one row per
// warehouse entry. The caller streams the file to the response.
func BuildPackingList(ctx context.Context, projectId int, today time.Time) (*excelize.File, error) {
	snap, err := LoadSnapshot(ctx, projectId)
	if err != nil {
		return nil, err
	}
	engine.Recompute(&snap, today)

	project, err := GetProject(ctx, projectId)
	if err != nil {
		return nil, err
	}
	entries, err := ListWarehouseEntries(ctx, projectId)
	if err != nil {
		return nil, err
	}
	return renderPackingList(project, snap, entries), nil
}

func renderPackingList(project *Project, snap engine.ProjectSnapshot, entries []WarehouseEntry) *excelize.File {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", packingListSheet)

	f.SetCellValue(packingListSheet, "A1", "Project")
	f.SetCellValue(packingListSheet, "B1", project.ProjectName)
	f.SetCellValue(packingListSheet, "A2", "Supplier")
	f.SetCellValue(packingListSheet, "B2", project.SupplierName)
	f.SetCellValue(packingListSheet, "A3", "Shipping Status")
	f.SetCellValue(packingListSheet, "B3", string(snap.ShippingStatus))
	f.SetCellValue(packingListSheet, "A4", "Shipped")
	if snap.ShippingStatus.IsShipped() {
		f.SetCellValue(packingListSheet, "B4", "Yes")
		if snap.ActualShipDate != nil {
			f.SetCellValue(packingListSheet, "C4", snap.ActualShipDate.Format("2006-01-02"))
		}
	} else {
		f.SetCellValue(packingListSheet, "B4", "No")
	}
	f.SetCellValue(packingListSheet, "A5", "Ordered")
	f.SetCellValue(packingListSheet, "B5", snap.OrderedQuantity)
	f.SetCellValue(packingListSheet, "A6", "Received")
	f.SetCellValue(packingListSheet, "B6", snap.EnteredQuantity)
	f.SetCellValue(packingListSheet, "A7", "Remaining")
	f.SetCellValue(packingListSheet, "B7", snap.RemainingQuantity)
	f.SetCellValue(packingListSheet, "A8", "Warehouse Status")
	f.SetCellValue(packingListSheet, "B8", string(snap.WarehouseStatus))

	// Entry table.
	const tableStart = 10
	f.SetCellValue(packingListSheet, "A"+fmt.Sprint(tableStart), "No")
	f.SetCellValue(packingListSheet, "B"+fmt.Sprint(tableStart), "Quantity")
	f.SetCellValue(packingListSheet, "C"+fmt.Sprint(tableStart), "EntryDate")
	f.SetCellValue(packingListSheet, "D"+fmt.Sprint(tableStart), "ShippingDate")
	f.SetCellValue(packingListSheet, "E"+fmt.Sprint(tableStart), "Status")
	f.SetCellValue(packingListSheet, "F"+fmt.Sprint(tableStart), "Note")
	for i, entry := range entries {
		row := fmt.Sprint(tableStart + 1 + i)
		f.SetCellValue(packingListSheet, "A"+row, i+1)
		f.SetCellValue(packingListSheet, "B"+row, entry.Quantity)
		if entry.EntryDate != nil {
			f.SetCellValue(packingListSheet, "C"+row, entry.EntryDate.Format("2006-01-02"))
		}
		if entry.ShippingDate != nil {
			f.SetCellValue(packingListSheet, "D"+row, entry.ShippingDate.Format("2006-01-02"))
		}
		f.SetCellValue(packingListSheet, "E"+row, string(entry.Status))
		f.SetCellValue(packingListSheet, "F"+row, entry.Note)
	}

	return f
}
