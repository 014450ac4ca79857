// entered-qty-backfill re-sums warehouse entries for every project and
// repairs the entered_quantity aggregate on the project rows. Run it after
// importing legacy data or whenever the aggregate is suspected to have
// drifted.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/entered-qty-backfill
//
// Pass -dry-run to report drift without writing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/venpus/labsemble-v1-1-sub002/config"
	"github.com/venpus/labsemble-v1-1-sub002/models"
	"gorm.io/gorm"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report drift without writing")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	var projects []models.Project
	if err := db.WithContext(ctx).Order("id").Find(&projects).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list projects: %v\n", err)
		os.Exit(1)
	}

	fixed := 0
	for _, p := range projects {
		entries, err := models.ListWarehouseEntries(ctx, p.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "project %d: failed to list entries: %v\n", p.ID, err)
			os.Exit(1)
		}
		total := models.SumEnteredQuantity(entries)
		if total == p.EnteredQuantity {
			continue
		}
		fmt.Printf("project %d (%s): entered_quantity %d -> %d\n", p.ID, p.ProjectName, p.EnteredQuantity, total)
		if *dryRun {
			fixed++
			continue
		}
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Model(&models.Project{}).Where("id = ?", p.ID).
				Update("entered_quantity", total).Error
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "project %d: failed to update: %v\n", p.ID, err)
			os.Exit(1)
		}
		fixed++
	}

	if *dryRun {
		fmt.Printf("dry run: %d project(s) with drift\n", fixed)
		return
	}
	fmt.Printf("backfilled %d project(s)\n", fixed)
}
