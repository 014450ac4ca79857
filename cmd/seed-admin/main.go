// seed-admin creates or updates the dashboard admin user.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/venpus/labsemble-v1-1-sub002/config"
	"github.com/venpus/labsemble-v1-1-sub002/models"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "labsembleAdmin"
	adminName     = "Labsemble Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD is required")
		os.Exit(2)
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username: adminUsername,
			Name:     adminName,
			Password: hashedStr,
			IsActive: utils.NewTrue(),
			Role:     models.UserRoleAdmin,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("created admin user", adminUsername)
		return
	}

	err = db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"Password": hashedStr,
		"IsActive": true,
		"Role":     models.UserRoleAdmin,
	}).Error
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	// Drop the cached copy so the new password takes effect immediately.
	_ = existing.RemoveInstanceRedis()
	fmt.Println("updated admin user", adminUsername)
}
