// Schema migration and role seeding for the access approval service.
// cmd/migrate/main.go
package main

import (
	"log"

	"access-approval-api/config"
	"access-approval-api/models"
	"access-approval-api/services"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	// Initialize database
	config.InitDB()

	if err := config.DB.AutoMigrate(
		&models.Division{},
		&models.Department{},
		&models.Role{},
		&models.User{},
		&models.UserRole{},
		&models.AccessRequest{},
		&models.AccessRequestStatusHistory{},
		&models.Signature{},
		&models.AuditLog{},
		&models.Notification{},
	); err != nil {
		config.Logger.Fatal("schema migration failed", zap.Error(err))
	}

	roles := []string{
		services.RoleStaff,
		services.RoleHeadOfDepartment,
		services.RoleDivisionalDirector,
		services.RoleICTDirector,
		services.RoleAdmin,
	}
	for _, name := range roles {
		role := models.Role{Role: name}
		if err := config.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&role).Error; err != nil {
			config.Logger.Fatal("failed to seed role", zap.String("role", name), zap.Error(err))
		}
	}

	config.Logger.Info("migration completed", zap.Int("roles", len(roles)))
}
