package database

import (
	"errors"
	"fmt"

	"labdesk/internal/config"
	"labdesk/internal/logger"
	"labdesk/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seed creates the default admin, optional demo users and the base test
// catalog. Safe to run on every start.
func Seed(db *gorm.DB, cfg *config.Config, log *logger.Logger) error {
	if err := createDefaultAdmin(db, cfg.AdminUsername, cfg.AdminPassword, log); err != nil {
		return err
	}
	if cfg.SeedDemoUsers {
		seedDemoUsers(db, log)
	}
	return seedTestCatalog(db, log)
}

// admin only from config
func createDefaultAdmin(db *gorm.DB, username, password string, log *logger.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash default admin password: %w", err)
	}

	admin := models.User{
		Username:     username,
		FullName:     "Administrator",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}

	log.Info("created default admin user", "username", username)
	return nil
}

// one account per non-admin role for demos
func seedDemoUsers(db *gorm.DB, log *logger.Logger) {
	type seedUser struct {
		Username string
		Password string
		Role     models.UserRole
	}

	users := []seedUser{
		{Username: "reception@lab.local", Password: "Reception123!", Role: models.RoleReceptionist},
		{Username: "tech@lab.local", Password: "Tech123!", Role: models.RoleTechnician},
		{Username: "accounts@lab.local", Password: "Accounts123!", Role: models.RoleAccountant},
	}

	for _, u := range users {
		var count int64
		if err := db.Model(&models.User{}).
			Where("username = ?", u.Username).
			Count(&count).Error; err != nil {
			log.Warn("failed to check seed user", "username", u.Username, "error", err)
			continue
		}
		if count > 0 {
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Warn("failed to hash seed user password", "username", u.Username, "error", err)
			continue
		}

		user := models.User{
			Username:     u.Username,
			PasswordHash: string(hash),
			Role:         u.Role,
		}
		if err := db.Create(&user).Error; err != nil {
			log.Warn("failed to create seed user", "username", u.Username, "error", err)
			continue
		}

		log.Info("created seed user", "username", u.Username, "role", u.Role)
	}
}

var baseCatalog = []models.Test{
	{Code: "CC-CS", Name: "Compressive Strength", Category: "concrete", Standard: "BS EN 12390-3", Price: decimal.NewFromInt(25000)},
	{Code: "BB-CS", Name: "Compressive Strength (Bricks/Blocks)", Category: "bricks", Standard: "BS EN 772-1", Price: decimal.NewFromInt(20000)},
	{Code: "BB-WA", Name: "Water Absorption Test", Category: "bricks", Standard: "BS EN 772-21", Price: decimal.NewFromInt(15000)},
	{Code: "PV-SP", Name: "Splitting Tensile Strength", Category: "pavers", Standard: "BS EN 1338", Price: decimal.NewFromInt(30000)},
	{Code: "CY-CS", Name: "Cylinder Compressive Strength", Category: "cylinder", Standard: "ASTM C39", Price: decimal.NewFromInt(30000)},
	{Code: "GN-DM", Name: "Dimensions", Category: "general", Standard: "", Price: decimal.NewFromInt(5000)},
}

func seedTestCatalog(db *gorm.DB, log *logger.Logger) error {
	for _, t := range baseCatalog {
		var existing models.Test
		err := db.Where("code = ?", t.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check catalog test %s: %w", t.Code, err)
		}
		entry := t
		if err := db.Create(&entry).Error; err != nil {
			return fmt.Errorf("seed catalog test %s: %w", t.Code, err)
		}
		log.Debug("seeded catalog test", "code", t.Code)
	}
	return nil
}
