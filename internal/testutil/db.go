// Package testutil provides in-memory databases and fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"labdesk/internal/database"
	"labdesk/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB returns a migrated in-memory sqlite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=1", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, username string, role models.UserRole) models.User {
	t.Helper()
	u := models.User{Username: username, PasswordHash: "x", Role: role}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func CreateClient(t *testing.T, db *gorm.DB, name string) models.Client {
	t.Helper()
	c := models.Client{Name: name}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func CreateTest(t *testing.T, db *gorm.DB, code, name, category string, price int64) models.Test {
	t.Helper()
	tt := models.Test{Code: code, Name: name, Category: category, Price: decimal.NewFromInt(price)}
	require.NoError(t, db.Create(&tt).Error)
	return tt
}
