package service

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/simplecms/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

func setupServiceTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	dsn := fmt.Sprintf("file:service-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), testDBSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	return gdb, func() {
		_ = sqlDB.Close()
	}
}

func seedSite(t *testing.T, gdb *gorm.DB, id uint, domain string) *db.Site {
	t.Helper()
	site := db.Site{ID: id, Domain: domain, Name: domain}
	if err := gdb.Create(&site).Error; err != nil {
		t.Fatalf("failed to seed site: %v", err)
	}
	return &site
}

func uintPtr(v uint) *uint {
	return &v
}

func intPtr(v int) *int {
	return &v
}
