package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Models lists every persisted entity in migration order.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Site{},
		&PageGroup{},
		&Page{},
		&BlockGroup{},
		&Block{},
		&PageBlock{},
		&BlockAssociation{},
		&Seo{},
		&Category{},
		&Tag{},
		&Article{},
	}
}

// Init 初始化数据库连接并执行自动迁移。
// databasePath 为空时将回退到默认值 simplecms.db。
func Init(databasePath string, level logger.LogLevel) error {
	gdb, err := Open(databasePath, level)
	if err != nil {
		return err
	}
	DB = gdb
	return nil
}

// Open connects to the sqlite file at databasePath and migrates the schema.
func Open(databasePath string, level logger.LogLevel) (*gorm.DB, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = "simplecms.db"
	}

	if err := ensureParentDir(path); err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer; one connection avoids SQLITE_BUSY between
	// concurrent transactions.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// Migrate creates or updates the tables for all models.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(Models()...)
}

func ensureParentDir(path string) error {
	if strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
