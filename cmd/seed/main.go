// Command seed loads demo sites, pages, blocks and articles into the database.
package main

import (
	_ "embed"
	"flag"
	"fmt"
	"os"

	"github.com/simplecms/internal/config"
	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

//go:embed demo.yaml
var demoFixture []byte

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var fixturePath string
	var force bool
	flag.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "path to sqlite database")
	flag.StringVar(&fixturePath, "file", "", "YAML fixture to load (default: built-in demo data)")
	flag.BoolVar(&force, "force", false, "seed even if the database already has pages")
	flag.Parse()

	log, err := logging.New(cfg.LogLevel, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	raw := demoFixture
	if fixturePath != "" {
		if raw, err = os.ReadFile(fixturePath); err != nil {
			log.Fatal("read fixture failed", zap.String("file", fixturePath), zap.Error(err))
		}
	}
	fixture, err := ParseFixture(raw)
	if err != nil {
		log.Fatal("invalid fixture", zap.Error(err))
	}

	// 初始化数据库
	gdb, err := db.Open(cfg.DatabasePath, logger.Warn)
	if err != nil {
		log.Fatal("数据库初始化失败", zap.Error(err))
	}

	if created, err := db.EnsureUser(gdb, cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		log.Fatal("ensure admin user failed", zap.Error(err))
	} else if created {
		log.Info("管理员账号已创建", zap.String("username", cfg.SuperRootUserName))
	}

	var count int64
	if err := gdb.Model(&db.Page{}).Count(&count).Error; err != nil {
		log.Fatal("count pages failed", zap.Error(err))
	}
	if count > 0 && !force {
		log.Info("页面已存在，跳过生成", zap.Int64("pages", count))
		return
	}

	log.Info("开始生成测试数据...", zap.String("database", cfg.DatabasePath))
	summary, err := Apply(gdb, fixture, cfg.SiteID)
	if err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
	log.Info("测试数据生成完成",
		zap.Int("pages", summary.Pages),
		zap.Int("blocks", summary.Blocks),
		zap.Int("categories", summary.Categories),
		zap.Int("articles", summary.Articles),
	)
}
