package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/simplecms/internal/cache"
	"github.com/simplecms/internal/config"
	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/handler"
	"github.com/simplecms/internal/logging"
	"github.com/simplecms/internal/metrics"
	"github.com/simplecms/internal/router"
	"github.com/simplecms/internal/view"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.AppConfig, log *zap.Logger) error {
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath, gormLogLevel(cfg.LogLevel)); err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	created, err := db.EnsureUser(db.DB, cfg.SuperRootUserName, cfg.SuperRootPassword)
	if err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}
	if created {
		log.Info("admin user created", zap.String("username", cfg.SuperRootUserName))
	}

	pageCache, closeCache, err := openCache(cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	api := handler.NewAPI(db.DB, handler.Options{
		DefaultSiteID:   cfg.SiteID,
		PageTemplate:    cfg.PageTemplate,
		ArticlesPerPage: cfg.ArticlesPerPage,
		CheckDomain:     cfg.CheckDomain,
		UploadDir:       cfg.UploadDir,
		UploadURL:       cfg.UploadURLPath,
		Cache:           pageCache,
		Log:             log,
	})

	sites, err := config.LoadSites(cfg.SitesFile)
	if err != nil {
		return err
	}
	if err := api.Sites().Sync(sites); err != nil {
		return fmt.Errorf("sync sites: %w", err)
	}
	if _, err := api.Sites().EnsureDefault("localhost", "simplecms"); err != nil {
		return fmt.Errorf("ensure default site: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	templates := []fs.FS{view.Templates()}
	if cfg.TemplateDir != "" {
		templates = append(templates, os.DirFS(cfg.TemplateDir))
	}

	r, err := router.SetupRouter(api, router.Options{
		SessionSecret: cfg.SessionSecret,
		UploadDir:     cfg.UploadDir,
		UploadURLPath: cfg.UploadURLPath,
		Templates:     templates,
		Metrics:       metrics.New(reg),
		Log:           log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openCache connects to Redis when REDIS_URL is set; otherwise pages are not cached.
func openCache(cfg config.AppConfig, log *zap.Logger) (cache.PageCache, func(), error) {
	if cfg.RedisURL == "" {
		return cache.Nop{}, func() {}, nil
	}
	rdb, err := cache.Connect(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("page cache enabled", zap.Duration("ttl", cfg.CacheTTL))
	return cache.NewRedis(rdb, "simplecms", cfg.CacheTTL, log.Named("cache")), func() { rdb.Close() }, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch logging.ParseLevel(level).String() {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	default:
		return logger.Warn
	}
}
