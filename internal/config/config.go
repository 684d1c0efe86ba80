package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string        `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabasePath      string        `env:"DATABASE_PATH" envDefault:"simplecms.db"`
	SessionSecret     string        `env:"SESSION_SECRET" envDefault:"simplecms-dev-secret"`
	GinMode           string        `env:"GIN_MODE" envDefault:"release"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment    bool          `env:"LOG_DEVELOPMENT"`
	TemplateDir       string        `env:"TEMPLATE_DIR"`
	PageTemplate      string        `env:"PAGE_TEMPLATE" envDefault:"cms/page.html"`
	SiteID            uint          `env:"SITE_ID" envDefault:"1"`
	CheckDomain       bool          `env:"CHECK_DOMAIN" envDefault:"true"`
	SitesFile         string        `env:"SITES_FILE"`
	RedisURL          string        `env:"REDIS_URL"`
	CacheTTL          time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	UploadDir         string        `env:"UPLOAD_DIR" envDefault:"web/static/uploads"`
	UploadURLPath     string        `env:"UPLOAD_URL_PATH" envDefault:"/static/uploads"`
	SuperRootUserName string        `env:"SUPER_ROOT_USER_NAME"`
	SuperRootPassword string        `env:"SUPER_ROOT_PASSWORD"`
	ArticlesPerPage   int           `env:"ARTICLES_PER_PAGE" envDefault:"10"`
}

// SiteConfig describes one site entry of the sites file.
type SiteConfig struct {
	ID              uint   `yaml:"id"`
	Domain          string `yaml:"domain"`
	Name            string `yaml:"name"`
	DefaultTemplate string `yaml:"default_template"`
}

type sitesFile struct {
	Sites []SiteConfig `yaml:"sites"`
}

// Load 从环境变量读取应用配置，并为缺失项提供默认值。
func Load() (AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *AppConfig) normalize() {
	c.ListenAddr = strings.TrimSpace(c.ListenAddr)
	c.DatabasePath = strings.TrimSpace(c.DatabasePath)
	c.TemplateDir = strings.TrimSpace(c.TemplateDir)
	c.PageTemplate = strings.TrimSpace(c.PageTemplate)
	c.UploadURLPath = "/" + strings.Trim(strings.TrimSpace(c.UploadURLPath), "/")
	c.SuperRootUserName = strings.TrimSpace(c.SuperRootUserName)
	c.SuperRootPassword = strings.TrimSpace(c.SuperRootPassword)
	if c.SiteID == 0 {
		c.SiteID = 1
	}
	if c.ArticlesPerPage <= 0 {
		c.ArticlesPerPage = 10
	}
}

// IsDev reports whether gin runs in debug mode.
func (c AppConfig) IsDev() bool {
	return c.GinMode == "debug"
}

// LoadSites reads the sites file at path. An empty path yields no sites.
func LoadSites(path string) ([]SiteConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	return ParseSites(raw)
}

// ParseSites decodes a YAML sites document.
func ParseSites(raw []byte) ([]SiteConfig, error) {
	var doc sitesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse sites file: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Sites))
	for i, site := range doc.Sites {
		domain := strings.ToLower(strings.TrimSpace(site.Domain))
		if domain == "" {
			return nil, fmt.Errorf("parse sites file: site %d has no domain", i)
		}
		if _, dup := seen[domain]; dup {
			return nil, fmt.Errorf("parse sites file: duplicate domain %q", domain)
		}
		seen[domain] = struct{}{}
		doc.Sites[i].Domain = domain
		doc.Sites[i].DefaultTemplate = strings.TrimSpace(site.DefaultTemplate)
	}
	return doc.Sites, nil
}
