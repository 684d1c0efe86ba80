package service

import (
	"errors"
	"net"
	"strings"

	"github.com/simplecms/internal/config"
	"github.com/simplecms/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSiteNotFound = errors.New("site not found")

// SiteService maps request hosts to sites.
type SiteService struct {
	db            *gorm.DB
	defaultSiteID uint
}

// NewSiteService creates a SiteService. defaultSiteID is used for hosts that
// match no configured domain.
func NewSiteService(gdb *gorm.DB, defaultSiteID uint) *SiteService {
	return &SiteService{db: gdb, defaultSiteID: defaultSiteID}
}

// DefaultID returns the fallback site identifier.
func (s *SiteService) DefaultID() uint {
	return s.defaultSiteID
}

// Get fetches a site by id.
func (s *SiteService) Get(id uint) (*db.Site, error) {
	var site db.Site
	if err := s.db.First(&site, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}
	return &site, nil
}

// List returns all sites ordered by id.
func (s *SiteService) List() ([]db.Site, error) {
	var sites []db.Site
	if err := s.db.Order("id asc").Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

// ForHost returns the site serving host, falling back to the default site.
func (s *SiteService) ForHost(host string) (*db.Site, error) {
	domain := NormalizeHost(host)
	if domain != "" {
		var site db.Site
		err := s.db.Where("domain = ?", domain).First(&site).Error
		if err == nil {
			return &site, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return s.Get(s.defaultSiteID)
}

// Sync upserts the configured sites, keyed by id.
func (s *SiteService) Sync(sites []config.SiteConfig) error {
	if len(sites) == 0 {
		return nil
	}
	rows := make([]db.Site, 0, len(sites))
	for _, sc := range sites {
		rows = append(rows, db.Site{
			ID:              sc.ID,
			Domain:          sc.Domain,
			Name:            sc.Name,
			DefaultTemplate: sc.DefaultTemplate,
		})
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"domain", "name", "default_template", "updated_at"}),
	}).Create(&rows).Error
}

// EnsureDefault creates the fallback site when it does not exist yet.
func (s *SiteService) EnsureDefault(domain, name string) (*db.Site, error) {
	site, err := s.Get(s.defaultSiteID)
	if err == nil {
		return site, nil
	}
	if !errors.Is(err, ErrSiteNotFound) {
		return nil, err
	}
	created := db.Site{ID: s.defaultSiteID, Domain: NormalizeHost(domain), Name: name}
	if err := s.db.Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

// NormalizeHost lowercases host and strips any port.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}
