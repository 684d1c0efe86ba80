package service

import (
	"errors"
	"strings"

	"github.com/simplecms/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSeoNotFound        = errors.New("seo record not found")
	ErrSeoKindUnsupported = errors.New("seo records are only kept for pages and articles")
)

// SeoInput carries the editable meta fields.
type SeoInput struct {
	Title       string
	Description string
	Keywords    string
}

// SeoService stores one meta record per page or article.
type SeoService struct {
	db *gorm.DB
}

// NewSeoService creates a SeoService instance.
func NewSeoService(gdb *gorm.DB) *SeoService {
	return &SeoService{db: gdb}
}

// For returns the meta record of ref.
func (s *SeoService) For(ref ObjectRef) (*db.Seo, error) {
	var seo db.Seo
	if err := s.db.Where("object_kind = ? AND object_id = ?", ref.Kind, ref.ID).First(&seo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSeoNotFound
		}
		return nil, err
	}
	return &seo, nil
}

// Save creates or replaces the meta record of ref.
func (s *SeoService) Save(ref ObjectRef, input SeoInput) (*db.Seo, error) {
	if ref.Kind != db.KindPage && ref.Kind != db.KindArticle {
		return nil, ErrSeoKindUnsupported
	}
	if _, _, err := LookupObject(s.db, ref); err != nil {
		return nil, err
	}

	seo := db.Seo{
		ObjectKind:  ref.Kind,
		ObjectID:    ref.ID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Keywords:    strings.TrimSpace(input.Keywords),
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "object_kind"}, {Name: "object_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "keywords", "updated_at"}),
	}).Create(&seo).Error; err != nil {
		return nil, err
	}
	return s.For(ref)
}

// Delete removes the meta record of ref.
func (s *SeoService) Delete(ref ObjectRef) error {
	result := s.db.Unscoped().Where("object_kind = ? AND object_id = ?", ref.Kind, ref.ID).Delete(&db.Seo{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSeoNotFound
	}
	return nil
}
