package service

import (
	"errors"
	"strconv"
	"strings"

	"github.com/simplecms/internal/db"
	"gorm.io/gorm"
)

var (
	ErrTagExists   = errors.New("tag already exists")
	ErrTagInUse    = errors.New("tag is associated with articles")
	ErrTagNotFound = errors.New("tag not found")
	ErrTagOrder    = errors.New("invalid tag order")
)

// TagService wraps tag related operations.
type TagService struct {
	db *gorm.DB
}

// TagUsage 描述标签的使用次数
type TagUsage struct {
	ID    uint
	Name  string
	Slug  string
	Count int64
}

// NewTagService creates a TagService instance.
func NewTagService(gdb *gorm.DB) *TagService {
	return &TagService{db: gdb}
}

// List returns tags ordered by configured sort order.
func (s *TagService) List() ([]db.Tag, error) {
	var tags []db.Tag
	if err := s.db.
		Model(&db.Tag{}).
		Select("tags.*, COUNT(article_tags.article_id) AS article_count").
		Joins("LEFT JOIN article_tags ON article_tags.tag_id = tags.id").
		Group("tags.id").
		Order("tags.sort_order asc").
		Order("tags.name asc").
		Order("tags.id asc").
		Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// GetBySlug fetches a tag by its slug.
func (s *TagService) GetBySlug(slug string) (*db.Tag, error) {
	var tag db.Tag
	if err := s.db.Where("slug = ?", slug).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return &tag, nil
}

// ActiveUsage 返回已上线文章中标签的使用统计
func (s *TagService) ActiveUsage() ([]TagUsage, error) {
	var rows []TagUsage
	query := s.db.Table("tags").
		Select("tags.id, tags.name, tags.slug, COUNT(DISTINCT articles.id) AS count").
		Joins("JOIN article_tags ON article_tags.tag_id = tags.id").
		Joins("JOIN articles ON articles.id = article_tags.article_id").
		Where("articles.active = ? AND articles.deleted_at IS NULL", true).
		Where("tags.deleted_at IS NULL").
		Group("tags.id, tags.name, tags.slug").
		Order("tags.sort_order asc").
		Order("tags.name asc").
		Order("tags.id asc")

	if err := query.Scan(&rows).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []TagUsage{}, nil
		}
		return nil, err
	}
	if rows == nil {
		rows = []TagUsage{}
	}
	return rows, nil
}

// Create inserts a new tag with unique name.
func (s *TagService) Create(name string) (*db.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("tag name is required")
	}

	var existing db.Tag
	if err := s.db.Where("name = ?", name).First(&existing).Error; err == nil {
		return nil, ErrTagExists
	}

	tag, err := s.create(s.db, name)
	if err != nil {
		return nil, err
	}
	tag.ArticleCount = 0
	return tag, nil
}

// FindOrCreate returns the tags named in names, creating the missing ones.
// Blank and repeated names are skipped.
func (s *TagService) FindOrCreate(tx *gorm.DB, names []string) ([]db.Tag, error) {
	tags := make([]db.Tag, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		var tag db.Tag
		err := tx.Where("name = ?", name).First(&tag).Error
		if err == nil {
			tags = append(tags, tag)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		created, err := s.create(tx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *created)
	}
	return tags, nil
}

// Update changes the tag name while keeping uniqueness.
func (s *TagService) Update(id uint, name string) (*db.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("tag name is required")
	}

	var tag db.Tag
	if err := s.db.First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}

	var existing db.Tag
	if err := s.db.Where("name = ? AND id <> ?", name, id).First(&existing).Error; err == nil {
		return nil, ErrTagExists
	}

	slug, err := s.uniqueSlug(s.db, name, id)
	if err != nil {
		return nil, err
	}
	tag.Name = name
	tag.Slug = slug
	if err := s.db.Save(&tag).Error; err != nil {
		return nil, err
	}

	count, err := s.articleUsageCount(tag.ID)
	if err != nil {
		return nil, err
	}
	tag.ArticleCount = count

	return &tag, nil
}

// Delete removes a tag if it is not associated with articles.
func (s *TagService) Delete(id uint) error {
	var tag db.Tag
	if err := s.db.First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTagNotFound
		}
		return err
	}

	count, err := s.articleUsageCount(id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrTagInUse
	}

	return s.db.Unscoped().Delete(&tag).Error
}

// Reorder updates tag sort order based on the provided ids sequence.
func (s *TagService) Reorder(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			return ErrTagOrder
		}
		if _, ok := seen[id]; ok {
			return ErrTagOrder
		}
		seen[id] = struct{}{}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for idx, id := range ids {
			result := tx.Model(&db.Tag{}).Where("id = ?", id).Update("sort_order", idx)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrTagNotFound
			}
		}
		return nil
	})
}

func (s *TagService) create(tx *gorm.DB, name string) (*db.Tag, error) {
	sortOrder, err := s.nextSortOrder(tx)
	if err != nil {
		return nil, err
	}
	slug, err := s.uniqueSlug(tx, name, 0)
	if err != nil {
		return nil, err
	}
	tag := db.Tag{Name: name, Slug: slug, SortOrder: sortOrder}
	if err := tx.Create(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// uniqueSlug derives a slug from name, suffixing -2, -3... on collisions.
func (s *TagService) uniqueSlug(tx *gorm.DB, name string, excludeID uint) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "tag"
	}
	candidate := base
	for i := 2; ; i++ {
		var count int64
		query := tx.Model(&db.Tag{}).Unscoped().Where("slug = ?", candidate)
		if excludeID != 0 {
			query = query.Where("id <> ?", excludeID)
		}
		if err := query.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
}

func (s *TagService) articleUsageCount(id uint) (int64, error) {
	var count int64
	if err := s.db.Model(&db.Article{}).
		Joins("JOIN article_tags ON articles.id = article_tags.article_id").
		Where("article_tags.tag_id = ?", id).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *TagService) nextSortOrder(tx *gorm.DB) (int, error) {
	var maxSort int
	if err := tx.Model(&db.Tag{}).Select("COALESCE(MAX(sort_order), -1)").Scan(&maxSort).Error; err != nil {
		return 0, err
	}
	return maxSort + 1, nil
}
