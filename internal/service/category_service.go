package service

import (
	"errors"
	"strings"

	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/tree"
	"gorm.io/gorm"
)

var (
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryTitleRequired = errors.New("category title is required")
	ErrCategorySlugConflict  = errors.New("category slug already exists")
	ErrCategoryCycle         = errors.New("category parent would create a cycle")
)

// CategoryInput carries the editable fields of a category.
type CategoryInput struct {
	Title    string
	Slug     string
	ParentID *uint
	Position *int
	Active   bool
}

// CategoryWithCount is a category annotated with its number of active articles.
type CategoryWithCount struct {
	ID           uint
	Title        string
	Slug         string
	ParentID     *uint
	Position     int
	ArticleCount int64
}

// CategoryService manages article categories.
type CategoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a CategoryService instance.
func NewCategoryService(gdb *gorm.DB) *CategoryService {
	return &CategoryService{db: gdb}
}

// List returns categories ordered by parent then position.
func (s *CategoryService) List(activeOnly bool) ([]db.Category, error) {
	var categories []db.Category
	query := s.db.Model(&db.Category{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Order("parent_id asc").Order("position asc").Order("id asc").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// Get fetches a category by id.
func (s *CategoryService) Get(id uint) (*db.Category, error) {
	return s.load(s.db, id)
}

// GetBySlug fetches an active category by slug.
func (s *CategoryService) GetBySlug(slug string) (*db.Category, error) {
	var category db.Category
	if err := s.db.Where("slug = ? AND active = ?", slug, true).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

// WithArticles returns active categories that hold at least one active article.
func (s *CategoryService) WithArticles() ([]CategoryWithCount, error) {
	var rows []CategoryWithCount
	if err := s.db.Model(&db.Category{}).
		Select("categories.id, categories.title, categories.slug, categories.parent_id, categories.position, COUNT(DISTINCT articles.id) AS article_count").
		Joins("JOIN article_categories ON article_categories.category_id = categories.id").
		Joins("JOIN articles ON articles.id = article_categories.article_id").
		Where("categories.active = ?", true).
		Where("articles.active = ? AND articles.deleted_at IS NULL", true).
		Group("categories.id, categories.title, categories.slug, categories.parent_id, categories.position").
		Order("categories.position asc").
		Order("categories.id asc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Create validates and inserts a category.
func (s *CategoryService) Create(input CategoryInput) (*db.Category, error) {
	var category db.Category
	if err := applyCategoryInput(&category, input); err != nil {
		return nil, err
	}
	scope := categoryScope(category.ParentID)
	err := withScopes(s.db, []positionScope{scope}, func(tx *gorm.DB) error {
		if err := s.validate(tx, &category); err != nil {
			return err
		}
		n, err := scopeCount(tx, scope, 0)
		if err != nil {
			return err
		}
		category.Position = n
		if err := tx.Omit("Articles").Create(&category).Error; err != nil {
			return err
		}
		if input.Position != nil {
			category.Position, err = insertAt(tx, scope, category.ID, *input.Position)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// Update validates and saves a category.
func (s *CategoryService) Update(id uint, input CategoryInput) (*db.Category, error) {
	current, err := s.load(s.db, id)
	if err != nil {
		return nil, err
	}
	updated := *current
	if err := applyCategoryInput(&updated, input); err != nil {
		return nil, err
	}

	oldScope := categoryScope(current.ParentID)
	newScope := categoryScope(updated.ParentID)
	err = withScopes(s.db, []positionScope{oldScope, newScope}, func(tx *gorm.DB) error {
		fresh, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if err := s.validate(tx, &updated); err != nil {
			return err
		}
		updated.Position = fresh.Position
		if err := tx.Omit("Articles").Save(&updated).Error; err != nil {
			return err
		}
		if oldScope.key() != newScope.key() {
			if err := closeGap(tx, oldScope, fresh.Position); err != nil {
				return err
			}
			pos := -1
			if input.Position != nil {
				pos = *input.Position
			}
			updated.Position, err = insertAt(tx, newScope, id, pos)
			return err
		}
		if input.Position != nil && *input.Position != fresh.Position {
			updated.Position, err = moveTo(tx, newScope, id, fresh.Position, *input.Position)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a category, unlinks its articles and promotes its children
// to top level.
func (s *CategoryService) Delete(id uint) error {
	category, err := s.load(s.db, id)
	if err != nil {
		return err
	}
	scope := categoryScope(category.ParentID)
	rootScope := categoryScope(nil)
	return withScopes(s.db, []positionScope{scope, rootScope, categoryScope(&category.ID)}, func(tx *gorm.DB) error {
		fresh, err := s.load(tx, id)
		if err != nil {
			return err
		}
		var children []db.Category
		if err := tx.Where("parent_id = ?", id).Order("position asc").Order("id asc").Find(&children).Error; err != nil {
			return err
		}
		if err := tx.Model(fresh).Association("Articles").Clear(); err != nil {
			return err
		}
		if err := tx.Unscoped().Where("object_kind = ? AND object_id = ?", db.KindCategory, id).Delete(&db.BlockAssociation{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(fresh).Error; err != nil {
			return err
		}
		if err := closeGap(tx, scope, fresh.Position); err != nil {
			return err
		}
		for _, child := range children {
			if err := tx.Model(&db.Category{}).Where("id = ?", child.ID).UpdateColumn("parent_id", nil).Error; err != nil {
				return err
			}
			if _, err := insertAt(tx, rootScope, child.ID, -1); err != nil {
				return err
			}
		}
		return nil
	})
}

// Move places a category at position among its siblings.
func (s *CategoryService) Move(id uint, position int) error {
	category, err := s.load(s.db, id)
	if err != nil {
		return err
	}
	scope := categoryScope(category.ParentID)
	return withScopes(s.db, []positionScope{scope}, func(tx *gorm.DB) error {
		fresh, err := s.load(tx, id)
		if err != nil {
			return err
		}
		_, err = moveTo(tx, scope, id, fresh.Position, position)
		return err
	})
}

func (s *CategoryService) validate(tx *gorm.DB, category *db.Category) error {
	var count int64
	query := tx.Model(&db.Category{}).Where("slug = ?", category.Slug)
	if category.ID != 0 {
		query = query.Where("id <> ?", category.ID)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrCategorySlugConflict
	}

	if category.ParentID == nil {
		return nil
	}
	if category.ID != 0 && *category.ParentID == category.ID {
		return ErrCategoryCycle
	}
	if _, err := s.load(tx, *category.ParentID); err != nil {
		return err
	}
	if category.ID == 0 {
		return nil
	}

	var all []db.Category
	if err := tx.Select("id, parent_id, slug, position").Find(&all).Error; err != nil {
		return err
	}
	nodes := make([]tree.Node, 0, len(all))
	for _, c := range all {
		var parent uint
		if c.ParentID != nil {
			parent = *c.ParentID
		}
		nodes = append(nodes, tree.Node{ID: c.ID, ParentID: parent, Slug: c.Slug, Position: c.Position})
	}
	if tree.New(nodes).WouldCycle(category.ID, *category.ParentID) {
		return ErrCategoryCycle
	}
	return nil
}

func (s *CategoryService) load(gdb *gorm.DB, id uint) (*db.Category, error) {
	var category db.Category
	if err := gdb.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

func applyCategoryInput(category *db.Category, input CategoryInput) error {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return ErrCategoryTitleRequired
	}
	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return ErrCategoryTitleRequired
	}
	category.Title = title
	category.Slug = slug
	category.ParentID = input.ParentID
	category.Active = input.Active
	return nil
}

func categoryScope(parentID *uint) positionScope {
	return positionScope{
		model: &db.Category{},
		table: "categories",
		conds: map[string]interface{}{"parent_id": parentID},
	}
}
