package service

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/simplecms/internal/db"
	"gorm.io/gorm"
)

var (
	ErrArticleNotFound      = errors.New("article not found")
	ErrArticleTitleRequired = errors.New("article title is required")
	ErrArticleSlugConflict  = errors.New("an article with this slug is already posted on that day")
	ErrAuthorNotFound       = errors.New("article author not found")
)

// ArticleService manages blog articles.
type ArticleService struct {
	db   *gorm.DB
	tags *TagService
}

// ArticleFilter describes filters for listing articles.
type ArticleFilter struct {
	Search   string
	Tag      string
	Category string
	Year     int
	// IncludeInactive lists drafts too; public listings leave it unset.
	IncludeInactive bool
	Page            int
	PerPage         int
}

// ArticleListResult aggregates paginated list data.
type ArticleListResult struct {
	Articles   []db.Article
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// ArticleSlice is a bounded slice of articles with the unbounded total.
type ArticleSlice struct {
	Count   int64
	Objects []db.Article
}

// ArticleDetail is an article with its chronological neighbours.
type ArticleDetail struct {
	Article  *db.Article
	Previous *db.Article
	Next     *db.Article
}

// ArticleInput carries the editable fields of an article.
type ArticleInput struct {
	Title            string
	Slug             string
	PostDate         time.Time
	Text             string
	Format           string
	RenderAsTemplate bool
	Excerpt          string
	KeyImage         string
	DisplayImage     bool
	TagNames         []string
	CategoryIDs      []uint
	AllowComments    bool
	AuthorID         *uint
	URL              string
	Target           string
	DisplayTitle     bool
	Active           bool
}

// NewArticleService creates an ArticleService instance.
func NewArticleService(gdb *gorm.DB, tags *TagService) *ArticleService {
	return &ArticleService{db: gdb, tags: tags}
}

// Get fetches an article with its tags and categories.
func (s *ArticleService) Get(id uint) (*db.Article, error) {
	var article db.Article
	if err := s.db.Preload("Tags").Preload("Categories").Preload("Author").First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}
	return &article, nil
}

// List returns articles newest first.
func (s *ArticleService) List(filter ArticleFilter) (*ArticleListResult, error) {
	result := &ArticleListResult{Page: filter.Page, PerPage: filter.PerPage}
	if result.Page <= 0 {
		result.Page = 1
	}
	if result.PerPage <= 0 {
		result.PerPage = 10
	}

	countQuery := s.applyFilters(s.db.Model(&db.Article{}), filter)
	if err := countQuery.Count(&result.Total).Error; err != nil {
		return nil, err
	}

	offset := (result.Page - 1) * result.PerPage

	var articles []db.Article
	dataQuery := s.db.Model(&db.Article{}).
		Preload("Tags").
		Preload("Categories").
		Preload("Author")
	dataQuery = s.applyFilters(dataQuery, filter)
	if err := dataQuery.
		Order("articles.post_date desc").
		Order("articles.id desc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&articles).Error; err != nil {
		return nil, err
	}

	if result.Total == 0 {
		result.TotalPages = 1
	} else {
		result.TotalPages = int((result.Total + int64(result.PerPage) - 1) / int64(result.PerPage))
	}

	result.Articles = articles
	return result, nil
}

// ForTag returns up to limit active articles tagged slug; limit <= 0 means all.
func (s *ArticleService) ForTag(slug string, limit int) (*ArticleSlice, error) {
	return s.slice(ArticleFilter{Tag: slug}, limit)
}

// ForCategory returns up to limit active articles in the category slug.
func (s *ArticleService) ForCategory(slug string, limit int) (*ArticleSlice, error) {
	return s.slice(ArticleFilter{Category: slug}, limit)
}

// Years returns the distinct years of active articles, newest first.
func (s *ArticleService) Years() ([]int, error) {
	var dates []time.Time
	if err := s.db.Model(&db.Article{}).Where("active = ?", true).Pluck("post_date", &dates).Error; err != nil {
		return nil, err
	}
	seen := make(map[int]struct{})
	years := make([]int, 0)
	for _, d := range dates {
		year := d.UTC().Year()
		if _, ok := seen[year]; ok {
			continue
		}
		seen[year] = struct{}{}
		years = append(years, year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

// Detail returns the active article posted on the given day under slug,
// together with the previous (older) and next (newer) active articles.
func (s *ArticleService) Detail(year, month, day int, slug string) (*ArticleDetail, error) {
	start := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if start.Year() != year || int(start.Month()) != month || start.Day() != day {
		return nil, ErrArticleNotFound
	}
	end := start.AddDate(0, 0, 1)

	var article db.Article
	if err := s.db.Preload("Tags").Preload("Categories").Preload("Author").
		Where("slug = ? AND active = ?", slug, true).
		Where("post_date >= ? AND post_date < ?", start, end).
		Order("id asc").
		First(&article).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}

	detail := &ArticleDetail{Article: &article}

	var prev db.Article
	err := s.db.Where("active = ?", true).
		Where("post_date < ? OR (post_date = ? AND id < ?)", article.PostDate, article.PostDate, article.ID).
		Order("post_date desc").Order("id desc").
		First(&prev).Error
	switch {
	case err == nil:
		detail.Previous = &prev
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	var next db.Article
	err = s.db.Where("active = ?", true).
		Where("post_date > ? OR (post_date = ? AND id > ?)", article.PostDate, article.PostDate, article.ID).
		Order("post_date asc").Order("id asc").
		First(&next).Error
	switch {
	case err == nil:
		detail.Next = &next
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	return detail, nil
}

// Create validates and inserts an article with its tags and categories.
func (s *ArticleService) Create(input ArticleInput) (*db.Article, error) {
	var article db.Article
	if err := applyArticleInput(&article, input); err != nil {
		return nil, err
	}
	return s.save(&article, input)
}

// Update validates and saves an article, replacing its tags and categories.
func (s *ArticleService) Update(id uint, input ArticleInput) (*db.Article, error) {
	var article db.Article
	if err := s.db.First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}
	if err := applyArticleInput(&article, input); err != nil {
		return nil, err
	}
	return s.save(&article, input)
}

// Delete removes an article with its links, seo record and block attachments.
func (s *ArticleService) Delete(id uint) error {
	var article db.Article
	if err := s.db.First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrArticleNotFound
		}
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&article).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&article).Association("Categories").Clear(); err != nil {
			return err
		}
		if err := tx.Unscoped().Where("object_kind = ? AND object_id = ?", db.KindArticle, id).Delete(&db.Seo{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("object_kind = ? AND object_id = ?", db.KindArticle, id).Delete(&db.BlockAssociation{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&article).Error
	})
}

func (s *ArticleService) save(article *db.Article, input ArticleInput) (*db.Article, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if article.AuthorID != nil {
			var authors int64
			if err := tx.Model(&db.User{}).Where("id = ?", *article.AuthorID).Count(&authors).Error; err != nil {
				return err
			}
			if authors == 0 {
				return ErrAuthorNotFound
			}
		}

		start := time.Date(article.PostDate.Year(), article.PostDate.Month(), article.PostDate.Day(), 0, 0, 0, 0, time.UTC)
		query := tx.Model(&db.Article{}).
			Where("slug = ?", article.Slug).
			Where("post_date >= ? AND post_date < ?", start, start.AddDate(0, 0, 1))
		if article.ID != 0 {
			query = query.Where("id <> ?", article.ID)
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrArticleSlugConflict
		}

		if err := tx.Omit("Tags", "Categories", "Author").Save(article).Error; err != nil {
			return err
		}

		tags, err := s.tags.FindOrCreate(tx, input.TagNames)
		if err != nil {
			return err
		}
		if err := tx.Model(article).Association("Tags").Replace(tags); err != nil {
			return err
		}

		var categories []db.Category
		if len(input.CategoryIDs) > 0 {
			if err := tx.Where("id IN ?", input.CategoryIDs).Find(&categories).Error; err != nil {
				return err
			}
			if len(categories) != len(uniqueIDs(input.CategoryIDs)) {
				return ErrCategoryNotFound
			}
		}
		return tx.Model(article).Association("Categories").Replace(categories)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(article.ID)
}

func (s *ArticleService) slice(filter ArticleFilter, limit int) (*ArticleSlice, error) {
	out := &ArticleSlice{Objects: []db.Article{}}
	if err := s.applyFilters(s.db.Model(&db.Article{}), filter).Count(&out.Count).Error; err != nil {
		return nil, err
	}
	query := s.applyFilters(s.db.Model(&db.Article{}), filter).
		Order("articles.post_date desc").
		Order("articles.id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out.Objects).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ArticleService) applyFilters(query *gorm.DB, filter ArticleFilter) *gorm.DB {
	if !filter.IncludeInactive {
		query = query.Where("articles.active = ?", true)
	}

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		tagged := s.db.Table("article_tags").
			Select("article_tags.article_id").
			Joins("JOIN tags ON tags.id = article_tags.tag_id").
			Where("LOWER(tags.name) = ?", search)
		query = query.Where(
			"(LOWER(articles.title) LIKE ? OR LOWER(articles.text) LIKE ? OR LOWER(articles.excerpt) LIKE ? OR articles.id IN (?))",
			like, like, like, tagged,
		)
	}

	if filter.Tag != "" {
		tagged := s.db.Table("article_tags").
			Select("article_tags.article_id").
			Joins("JOIN tags ON tags.id = article_tags.tag_id").
			Where("tags.slug = ?", filter.Tag)
		query = query.Where("articles.id IN (?)", tagged)
	}

	if filter.Category != "" {
		filed := s.db.Table("article_categories").
			Select("article_categories.article_id").
			Joins("JOIN categories ON categories.id = article_categories.category_id").
			Where("categories.slug = ? AND categories.active = ?", filter.Category, true)
		query = query.Where("articles.id IN (?)", filed)
	}

	if filter.Year > 0 {
		start := time.Date(filter.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		query = query.Where("articles.post_date >= ? AND articles.post_date < ?", start, start.AddDate(1, 0, 0))
	}

	return query
}

func applyArticleInput(article *db.Article, input ArticleInput) error {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return ErrArticleTitleRequired
	}
	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return ErrArticleTitleRequired
	}
	target := strings.TrimSpace(input.Target)
	if !db.IsValidTarget(target) {
		return ErrInvalidTarget
	}
	format := strings.TrimSpace(input.Format)
	if !db.IsValidFormat(format) {
		return ErrInvalidFormat
	}

	postDate := input.PostDate
	if postDate.IsZero() {
		postDate = time.Now()
	}

	article.Title = title
	article.Slug = slug
	// Dates are stored in UTC so day and year ranges compare consistently.
	article.PostDate = postDate.UTC()
	article.Text = input.Text
	article.Format = format
	article.RenderAsTemplate = input.RenderAsTemplate
	article.Excerpt = strings.TrimSpace(input.Excerpt)
	article.KeyImage = strings.TrimSpace(input.KeyImage)
	article.DisplayImage = input.DisplayImage
	article.AllowComments = input.AllowComments
	article.AuthorID = input.AuthorID
	article.URL = strings.TrimSpace(input.URL)
	article.Target = target
	article.DisplayTitle = input.DisplayTitle
	article.Active = input.Active
	return nil
}

func uniqueIDs(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
