package main

import (
	"fmt"
	"time"

	"github.com/simplecms/internal/config"
	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/service"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Fixture is a YAML document describing demo content.
type Fixture struct {
	Sites       []config.SiteConfig `yaml:"sites"`
	PageGroups  []string            `yaml:"page_groups"`
	BlockGroups []string            `yaml:"block_groups"`
	Blocks      []BlockFixture      `yaml:"blocks"`
	Pages       []PageFixture       `yaml:"pages"`
	Categories  []CategoryFixture   `yaml:"categories"`
	Articles    []ArticleFixture    `yaml:"articles"`
}

type BlockFixture struct {
	Key              string `yaml:"key"`
	Title            string `yaml:"title"`
	Text             string `yaml:"text"`
	Format           string `yaml:"format"`
	RenderAsTemplate bool   `yaml:"render_as_template"`
	URL              string `yaml:"url"`
	Target           string `yaml:"target"`
}

// BlockRef attaches a block by key, optionally inside a block group.
type BlockRef struct {
	Key   string `yaml:"key"`
	Group string `yaml:"group"`
}

type PageFixture struct {
	Title       string        `yaml:"title"`
	Slug        string        `yaml:"slug"`
	Site        uint          `yaml:"site"`
	Group       string        `yaml:"group"`
	Homepage    bool          `yaml:"homepage"`
	PageTitle   string        `yaml:"page_title"`
	Text        string        `yaml:"text"`
	Format      string        `yaml:"format"`
	Template    string        `yaml:"template"`
	View        string        `yaml:"view"`
	RedirectURL string        `yaml:"redirect_url"`
	NoInherit   bool          `yaml:"no_inherit"`
	Hidden      bool          `yaml:"hidden"`
	Blocks      []BlockRef    `yaml:"blocks"`
	SEO         *SeoFixture   `yaml:"seo"`
	Children    []PageFixture `yaml:"children"`
}

type SeoFixture struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Keywords    string `yaml:"keywords"`
}

type CategoryFixture struct {
	Title    string            `yaml:"title"`
	Slug     string            `yaml:"slug"`
	Hidden   bool              `yaml:"hidden"`
	Blocks   []BlockRef        `yaml:"blocks"`
	Children []CategoryFixture `yaml:"children"`
}

type ArticleFixture struct {
	Title      string      `yaml:"title"`
	Date       string      `yaml:"date"`
	Text       string      `yaml:"text"`
	Format     string      `yaml:"format"`
	Excerpt    string      `yaml:"excerpt"`
	Tags       []string    `yaml:"tags"`
	Categories []string    `yaml:"categories"`
	Draft      bool        `yaml:"draft"`
	SEO        *SeoFixture `yaml:"seo"`
}

// ParseFixture decodes a fixture document.
func ParseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// Summary counts what a seeding run created.
type Summary struct {
	Pages      int
	Blocks     int
	Categories int
	Articles   int
}

type seeder struct {
	sites      *service.SiteService
	pages      *service.PageService
	groups     *service.GroupService
	blocks     *service.BlockService
	categories *service.CategoryService
	articles   *service.ArticleService
	seo        *service.SeoService

	defaultSite    uint
	pageGroups     map[string]uint
	blockGroups    map[string]uint
	blockIDs       map[string]uint
	categoryBySlug map[string]uint
	summary        Summary
}

// Apply loads f into gdb through the services, so every entity passes the
// same validation as an admin edit.
func Apply(gdb *gorm.DB, f *Fixture, defaultSite uint) (Summary, error) {
	tags := service.NewTagService(gdb)
	s := &seeder{
		sites:          service.NewSiteService(gdb, defaultSite),
		pages:          service.NewPageService(gdb, ""),
		groups:         service.NewGroupService(gdb),
		blocks:         service.NewBlockService(gdb, nil),
		categories:     service.NewCategoryService(gdb),
		articles:       service.NewArticleService(gdb, tags),
		seo:            service.NewSeoService(gdb),
		defaultSite:    defaultSite,
		pageGroups:     map[string]uint{},
		blockGroups:    map[string]uint{},
		blockIDs:       map[string]uint{},
		categoryBySlug: map[string]uint{},
	}

	if err := s.sites.Sync(f.Sites); err != nil {
		return s.summary, fmt.Errorf("sync sites: %w", err)
	}
	if _, err := s.sites.EnsureDefault("localhost", "simplecms"); err != nil {
		return s.summary, fmt.Errorf("ensure default site: %w", err)
	}

	for _, title := range f.PageGroups {
		group, err := s.groups.EnsurePageGroup(title)
		if err != nil {
			return s.summary, fmt.Errorf("page group %q: %w", title, err)
		}
		s.pageGroups[title] = group.ID
	}
	for _, title := range f.BlockGroups {
		group, err := s.groups.EnsureBlockGroup(title)
		if err != nil {
			return s.summary, fmt.Errorf("block group %q: %w", title, err)
		}
		s.blockGroups[title] = group.ID
	}

	for _, b := range f.Blocks {
		block, err := s.blocks.Create(service.BlockInput{
			Key: b.Key, Title: b.Title, Text: b.Text, Format: b.Format,
			RenderAsTemplate: b.RenderAsTemplate, URL: b.URL, Target: b.Target, Active: true,
		})
		if err != nil {
			return s.summary, fmt.Errorf("block %q: %w", b.Key, err)
		}
		s.blockIDs[b.Key] = block.ID
		s.summary.Blocks++
	}

	for _, p := range f.Pages {
		if err := s.page(p, nil); err != nil {
			return s.summary, err
		}
	}
	for _, c := range f.Categories {
		if err := s.category(c, nil); err != nil {
			return s.summary, err
		}
	}
	for _, a := range f.Articles {
		if err := s.article(a); err != nil {
			return s.summary, err
		}
	}
	return s.summary, nil
}

func (s *seeder) page(p PageFixture, parent *db.Page) error {
	siteID := p.Site
	if parent != nil {
		siteID = parent.SiteID
	}
	if siteID == 0 {
		siteID = s.defaultSite
	}
	input := service.PageInput{
		Title:         p.Title,
		Slug:          p.Slug,
		SiteID:        siteID,
		Homepage:      p.Homepage,
		PageTitle:     p.PageTitle,
		Text:          p.Text,
		Format:        p.Format,
		Template:      p.Template,
		View:          p.View,
		RedirectURL:   p.RedirectURL,
		InheritBlocks: !p.NoInherit,
		Active:        !p.Hidden,
	}
	if parent != nil {
		input.ParentID = &parent.ID
	}
	if p.Group != "" {
		id, ok := s.pageGroups[p.Group]
		if !ok {
			return fmt.Errorf("page %q: unknown page group %q", p.Title, p.Group)
		}
		input.GroupID = &id
	}

	page, err := s.pages.Create(input)
	if err != nil {
		return fmt.Errorf("page %q: %w", p.Title, err)
	}
	s.summary.Pages++

	ref := service.ObjectRef{Kind: db.KindPage, ID: page.ID}
	for _, b := range p.Blocks {
		attach, err := s.attachInput(b)
		if err != nil {
			return fmt.Errorf("page %q: %w", p.Title, err)
		}
		if _, err := s.blocks.AttachToPage(page.ID, attach); err != nil {
			return fmt.Errorf("page %q: attach %q: %w", p.Title, b.Key, err)
		}
	}
	if err := s.saveSeo(ref, p.SEO); err != nil {
		return fmt.Errorf("page %q: %w", p.Title, err)
	}

	for _, child := range p.Children {
		if err := s.page(child, page); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) category(c CategoryFixture, parent *db.Category) error {
	input := service.CategoryInput{Title: c.Title, Slug: c.Slug, Active: !c.Hidden}
	if parent != nil {
		input.ParentID = &parent.ID
	}
	category, err := s.categories.Create(input)
	if err != nil {
		return fmt.Errorf("category %q: %w", c.Title, err)
	}
	s.categoryBySlug[category.Slug] = category.ID
	s.summary.Categories++

	ref := service.ObjectRef{Kind: db.KindCategory, ID: category.ID}
	for _, b := range c.Blocks {
		attach, err := s.attachInput(b)
		if err != nil {
			return fmt.Errorf("category %q: %w", c.Title, err)
		}
		if _, err := s.blocks.Attach(ref, attach); err != nil {
			return fmt.Errorf("category %q: attach %q: %w", c.Title, b.Key, err)
		}
	}

	for _, child := range c.Children {
		if err := s.category(child, category); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) article(a ArticleFixture) error {
	date, err := time.Parse("2006-01-02", a.Date)
	if err != nil {
		return fmt.Errorf("article %q: invalid date %q", a.Title, a.Date)
	}
	categoryIDs := make([]uint, 0, len(a.Categories))
	for _, slug := range a.Categories {
		id, ok := s.categoryBySlug[slug]
		if !ok {
			return fmt.Errorf("article %q: unknown category %q", a.Title, slug)
		}
		categoryIDs = append(categoryIDs, id)
	}

	article, err := s.articles.Create(service.ArticleInput{
		Title:        a.Title,
		PostDate:     date,
		Text:         a.Text,
		Format:       a.Format,
		Excerpt:      a.Excerpt,
		TagNames:     a.Tags,
		CategoryIDs:  categoryIDs,
		DisplayTitle: true,
		Active:       !a.Draft,
	})
	if err != nil {
		return fmt.Errorf("article %q: %w", a.Title, err)
	}
	s.summary.Articles++
	if err := s.saveSeo(service.ObjectRef{Kind: db.KindArticle, ID: article.ID}, a.SEO); err != nil {
		return fmt.Errorf("article %q: %w", a.Title, err)
	}
	return nil
}

func (s *seeder) attachInput(b BlockRef) (service.AttachInput, error) {
	blockID, ok := s.blockIDs[b.Key]
	if !ok {
		return service.AttachInput{}, fmt.Errorf("unknown block %q", b.Key)
	}
	input := service.AttachInput{BlockID: blockID, Active: true}
	if b.Group != "" {
		id, ok := s.blockGroups[b.Group]
		if !ok {
			return service.AttachInput{}, fmt.Errorf("unknown block group %q", b.Group)
		}
		input.GroupID = &id
	}
	return input, nil
}

func (s *seeder) saveSeo(ref service.ObjectRef, seo *SeoFixture) error {
	if seo == nil {
		return nil
	}
	_, err := s.seo.Save(ref, service.SeoInput{Title: seo.Title, Description: seo.Description, Keywords: seo.Keywords})
	return err
}
