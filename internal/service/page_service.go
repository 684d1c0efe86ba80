package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/tree"
	"gorm.io/gorm"
)

var (
	ErrPageNotFound       = errors.New("page not found")
	ErrPageTitleRequired  = errors.New("page title is required")
	ErrPageSlugRequired   = errors.New("page slug is required")
	ErrPageSlugConflict   = errors.New("a sibling page already uses this slug")
	ErrPageSelfParent     = errors.New("a page cannot be its own parent")
	ErrPageCycle          = errors.New("page parent would create a cycle")
	ErrPageParentNotFound = errors.New("parent page not found")
	ErrPageSiteChange     = errors.New("a page with children cannot move to another site")
	ErrInvalidTarget      = errors.New("invalid link target")
	ErrInvalidFormat      = errors.New("invalid text format")
)

// PageInput carries the editable fields of a page.
type PageInput struct {
	Title    string
	Slug     string
	GroupID  *uint
	ParentID *uint
	// Position inside the sibling list; nil appends on create and keeps the
	// current slot on update.
	Position *int
	// SiteID zero keeps the current site on update.
	SiteID            uint
	Homepage          bool
	URL               string
	Target            string
	PageTitle         string
	Text              string
	Format            string
	RenderAsTemplate  bool
	Template          string
	View              string
	RedirectURL       string
	RedirectPermanent bool
	InheritBlocks     bool
	Active            bool
}

// Resolution is the outcome of resolving a request path.
type Resolution struct {
	Page *db.Page
	// Exact is false for a partial match; Remainder then holds the unmatched tail.
	Exact     bool
	Remainder string
	// Ancestors are ordered root first, excluding Page.
	Ancestors []db.Page
	// Template is the effective template of Page.
	Template string
}

// Found reports whether any page matched.
func (r *Resolution) Found() bool {
	return r != nil && r.Page != nil
}

// PageService manages the page hierarchy of every site.
type PageService struct {
	db              *gorm.DB
	defaultTemplate string
}

// NewPageService returns a new PageService. defaultTemplate is used for pages
// that resolve no template and whose site has no default.
func NewPageService(gdb *gorm.DB, defaultTemplate string) *PageService {
	return &PageService{db: gdb, defaultTemplate: defaultTemplate}
}

// Get fetches a page with its slug chain and depth filled in.
func (s *PageService) Get(id uint) (*db.Page, error) {
	page, err := s.load(s.db, id)
	if err != nil {
		return nil, err
	}
	t, err := loadSiteTree(s.db, page.SiteID)
	if err != nil {
		return nil, err
	}
	if err := t.decorate(page); err != nil {
		return nil, err
	}
	return page, nil
}

// Tree lists every page of a site depth-first in sibling order, for admin listings.
func (s *PageService) Tree(siteID uint) ([]db.Page, error) {
	t, err := loadSiteTree(s.db, siteID)
	if err != nil {
		return nil, err
	}
	pages := make([]db.Page, 0, t.arena.Len())
	var walkErr error
	t.arena.Walk(func(id uint, depth int) {
		page := *t.pages[id]
		if err := t.decorate(&page); err != nil {
			walkErr = err
			return
		}
		page.Depth = depth
		pages = append(pages, page)
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return pages, nil
}

// Create validates and inserts a page.
func (s *PageService) Create(input PageInput) (*db.Page, error) {
	var page db.Page
	if err := applyPageInput(&page, input); err != nil {
		return nil, err
	}

	scope := pageScope(page.SiteID, page.ParentID)
	err := withScopes(s.db, []positionScope{scope}, func(tx *gorm.DB) error {
		if err := validatePage(tx, &page); err != nil {
			return err
		}
		n, err := scopeCount(tx, scope, 0)
		if err != nil {
			return err
		}
		page.Position = n
		if err := tx.Create(&page).Error; err != nil {
			return err
		}
		if input.Position != nil {
			page.Position, err = insertAt(tx, scope, page.ID, *input.Position)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(page.ID)
}

// Update validates and saves a page. Changing the parent moves the page to the
// end of its new sibling list unless a position is given. A page with children
// keeps its site.
func (s *PageService) Update(id uint, input PageInput) (*db.Page, error) {
	var check db.Page
	if err := applyPageInput(&check, input); err != nil {
		return nil, err
	}

	scopesFor := func(current *db.Page) []positionScope {
		siteID := input.SiteID
		if siteID == 0 {
			siteID = current.SiteID
		}
		return []positionScope{
			pageScope(current.SiteID, current.ParentID),
			pageScope(siteID, input.ParentID),
		}
	}
	err := s.withPage(id, scopesFor, func(tx *gorm.DB, fresh *db.Page) error {
		updated := *fresh
		if err := applyPageInput(&updated, input); err != nil {
			return err
		}
		if input.SiteID == 0 {
			updated.SiteID = fresh.SiteID
		}
		if updated.SiteID != fresh.SiteID {
			var children int64
			if err := tx.Model(&db.Page{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
				return err
			}
			if children > 0 {
				return ErrPageSiteChange
			}
		}
		if err := validatePage(tx, &updated); err != nil {
			return err
		}
		if err := tx.Save(&updated).Error; err != nil {
			return err
		}

		oldScope := pageScope(fresh.SiteID, fresh.ParentID)
		newScope := pageScope(updated.SiteID, updated.ParentID)
		if oldScope.key() != newScope.key() {
			if err := closeGap(tx, oldScope, fresh.Position); err != nil {
				return err
			}
			pos := -1
			if input.Position != nil {
				pos = *input.Position
			}
			_, err := insertAt(tx, newScope, id, pos)
			return err
		}
		if input.Position != nil && *input.Position != fresh.Position {
			_, err := moveTo(tx, newScope, id, fresh.Position, *input.Position)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Move places a page at position among its siblings.
func (s *PageService) Move(id uint, position int) (*db.Page, error) {
	scopesFor := func(current *db.Page) []positionScope {
		return []positionScope{pageScope(current.SiteID, current.ParentID)}
	}
	err := s.withPage(id, scopesFor, func(tx *gorm.DB, fresh *db.Page) error {
		_, err := moveTo(tx, pageScope(fresh.SiteID, fresh.ParentID), id, fresh.Position, position)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Delete removes a page with its block attachments and seo record. Its
// children become roots appended after the existing root pages.
func (s *PageService) Delete(id uint) error {
	scopesFor := func(current *db.Page) []positionScope {
		return []positionScope{
			pageScope(current.SiteID, current.ParentID),
			pageScope(current.SiteID, nil),
			pageScope(current.SiteID, &current.ID),
		}
	}
	return s.withPage(id, scopesFor, func(tx *gorm.DB, fresh *db.Page) error {
		var children []db.Page
		if err := tx.Where("parent_id = ?", id).Order("position asc").Order("id asc").Find(&children).Error; err != nil {
			return err
		}

		if err := tx.Unscoped().Where("page_id = ?", id).Delete(&db.PageBlock{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("object_kind = ? AND object_id = ?", db.KindPage, id).Delete(&db.BlockAssociation{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("object_kind = ? AND object_id = ?", db.KindPage, id).Delete(&db.Seo{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(fresh).Error; err != nil {
			return err
		}
		if err := closeGap(tx, pageScope(fresh.SiteID, fresh.ParentID), fresh.Position); err != nil {
			return err
		}

		rootScope := pageScope(fresh.SiteID, nil)
		for i := range children {
			child := &children[i]
			child.ParentID = nil
			if err := checkPageSlug(tx, child); err != nil {
				return err
			}
			if err := tx.Model(child).UpdateColumn("parent_id", nil).Error; err != nil {
				return err
			}
			if _, err := insertAt(tx, rootScope, child.ID, -1); err != nil {
				return err
			}
		}
		return nil
	})
}

// errScopeMoved aborts a locked section whose page left the locked scope
// between the unlocked read and the lock.
var errScopeMoved = errors.New("page moved to another scope")

const scopeRetries = 8

// withPage runs fn on a fresh copy of page id while holding the locks of the
// scopes scopesFor derives from it. The page is re-read under the locks; if
// its own scope changed meanwhile the locks are dropped and taken again.
func (s *PageService) withPage(id uint, scopesFor func(current *db.Page) []positionScope, fn func(tx *gorm.DB, fresh *db.Page) error) error {
	for attempt := 0; ; attempt++ {
		current, err := s.load(s.db, id)
		if err != nil {
			return err
		}
		locked := pageScope(current.SiteID, current.ParentID).key()
		err = withScopes(s.db, scopesFor(current), func(tx *gorm.DB) error {
			fresh, err := s.load(tx, id)
			if err != nil {
				return err
			}
			if pageScope(fresh.SiteID, fresh.ParentID).key() != locked {
				return errScopeMoved
			}
			return fn(tx, fresh)
		})
		if errors.Is(err, errScopeMoved) && attempt < scopeRetries {
			continue
		}
		return err
	}
}

// Resolve matches path against the pages of site. A missing match yields an
// empty Resolution; a broken hierarchy is reported as an error wrapping
// tree.ErrCycle or tree.ErrDanglingParent.
func (s *PageService) Resolve(site *db.Site, path string) (*Resolution, error) {
	res := &Resolution{}
	t, err := loadSiteTree(s.db, site.ID)
	if err != nil {
		return res, err
	}

	m, matchErr := t.arena.Match(path)
	if matchErr != nil {
		matchErr = fmt.Errorf("resolve %q: %w", path, matchErr)
	}
	if !m.Found() {
		return res, matchErr
	}

	page := t.pages[m.ID]
	if err := t.decorate(page); err != nil {
		return res, err
	}

	ancestors, err := t.arena.Ancestors(m.ID)
	if err != nil {
		return res, err
	}
	res.Ancestors = make([]db.Page, 0, len(ancestors))
	for i := len(ancestors) - 1; i >= 0; i-- {
		anc := *t.pages[ancestors[i]]
		if err := t.decorate(&anc); err != nil {
			return res, err
		}
		res.Ancestors = append(res.Ancestors, anc)
	}

	fallback := s.defaultTemplate
	if site.DefaultTemplate != "" {
		fallback = site.DefaultTemplate
	}
	res.Template, err = t.arena.EffectiveTemplate(m.ID, fallback)
	if err != nil {
		return res, err
	}

	res.Page = page
	res.Exact = m.Exact
	res.Remainder = m.Remainder
	return res, matchErr
}

// NavGroup returns the reachable pages of the named page group ordered by
// position. A zero siteID lists pages of every site.
func (s *PageService) NavGroup(siteID uint, group string) ([]db.Page, error) {
	var pages []db.Page
	query := s.db.Model(&db.Page{}).
		Select("pages.*").
		Joins("JOIN page_groups ON page_groups.id = pages.group_id").
		Where("page_groups.title = ?", group).
		Where("pages.active = ?", true)
	if siteID != 0 {
		query = query.Where("pages.site_id = ?", siteID)
	}
	if err := query.Order("pages.position asc").Order("pages.id asc").Find(&pages).Error; err != nil {
		return nil, err
	}
	return s.reachable(pages)
}

// Children returns the active children of a page ordered by position.
func (s *PageService) Children(id uint) ([]db.Page, error) {
	page, err := s.load(s.db, id)
	if err != nil {
		return nil, err
	}
	t, err := loadSiteTree(s.db, page.SiteID)
	if err != nil {
		return nil, err
	}
	ids := t.arena.Children(id)
	children := make([]db.Page, 0, len(ids))
	for _, childID := range ids {
		child := *t.pages[childID]
		if err := t.decorate(&child); err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// URL returns the absolute url of a page.
func (s *PageService) URL(id uint) (string, error) {
	page, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return page.AbsoluteURL(), nil
}

func (s *PageService) reachable(pages []db.Page) ([]db.Page, error) {
	trees := make(map[uint]*siteTree)
	out := make([]db.Page, 0, len(pages))
	for i := range pages {
		page := pages[i]
		t, ok := trees[page.SiteID]
		if !ok {
			var err error
			t, err = loadSiteTree(s.db, page.SiteID)
			if err != nil {
				return nil, err
			}
			trees[page.SiteID] = t
		}
		ok, err := t.arena.Reachable(page.ID)
		if err != nil || !ok {
			continue
		}
		if err := t.decorate(&page); err != nil {
			continue
		}
		out = append(out, page)
	}
	return out, nil
}

func (s *PageService) load(gdb *gorm.DB, id uint) (*db.Page, error) {
	var page db.Page
	if err := gdb.First(&page, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

func applyPageInput(page *db.Page, input PageInput) error {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return ErrPageTitleRequired
	}
	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return ErrPageSlugRequired
	}
	target := strings.TrimSpace(input.Target)
	if !db.IsValidTarget(target) {
		return ErrInvalidTarget
	}
	format := strings.TrimSpace(input.Format)
	if !db.IsValidFormat(format) {
		return ErrInvalidFormat
	}

	page.Title = title
	page.Slug = slug
	page.GroupID = input.GroupID
	page.ParentID = input.ParentID
	page.SiteID = input.SiteID
	page.Homepage = input.Homepage
	page.URL = strings.TrimSpace(input.URL)
	page.Target = target
	page.PageTitle = strings.TrimSpace(input.PageTitle)
	page.Text = input.Text
	page.Format = format
	page.RenderAsTemplate = input.RenderAsTemplate
	page.Template = strings.TrimSpace(input.Template)
	page.View = strings.TrimSpace(input.View)
	page.RedirectURL = strings.TrimSpace(input.RedirectURL)
	page.RedirectPermanent = input.RedirectPermanent
	page.InheritBlocks = input.InheritBlocks
	page.Active = input.Active
	return nil
}

// validatePage checks site, parent and sibling slug constraints inside tx.
func validatePage(tx *gorm.DB, page *db.Page) error {
	var site db.Site
	if err := tx.First(&site, page.SiteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSiteNotFound
		}
		return err
	}

	if page.GroupID != nil {
		var group db.PageGroup
		if err := tx.First(&group, *page.GroupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
	}

	if page.ParentID != nil {
		if page.ID != 0 && *page.ParentID == page.ID {
			return ErrPageSelfParent
		}
		var parent db.Page
		if err := tx.First(&parent, *page.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPageParentNotFound
			}
			return err
		}
		if parent.SiteID != page.SiteID {
			return ErrPageParentNotFound
		}
		if page.ID != 0 {
			t, err := loadSiteTree(tx, page.SiteID)
			if err != nil {
				return err
			}
			if t.arena.WouldCycle(page.ID, parent.ID) {
				return ErrPageCycle
			}
		}
	}

	return checkPageSlug(tx, page)
}

func checkPageSlug(tx *gorm.DB, page *db.Page) error {
	query := tx.Model(&db.Page{}).Where("site_id = ? AND slug = ?", page.SiteID, page.Slug)
	if page.ParentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *page.ParentID)
	}
	if page.ID != 0 {
		query = query.Where("id <> ?", page.ID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrPageSlugConflict
	}
	return nil
}

func pageScope(siteID uint, parentID *uint) positionScope {
	return positionScope{
		model: &db.Page{},
		table: "pages",
		conds: map[string]interface{}{"site_id": siteID, "parent_id": parentID},
	}
}

// siteTree is the in-memory hierarchy of one site.
type siteTree struct {
	arena *tree.Arena
	pages map[uint]*db.Page
}

func loadSiteTree(gdb *gorm.DB, siteID uint) (*siteTree, error) {
	var pages []db.Page
	if err := gdb.Where("site_id = ?", siteID).Find(&pages).Error; err != nil {
		return nil, err
	}
	nodes := make([]tree.Node, 0, len(pages))
	byID := make(map[uint]*db.Page, len(pages))
	for i := range pages {
		page := &pages[i]
		byID[page.ID] = page
		nodes = append(nodes, pageNode(page))
	}
	return &siteTree{arena: tree.New(nodes), pages: byID}, nil
}

func pageNode(page *db.Page) tree.Node {
	var parent uint
	if page.ParentID != nil {
		parent = *page.ParentID
	}
	return tree.Node{
		ID:            page.ID,
		ParentID:      parent,
		Slug:          page.Slug,
		Position:      page.Position,
		Active:        page.Active,
		Homepage:      page.Homepage,
		Template:      page.Template,
		InheritBlocks: page.InheritBlocks,
	}
}

func (t *siteTree) decorate(page *db.Page) error {
	chain, err := t.arena.Chain(page.ID)
	if err != nil {
		return err
	}
	depth, err := t.arena.Depth(page.ID)
	if err != nil {
		return err
	}
	page.SlugChain = chain
	page.Depth = depth
	return nil
}
