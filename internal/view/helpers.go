// Package view provides the functions and embedded templates used to render
// pages, articles and the admin screens.
package view

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/render"
	"github.com/simplecms/internal/service"
	"go.uber.org/zap"
)

// Helpers backs the template functions. Query helpers never fail a render:
// lookup errors are logged and yield empty results.
type Helpers struct {
	Sites      *service.SiteService
	Pages      *service.PageService
	Blocks     *service.BlockService
	Articles   *service.ArticleService
	Categories *service.CategoryService
	Text       *render.TextRenderer
	// CheckDomain limits navGroup to pages of the current site.
	CheckDomain bool
	Log         *zap.Logger
}

func (h *Helpers) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// FuncMap returns the template functions.
func (h *Helpers) FuncMap() template.FuncMap {
	return template.FuncMap{
		"navGroup":            h.NavGroup,
		"children":            h.Children,
		"block":               h.Block,
		"blocksFor":           h.BlocksFor,
		"blockSection":        NewBlockSection,
		"articlesForTag":      h.ArticlesForTag,
		"articlesForCategory": h.ArticlesForCategory,
		"articleCategories":   h.ArticleCategories,
		"articleYears":        h.ArticleYears,
		"pageURL":             h.PageURL,
		"renderText":          h.RenderText,
		"linkAttrs":           LinkAttrs,
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
	}
}

// NavGroup returns the active pages of a page group.
func (h *Helpers) NavGroup(site *db.Site, group string) []db.Page {
	var siteID uint
	if h.CheckDomain && site != nil {
		siteID = site.ID
	}
	pages, err := h.Pages.NavGroup(siteID, group)
	if err != nil {
		h.logger().Warn("nav group lookup failed", zap.String("group", group), zap.Error(err))
		return []db.Page{}
	}
	return pages
}

// Children returns the active children of page.
func (h *Helpers) Children(page *db.Page) []db.Page {
	if page == nil {
		return []db.Page{}
	}
	children, err := h.Pages.Children(page.ID)
	if err != nil {
		h.logger().Warn("page children lookup failed", zap.Uint("page_id", page.ID), zap.Error(err))
		return []db.Page{}
	}
	return children
}

// Block returns the active block with key, or nil.
func (h *Helpers) Block(key string) *db.Block {
	block, err := h.Blocks.ByKey(key)
	if err != nil {
		if !errors.Is(err, service.ErrBlockNotFound) {
			h.logger().Warn("block lookup failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	return block
}

// BlocksFor returns the blocks attached to obj. Pages inherit ancestor blocks;
// other objects only list their own associations. group is optional.
func (h *Helpers) BlocksFor(obj interface{}, group ...string) []db.Block {
	name := ""
	if len(group) > 0 {
		name = group[0]
	}
	switch v := obj.(type) {
	case *db.Page:
		if v != nil {
			return h.Blocks.ForPage(v, name)
		}
	case db.Page:
		return h.Blocks.ForPage(&v, name)
	}
	ref, ok := service.RefOf(obj)
	if !ok {
		return []db.Block{}
	}
	return h.Blocks.ForObject(ref, name)
}

// BlockSection pairs a block list with the context of the page rendering it,
// so template-flagged block bodies see the same data as the page.
type BlockSection struct {
	Blocks  []db.Block
	Context interface{}
}

// NewBlockSection is the blockSection template function.
func NewBlockSection(blocks []db.Block, ctx interface{}) BlockSection {
	return BlockSection{Blocks: blocks, Context: ctx}
}

// ArticlesForTag returns up to limit active articles tagged slug.
func (h *Helpers) ArticlesForTag(slug string, limit ...int) *service.ArticleSlice {
	slice, err := h.Articles.ForTag(slug, firstOr(limit, 0))
	if err != nil {
		h.logger().Warn("tag articles lookup failed", zap.String("tag", slug), zap.Error(err))
		return &service.ArticleSlice{Objects: []db.Article{}}
	}
	return slice
}

// ArticlesForCategory returns up to limit active articles in the category slug.
func (h *Helpers) ArticlesForCategory(slug string, limit ...int) *service.ArticleSlice {
	slice, err := h.Articles.ForCategory(slug, firstOr(limit, 0))
	if err != nil {
		h.logger().Warn("category articles lookup failed", zap.String("category", slug), zap.Error(err))
		return &service.ArticleSlice{Objects: []db.Article{}}
	}
	return slice
}

// ArticleCategories lists active categories that have active articles.
func (h *Helpers) ArticleCategories() []service.CategoryWithCount {
	categories, err := h.Categories.WithArticles()
	if err != nil {
		h.logger().Warn("article categories lookup failed", zap.Error(err))
		return []service.CategoryWithCount{}
	}
	return categories
}

// ArticleYears lists the years with active articles, newest first.
func (h *Helpers) ArticleYears() []int {
	years, err := h.Articles.Years()
	if err != nil {
		h.logger().Warn("article years lookup failed", zap.Error(err))
		return []int{}
	}
	return years
}

// PageURL returns the absolute url of the page with id, including scheme and
// site domain unless the page overrides its url. Unknown pages yield "".
func (h *Helpers) PageURL(req *http.Request, id uint) string {
	page, err := h.Pages.Get(id)
	if err != nil {
		return ""
	}
	if page.URL != "" {
		return page.URL
	}
	site, err := h.Sites.Get(page.SiteID)
	if err != nil {
		return page.AbsoluteURL()
	}
	scheme := "http://"
	if isSecure(req) {
		scheme = "https://"
	}
	return scheme + site.Domain + page.AbsoluteURL()
}

func isSecure(req *http.Request) bool {
	if req == nil {
		return false
	}
	if req.TLS != nil {
		return true
	}
	return strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https")
}

// RenderText converts the body of a page, block or article to HTML. data is
// the context for bodies flagged render-as-template.
func (h *Helpers) RenderText(obj interface{}, data ...interface{}) (template.HTML, error) {
	tb, ok := textOf(obj)
	if !ok {
		return "", nil
	}
	var ctx interface{}
	if len(data) > 0 {
		ctx = data[0]
	}
	return h.Text.Render(tb, ctx)
}

func textOf(obj interface{}) (db.TextBlock, bool) {
	switch v := obj.(type) {
	case db.TextBlock:
		return v, true
	case *db.Page:
		if v != nil {
			return v.TextBlock(), true
		}
	case db.Page:
		return v.TextBlock(), true
	case *db.Block:
		if v != nil {
			return v.TextBlock(), true
		}
	case db.Block:
		return v.TextBlock(), true
	case *db.Article:
		if v != nil {
			return v.TextBlock(), true
		}
	case db.Article:
		return v.TextBlock(), true
	case string:
		return db.TextBlock{Text: v}, true
	}
	return db.TextBlock{}, false
}

// LinkAttrs renders the target and href attributes of a page, block or article.
func LinkAttrs(obj interface{}) template.HTMLAttr {
	switch v := obj.(type) {
	case *db.Page:
		if v != nil {
			return v.LinkAttributes()
		}
	case db.Page:
		return v.LinkAttributes()
	case *db.Block:
		if v != nil {
			return v.LinkAttributes()
		}
	case db.Block:
		return v.LinkAttributes()
	case *db.Article:
		if v != nil {
			return v.LinkAttributes()
		}
	case db.Article:
		return v.LinkAttributes()
	}
	return ""
}

func firstOr(values []int, fallback int) int {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}
