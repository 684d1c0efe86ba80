package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/simplecms/internal/cache"
	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/dispatch"
	"github.com/simplecms/internal/metrics"
	"github.com/simplecms/internal/render"
	"github.com/simplecms/internal/service"
	"github.com/simplecms/internal/view"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options configures the handler set.
type Options struct {
	DefaultSiteID uint
	// PageTemplate is rendered for pages without an own or inherited template.
	PageTemplate    string
	ArticlesPerPage int
	CheckDomain     bool
	UploadDir       string
	UploadURL       string
	Cache           cache.PageCache
	Log             *zap.Logger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	sites      *service.SiteService
	pages      *service.PageService
	groups     *service.GroupService
	blocks     *service.BlockService
	categories *service.CategoryService
	tags       *service.TagService
	articles   *service.ArticleService
	seo        *service.SeoService
	text       *render.TextRenderer
	views      *dispatch.Registry
	cache      cache.PageCache
	log        *zap.Logger

	checkDomain bool
	perPage     int
	uploadDir   string
	uploadURL   string
}

const siteContextKey = "__site"

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	pageCache := opts.Cache
	if pageCache == nil {
		pageCache = cache.Nop{}
	}
	perPage := opts.ArticlesPerPage
	if perPage <= 0 {
		perPage = 10
	}
	uploadDir, uploadURL := opts.UploadDir, opts.UploadURL
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if uploadURL == "" {
		uploadURL = "/uploads"
	}
	tags := service.NewTagService(gdb)

	a := &API{
		db:          gdb,
		sites:       service.NewSiteService(gdb, opts.DefaultSiteID),
		pages:       service.NewPageService(gdb, opts.PageTemplate),
		groups:      service.NewGroupService(gdb),
		blocks:      service.NewBlockService(gdb, log.Named("blocks")),
		categories:  service.NewCategoryService(gdb),
		tags:        tags,
		articles:    service.NewArticleService(gdb, tags),
		seo:         service.NewSeoService(gdb),
		text:        render.NewTextRenderer(),
		views:       dispatch.NewRegistry(),
		cache:       pageCache,
		log:         log,
		checkDomain: opts.CheckDomain,
		perPage:     perPage,
		uploadDir:   uploadDir,
		uploadURL:   uploadURL,
	}
	a.registerViews()
	return a
}

// Sites exposes the site service for startup synchronisation.
func (a *API) Sites() *service.SiteService {
	return a.sites
}

// Views exposes the view registry so callers can register delegated handlers.
func (a *API) Views() *dispatch.Registry {
	return a.views
}

// Helpers returns the template functions bound to this handler set and makes
// them available to render-as-template bodies.
func (a *API) Helpers() *view.Helpers {
	h := &view.Helpers{
		Sites:       a.sites,
		Pages:       a.pages,
		Blocks:      a.blocks,
		Articles:    a.articles,
		Categories:  a.categories,
		Text:        a.text,
		CheckDomain: a.checkDomain,
		Log:         a.log.Named("view"),
	}
	a.text.SetFuncs(h.FuncMap())
	return h
}

// Dispatcher builds the page dispatcher over templates.
func (a *API) Dispatcher(templates dispatch.TemplateRenderer, m *metrics.Metrics) *dispatch.Dispatcher {
	return dispatch.New(dispatch.Options{
		Sites:      a.sites,
		Pages:      a.pages,
		Blocks:     a.blocks,
		Templates:  templates,
		Views:      a.views,
		Processors: []dispatch.ContextProcessor{a.seoProcessor},
		Cache:      a.cache,
		Metrics:    m,
		Log:        a.log.Named("dispatch"),
	})
}

// currentSite returns the site serving the request host, or nil.
func (a *API) currentSite(c *gin.Context) *db.Site {
	if site, ok := dispatch.SiteFrom(c); ok {
		return site
	}
	if cached, exists := c.Get(siteContextKey); exists {
		if site, ok := cached.(*db.Site); ok {
			return site
		}
	}
	site, err := a.sites.ForHost(c.Request.Host)
	if err != nil {
		c.Error(err)
		return nil
	}
	c.Set(siteContextKey, site)
	return site
}

func (a *API) renderHTML(c *gin.Context, status int, template string, data gin.H) {
	payload := gin.H{}
	for key, value := range data {
		payload[key] = value
	}
	if _, exists := payload["Site"]; !exists {
		if site := a.currentSite(c); site != nil {
			payload["Site"] = site
		}
	}
	if _, exists := payload["Request"]; !exists {
		payload["Request"] = c.Request
	}
	c.HTML(status, template, payload)
}

// RenderHTML 在向模板渲染时自动附加当前站点与请求信息。
func (a *API) RenderHTML(c *gin.Context, status int, template string, data gin.H) {
	a.renderHTML(c, status, template, data)
}

// seoProcessor adds the SEO metadata of the resolved page to the render context.
func (a *API) seoProcessor(c *gin.Context, data gin.H) {
	page, ok := data["Page"].(*db.Page)
	if !ok || page == nil {
		return
	}
	seo, err := a.seo.For(service.ObjectRef{Kind: db.KindPage, ID: page.ID})
	if err != nil {
		if !errors.Is(err, service.ErrSeoNotFound) {
			a.log.Warn("page seo lookup failed", zap.Uint("page_id", page.ID), zap.Error(err))
		}
		return
	}
	data["Seo"] = seo
}
