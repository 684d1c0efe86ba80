package dispatch

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simplecms/internal/cache"
	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/metrics"
	"github.com/simplecms/internal/service"
	"github.com/simplecms/internal/tree"
	"go.uber.org/zap"
)

const (
	// NotFoundTemplate is rendered for 404 responses when it is loaded.
	NotFoundTemplate = "errors/404.html"

	resolutionKey = "__cms_resolution"
	siteKey       = "__cms_site"
)

// SiteLookup maps a request host to a site.
type SiteLookup interface {
	ForHost(host string) (*db.Site, error)
}

// PageResolver resolves a request path on a site.
type PageResolver interface {
	Resolve(site *db.Site, path string) (*service.Resolution, error)
}

// BlockSource aggregates the blocks shown on a page.
type BlockSource interface {
	ForPage(page *db.Page, group string) []db.Block
}

// TemplateRenderer executes named templates.
type TemplateRenderer interface {
	Render(w io.Writer, name string, data interface{}) error
	Has(name string) bool
}

// ContextProcessor adds values to the render context of every page.
type ContextProcessor func(c *gin.Context, data gin.H)

// Options configures a Dispatcher. Cache, Metrics and Log are optional.
type Options struct {
	Sites      SiteLookup
	Pages      PageResolver
	Blocks     BlockSource
	Templates  TemplateRenderer
	Views      *Registry
	Processors []ContextProcessor
	Cache      cache.PageCache
	Metrics    *metrics.Metrics
	Log        *zap.Logger
}

// Dispatcher serves pages for every path not claimed by another route.
type Dispatcher struct {
	sites      SiteLookup
	pages      PageResolver
	blocks     BlockSource
	templates  TemplateRenderer
	views      *Registry
	processors []ContextProcessor
	cache      cache.PageCache
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// New builds a Dispatcher from opts.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		sites:      opts.Sites,
		pages:      opts.Pages,
		blocks:     opts.Blocks,
		templates:  opts.Templates,
		views:      opts.Views,
		processors: opts.Processors,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
		log:        opts.Log,
	}
	if d.views == nil {
		d.views = NewRegistry()
	}
	if d.cache == nil {
		d.cache = cache.Nop{}
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	return d
}

// Use appends context processors.
func (d *Dispatcher) Use(processors ...ContextProcessor) {
	d.processors = append(d.processors, processors...)
}

// Handle is the gin handler for page requests. GET and POST are treated alike;
// only GET renders are cached.
func (d *Dispatcher) Handle(c *gin.Context) {
	site, err := d.sites.ForHost(c.Request.Host)
	if err != nil {
		if errors.Is(err, service.ErrSiteNotFound) {
			d.notFound(c)
			return
		}
		d.fail(c, "site lookup failed", err)
		return
	}
	c.Set(siteKey, site)

	path := c.Request.URL.Path
	cacheable := c.Request.Method == http.MethodGet
	var token cache.Token
	if cacheable {
		var body []byte
		var hit bool
		body, token, hit = d.cache.Get(c.Request.Context(), site.ID, path)
		d.metrics.CacheLookup(hit)
		if hit {
			d.metrics.Dispatched(metrics.OutcomeRender)
			c.Data(http.StatusOK, "text/html; charset=utf-8", body)
			return
		}
	}

	res, err := d.pages.Resolve(site, path)
	if err != nil {
		if !errors.Is(err, tree.ErrCycle) && !errors.Is(err, tree.ErrDanglingParent) {
			d.fail(c, "page resolution failed", err)
			return
		}
		d.log.Error("page hierarchy misconfigured",
			zap.Uint("site_id", site.ID),
			zap.String("path", path),
			zap.Error(err),
		)
	}
	c.Set(resolutionKey, res)

	decision := Decide(res)
	switch decision.Outcome {
	case Redirect:
		d.metrics.Dispatched(metrics.OutcomeRedirect)
		c.Redirect(decision.RedirectStatus(), decision.RedirectURL)
	case Delegate:
		h, ok := d.views.Lookup(decision.View)
		if !ok {
			d.fail(c, "unknown page view", errors.New("view "+decision.View+" is not registered"),
				zap.Uint("page_id", res.Page.ID))
			return
		}
		d.metrics.Dispatched(metrics.OutcomeDelegate)
		h(c)
	case Render:
		body, err := d.render(c, site, res, decision.Template)
		if err != nil {
			d.fail(c, "page render failed", err,
				zap.Uint("page_id", res.Page.ID),
				zap.String("template", decision.Template))
			return
		}
		d.metrics.Dispatched(metrics.OutcomeRender)
		if cacheable {
			d.cache.Set(c.Request.Context(), token, site.ID, path, body)
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", body)
	default:
		d.notFound(c)
	}
}

// Context builds the render context for a resolved page.
func (d *Dispatcher) Context(c *gin.Context, site *db.Site, res *service.Resolution) gin.H {
	data := gin.H{
		"Site":       site,
		"Page":       res.Page,
		"Ancestors":  res.Ancestors,
		"ExactMatch": res.Exact,
		"Resolution": res,
		"Request":    c.Request,
	}
	if d.blocks != nil {
		data["Blocks"] = d.blocks.ForPage(res.Page, "")
	}
	for _, p := range d.processors {
		p(c, data)
	}
	return data
}

func (d *Dispatcher) render(c *gin.Context, site *db.Site, res *service.Resolution, name string) ([]byte, error) {
	data := d.Context(c, site, res)
	start := time.Now()
	defer d.metrics.Rendered(start)

	var buf bytes.Buffer
	if err := d.templates.Render(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Dispatcher) notFound(c *gin.Context) {
	d.metrics.Dispatched(metrics.OutcomeNotFound)
	if d.templates != nil && d.templates.Has(NotFoundTemplate) {
		var buf bytes.Buffer
		data := gin.H{"Request": c.Request, "Path": c.Request.URL.Path}
		if site, ok := SiteFrom(c); ok {
			data["Site"] = site
		}
		if err := d.templates.Render(&buf, NotFoundTemplate, data); err == nil {
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", buf.Bytes())
			return
		}
	}
	c.String(http.StatusNotFound, "Page not found")
}

func (d *Dispatcher) fail(c *gin.Context, msg string, err error, fields ...zap.Field) {
	d.metrics.Dispatched(metrics.OutcomeError)
	fields = append(fields, zap.String("path", c.Request.URL.Path), zap.Error(err))
	d.log.Error(msg, fields...)
	c.Error(err)
	c.String(http.StatusInternalServerError, "Internal server error")
}

// ResolutionFrom returns the resolution stored by Handle, for delegated views.
func ResolutionFrom(c *gin.Context) (*service.Resolution, bool) {
	v, ok := c.Get(resolutionKey)
	if !ok {
		return nil, false
	}
	res, ok := v.(*service.Resolution)
	return res, ok && res != nil
}

// SiteFrom returns the site matched by Handle.
func SiteFrom(c *gin.Context) (*db.Site, bool) {
	v, ok := c.Get(siteKey)
	if !ok {
		return nil, false
	}
	site, ok := v.(*db.Site)
	return site, ok && site != nil
}
