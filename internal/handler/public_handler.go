package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/dispatch"
	"github.com/simplecms/internal/service"
	"go.uber.org/zap"
)

// View names a page may declare to hand its request to an article view.
const (
	ViewArticleList   = "articles.list"
	ViewArticleSearch = "articles.search"
)

const (
	articleListTemplate   = "cms/article_list.html"
	articleDetailTemplate = "cms/article_detail.html"
)

func (a *API) registerViews() {
	a.views.Register(ViewArticleList, a.ShowArticles)
	a.views.Register(ViewArticleSearch, a.SearchArticles)
}

// ShowArticles 渲染最新文章列表
func (a *API) ShowArticles(c *gin.Context) {
	a.renderArticleList(c, "文章", service.ArticleFilter{})
}

// SearchArticles 按关键字搜索文章
func (a *API) SearchArticles(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	heading := "搜索"
	if query != "" {
		heading = "搜索：" + query
	}
	a.renderArticleList(c, heading, service.ArticleFilter{Search: query})
}

// ShowTagArticles 渲染某个标签下的文章
func (a *API) ShowTagArticles(c *gin.Context) {
	tag, err := a.tags.GetBySlug(c.Param("slug"))
	if err != nil {
		a.articleLookupFailed(c, err)
		return
	}
	a.renderArticleList(c, "标签："+tag.Name, service.ArticleFilter{Tag: tag.Slug})
}

// ShowCategoryArticles 渲染某个分类下的文章，停用的分类视为不存在
func (a *API) ShowCategoryArticles(c *gin.Context) {
	category, err := a.categories.GetBySlug(c.Param("slug"))
	if err != nil {
		a.articleLookupFailed(c, err)
		return
	}
	a.renderArticleList(c, "分类："+category.Title, service.ArticleFilter{Category: category.Slug})
}

// ShowYearArticles 渲染某一年发布的文章
func (a *API) ShowYearArticles(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year <= 0 {
		c.String(http.StatusNotFound, "Page not found")
		return
	}
	a.renderArticleList(c, strconv.Itoa(year)+" 年", service.ArticleFilter{Year: year})
}

// ShowArticleDetail 按日期与 slug 渲染文章详情
func (a *API) ShowArticleDetail(c *gin.Context) {
	var parts [3]int
	for i, name := range []string{"year", "month", "day"} {
		n, err := strconv.Atoi(c.Param(name))
		if err != nil {
			c.String(http.StatusNotFound, "Page not found")
			return
		}
		parts[i] = n
	}

	detail, err := a.articles.Detail(parts[0], parts[1], parts[2], c.Param("slug"))
	if err != nil {
		a.articleLookupFailed(c, err)
		return
	}

	data := gin.H{
		"Article":  detail.Article,
		"Previous": detail.Previous,
		"Next":     detail.Next,
	}
	seo, err := a.seo.For(service.ObjectRef{Kind: db.KindArticle, ID: detail.Article.ID})
	switch {
	case err == nil:
		data["Seo"] = seo
	case !errors.Is(err, service.ErrSeoNotFound):
		a.log.Warn("article seo lookup failed", zap.Uint("article_id", detail.Article.ID), zap.Error(err))
	}
	a.renderHTML(c, http.StatusOK, articleDetailTemplate, data)
}

func (a *API) renderArticleList(c *gin.Context, heading string, filter service.ArticleFilter) {
	filter.Page = parsePositiveInt(c.DefaultQuery("page", "1"), 1)
	filter.PerPage = a.perPage

	result, err := a.articles.List(filter)
	if err != nil {
		a.log.Error("article list failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	data := gin.H{
		"Heading":     heading,
		"Query":       filter.Search,
		"Articles":    result.Articles,
		"CurrentPage": result.Page,
		"TotalPages":  result.TotalPages,
	}
	// 作为页面视图被调用时，沿用页面的标题与层级
	if res, ok := dispatch.ResolutionFrom(c); ok && res.Found() {
		data["Page"] = res.Page
		data["Ancestors"] = res.Ancestors
		if filter.Search == "" && filter.Tag == "" && filter.Category == "" && filter.Year == 0 {
			data["Heading"] = res.Page.DisplayTitle()
		}
	}
	a.renderHTML(c, http.StatusOK, articleListTemplate, data)
}

func (a *API) articleLookupFailed(c *gin.Context, err error) {
	if statusFor(err) == http.StatusNotFound {
		c.String(http.StatusNotFound, "Page not found")
		return
	}
	a.log.Error("article lookup failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.String(http.StatusInternalServerError, "Internal server error")
}
