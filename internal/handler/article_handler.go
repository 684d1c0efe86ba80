package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simplecms/internal/service"
)

type articleRequest struct {
	Title            string   `json:"title"`
	Slug             string   `json:"slug"`
	PostDate         string   `json:"post_date"`
	Text             string   `json:"text"`
	Format           string   `json:"format"`
	RenderAsTemplate bool     `json:"render_as_template"`
	Excerpt          string   `json:"excerpt"`
	KeyImage         string   `json:"key_image"`
	DisplayImage     bool     `json:"display_image"`
	TagNames         []string `json:"tag_names"`
	CategoryIDs      []uint   `json:"category_ids"`
	AllowComments    bool     `json:"allow_comments"`
	AuthorID         *uint    `json:"author_id"`
	URL              string   `json:"url"`
	Target           string   `json:"target"`
	DisplayTitle     *bool    `json:"display_title"`
	Active           *bool    `json:"active"`
}

var postDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02"}

// parsePostDate accepts RFC3339 and the shorter forms sent by date inputs.
// An empty value means now.
func parsePostDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now(), true
	}
	for _, layout := range postDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (req articleRequest) input() (service.ArticleInput, bool) {
	postDate, ok := parsePostDate(req.PostDate)
	if !ok {
		return service.ArticleInput{}, false
	}
	return service.ArticleInput{
		Title:            req.Title,
		Slug:             req.Slug,
		PostDate:         postDate,
		Text:             req.Text,
		Format:           req.Format,
		RenderAsTemplate: req.RenderAsTemplate,
		Excerpt:          req.Excerpt,
		KeyImage:         req.KeyImage,
		DisplayImage:     req.DisplayImage,
		TagNames:         req.TagNames,
		CategoryIDs:      req.CategoryIDs,
		AllowComments:    req.AllowComments,
		AuthorID:         req.AuthorID,
		URL:              req.URL,
		Target:           req.Target,
		DisplayTitle:     boolOr(req.DisplayTitle, true),
		Active:           boolOr(req.Active, true),
	}, true
}

// GetArticles 获取文章列表，包含未发布的文章
func (a *API) GetArticles(c *gin.Context) {
	result, err := a.articles.List(service.ArticleFilter{
		Search:          strings.TrimSpace(c.Query("search")),
		Tag:             c.Query("tag"),
		Category:        c.Query("category"),
		IncludeInactive: true,
		Page:            parsePositiveInt(c.DefaultQuery("page", "1"), 1),
		PerPage:         parsePositiveInt(c.DefaultQuery("per_page", "20"), 20),
	})
	if err != nil {
		respondServiceError(c, err, "获取文章列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"articles":    result.Articles,
		"total":       result.Total,
		"page":        result.Page,
		"total_pages": result.TotalPages,
	})
}

// GetArticle 获取单篇文章
func (a *API) GetArticle(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文章ID")
		return
	}
	article, err := a.articles.Get(id)
	if err != nil {
		respondServiceError(c, err, "获取文章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"article": article})
}

// CreateArticle 创建新文章
func (a *API) CreateArticle(c *gin.Context) {
	var req articleRequest
	if !bindJSON(c, &req, "文章数据格式不正确") {
		return
	}
	input, ok := req.input()
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的发布日期")
		return
	}
	article, err := a.articles.Create(input)
	if err != nil {
		respondServiceError(c, err, "创建文章失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "文章创建成功", "article": article})
}

// UpdateArticle 更新文章
func (a *API) UpdateArticle(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文章ID")
		return
	}
	var req articleRequest
	if !bindJSON(c, &req, "文章数据格式不正确") {
		return
	}
	input, ok := req.input()
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的发布日期")
		return
	}
	article, err := a.articles.Update(id, input)
	if err != nil {
		respondServiceError(c, err, "更新文章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "文章更新成功", "article": article})
}

// DeleteArticle 删除文章及其 SEO 与内容块关联
func (a *API) DeleteArticle(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文章ID")
		return
	}
	if err := a.articles.Delete(id); err != nil {
		respondServiceError(c, err, "删除文章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "文章删除成功"})
}
