package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/simplecms/internal/service"
)

type seoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
}

// GetSeo 获取页面或文章的 SEO 信息
func (a *API) GetSeo(c *gin.Context) {
	ref, ok := a.objectRef(c)
	if !ok {
		return
	}
	seo, err := a.seo.For(ref)
	if err != nil {
		respondServiceError(c, err, "获取 SEO 信息失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"seo": seo})
}

// SaveSeo 保存页面或文章的 SEO 信息
func (a *API) SaveSeo(c *gin.Context) {
	ref, ok := a.objectRef(c)
	if !ok {
		return
	}
	var req seoRequest
	if !bindJSON(c, &req, "SEO 数据格式不正确") {
		return
	}
	seo, err := a.seo.Save(ref, service.SeoInput{Title: req.Title, Description: req.Description, Keywords: req.Keywords})
	if err != nil {
		respondServiceError(c, err, "保存 SEO 信息失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "SEO 信息已保存", "seo": seo})
}

// DeleteSeo 删除 SEO 信息
func (a *API) DeleteSeo(c *gin.Context) {
	ref, ok := a.objectRef(c)
	if !ok {
		return
	}
	if err := a.seo.Delete(ref); err != nil {
		respondServiceError(c, err, "删除 SEO 信息失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "SEO 信息已删除"})
}
