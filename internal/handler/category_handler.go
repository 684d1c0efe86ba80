package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/simplecms/internal/service"
)

type categoryRequest struct {
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	ParentID *uint  `json:"parent_id"`
	Position *int   `json:"position"`
	Active   *bool  `json:"active"`
}

func (req categoryRequest) input() service.CategoryInput {
	return service.CategoryInput{
		Title:    req.Title,
		Slug:     req.Slug,
		ParentID: req.ParentID,
		Position: req.Position,
		Active:   boolOr(req.Active, true),
	}
}

// GetCategories 列出全部分类
func (a *API) GetCategories(c *gin.Context) {
	categories, err := a.categories.List(false)
	if err != nil {
		respondServiceError(c, err, "获取分类失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// CreateCategory 创建分类
func (a *API) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, &req, "分类数据格式不正确") {
		return
	}
	category, err := a.categories.Create(req.input())
	if err != nil {
		respondServiceError(c, err, "创建分类失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "分类创建成功", "category": category})
}

// UpdateCategory 更新分类
func (a *API) UpdateCategory(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的分类ID")
		return
	}
	var req categoryRequest
	if !bindJSON(c, &req, "分类数据格式不正确") {
		return
	}
	category, err := a.categories.Update(id, req.input())
	if err != nil {
		respondServiceError(c, err, "更新分类失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "分类更新成功", "category": category})
}

// MoveCategory 调整分类在同级中的位置
func (a *API) MoveCategory(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的分类ID")
		return
	}
	var req moveRequest
	if !bindJSON(c, &req, "请提供目标位置") {
		return
	}
	if err := a.categories.Move(id, *req.Position); err != nil {
		respondServiceError(c, err, "移动分类失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "分类位置已更新"})
}

// DeleteCategory 删除分类，子分类提升为顶级
func (a *API) DeleteCategory(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的分类ID")
		return
	}
	if err := a.categories.Delete(id); err != nil {
		respondServiceError(c, err, "删除分类失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "分类删除成功"})
}
