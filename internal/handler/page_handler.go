package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/simplecms/internal/service"
)

type pageRequest struct {
	Title             string `json:"title"`
	Slug              string `json:"slug"`
	GroupID           *uint  `json:"group_id"`
	ParentID          *uint  `json:"parent_id"`
	Position          *int   `json:"position"`
	SiteID            uint   `json:"site_id"`
	Homepage          bool   `json:"homepage"`
	URL               string `json:"url"`
	Target            string `json:"target"`
	PageTitle         string `json:"page_title"`
	Text              string `json:"text"`
	Format            string `json:"format"`
	RenderAsTemplate  bool   `json:"render_as_template"`
	Template          string `json:"template"`
	View              string `json:"view"`
	RedirectURL       string `json:"redirect_url"`
	RedirectPermanent bool   `json:"redirect_permanent"`
	InheritBlocks     *bool  `json:"inherit_blocks"`
	Active            *bool  `json:"active"`
}

type moveRequest struct {
	Position *int `json:"position" binding:"required"`
}

type groupRequest struct {
	Title string `json:"title" binding:"required"`
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

// pageInput converts req. A missing site_id means the default site on create
// and the page's current site on update.
func (a *API) pageInput(req pageRequest, creating bool) service.PageInput {
	siteID := req.SiteID
	if siteID == 0 && creating {
		siteID = a.sites.DefaultID()
	}
	return service.PageInput{
		Title:             req.Title,
		Slug:              req.Slug,
		GroupID:           req.GroupID,
		ParentID:          req.ParentID,
		Position:          req.Position,
		SiteID:            siteID,
		Homepage:          req.Homepage,
		URL:               req.URL,
		Target:            req.Target,
		PageTitle:         req.PageTitle,
		Text:              req.Text,
		Format:            req.Format,
		RenderAsTemplate:  req.RenderAsTemplate,
		Template:          req.Template,
		View:              req.View,
		RedirectURL:       req.RedirectURL,
		RedirectPermanent: req.RedirectPermanent,
		InheritBlocks:     boolOr(req.InheritBlocks, true),
		Active:            boolOr(req.Active, true),
	}
}

// GetPages 按层级顺序列出站点的全部页面
func (a *API) GetPages(c *gin.Context) {
	siteID := parseUintQuery(c, "site_id")
	if siteID == 0 {
		siteID = a.sites.DefaultID()
	}
	pages, err := a.pages.Tree(siteID)
	if err != nil {
		respondServiceError(c, err, "获取页面列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

// GetPage 获取单个页面
func (a *API) GetPage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}
	page, err := a.pages.Get(id)
	if err != nil {
		respondServiceError(c, err, "获取页面失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

// CreatePage 创建页面
func (a *API) CreatePage(c *gin.Context) {
	var req pageRequest
	if !bindJSON(c, &req, "页面数据格式不正确") {
		return
	}
	page, err := a.pages.Create(a.pageInput(req, true))
	if err != nil {
		respondServiceError(c, err, "创建页面失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "页面创建成功", "page": page})
}

// UpdatePage 更新页面
func (a *API) UpdatePage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}
	var req pageRequest
	if !bindJSON(c, &req, "页面数据格式不正确") {
		return
	}
	page, err := a.pages.Update(id, a.pageInput(req, false))
	if err != nil {
		respondServiceError(c, err, "更新页面失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "页面更新成功", "page": page})
}

// MovePage 调整页面在同级中的位置
func (a *API) MovePage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}
	var req moveRequest
	if !bindJSON(c, &req, "请提供目标位置") {
		return
	}
	page, err := a.pages.Move(id, *req.Position)
	if err != nil {
		respondServiceError(c, err, "移动页面失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "页面位置已更新", "page": page})
}

// DeletePage 删除页面，子页面提升为根页面
func (a *API) DeletePage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}
	if err := a.pages.Delete(id); err != nil {
		respondServiceError(c, err, "删除页面失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "页面删除成功"})
}

// GetPageGroups 列出页面分组
func (a *API) GetPageGroups(c *gin.Context) {
	groups, err := a.groups.PageGroups()
	if err != nil {
		respondServiceError(c, err, "获取页面分组失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// CreatePageGroup 创建页面分组
func (a *API) CreatePageGroup(c *gin.Context) {
	var req groupRequest
	if !bindJSON(c, &req, "分组名称不能为空") {
		return
	}
	group, err := a.groups.CreatePageGroup(req.Title)
	if err != nil {
		respondServiceError(c, err, "创建页面分组失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "页面分组创建成功", "group": group})
}

// DeletePageGroup 删除页面分组，成员页面保留
func (a *API) DeletePageGroup(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的分组ID")
		return
	}
	if err := a.groups.DeletePageGroup(id); err != nil {
		respondServiceError(c, err, "删除页面分组失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "页面分组删除成功"})
}
