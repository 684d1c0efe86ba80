package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/simplecms/internal/service"
)

type objectRequest struct {
	Kind string `json:"kind"`
	ID   uint   `json:"id"`
}

type blockRequest struct {
	Key              string         `json:"key"`
	Title            string         `json:"title"`
	Text             string         `json:"text"`
	Format           string         `json:"format"`
	RenderAsTemplate bool           `json:"render_as_template"`
	Image            string         `json:"image"`
	ImageWidth       int            `json:"image_width"`
	ImageHeight      int            `json:"image_height"`
	URL              string         `json:"url"`
	Target           string         `json:"target"`
	Content          *objectRequest `json:"content"`
	Active           *bool          `json:"active"`
}

type attachRequest struct {
	BlockID  uint  `json:"block_id" binding:"required"`
	GroupID  *uint `json:"group_id"`
	Position *int  `json:"position"`
	Active   *bool `json:"active"`
}

type attachmentUpdateRequest struct {
	GroupID *uint `json:"group_id"`
	Active  *bool `json:"active"`
	// Regroup distinguishes "move to no group" from "leave the group alone".
	Regroup bool `json:"regroup"`
}

func (req blockRequest) input() service.BlockInput {
	input := service.BlockInput{
		Key:              req.Key,
		Title:            req.Title,
		Text:             req.Text,
		Format:           req.Format,
		RenderAsTemplate: req.RenderAsTemplate,
		Image:            req.Image,
		ImageWidth:       req.ImageWidth,
		ImageHeight:      req.ImageHeight,
		URL:              req.URL,
		Target:           req.Target,
		Active:           boolOr(req.Active, true),
	}
	if req.Content != nil && req.Content.Kind != "" {
		input.Content = &service.ObjectRef{Kind: req.Content.Kind, ID: req.Content.ID}
	}
	return input
}

func (req attachRequest) input() service.AttachInput {
	return service.AttachInput{
		BlockID:  req.BlockID,
		GroupID:  req.GroupID,
		Position: req.Position,
		Active:   boolOr(req.Active, true),
	}
}

// GetBlocks 列出全部内容块
func (a *API) GetBlocks(c *gin.Context) {
	blocks, err := a.blocks.List()
	if err != nil {
		respondServiceError(c, err, "获取内容块失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": blocks})
}

// GetBlock 获取单个内容块
func (a *API) GetBlock(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容块ID")
		return
	}
	block, err := a.blocks.Get(id)
	if err != nil {
		respondServiceError(c, err, "获取内容块失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"block": block})
}

// CreateBlock 创建内容块
func (a *API) CreateBlock(c *gin.Context) {
	var req blockRequest
	if !bindJSON(c, &req, "内容块数据格式不正确") {
		return
	}
	block, err := a.blocks.Create(req.input())
	if err != nil {
		respondServiceError(c, err, "创建内容块失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "内容块创建成功", "block": block})
}

// UpdateBlock 更新内容块
func (a *API) UpdateBlock(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容块ID")
		return
	}
	var req blockRequest
	if !bindJSON(c, &req, "内容块数据格式不正确") {
		return
	}
	block, err := a.blocks.Update(id, req.input())
	if err != nil {
		respondServiceError(c, err, "更新内容块失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "内容块更新成功", "block": block})
}

// DeleteBlock 删除内容块及其所有挂载关系
func (a *API) DeleteBlock(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的内容块ID")
		return
	}
	if err := a.blocks.Delete(id); err != nil {
		respondServiceError(c, err, "删除内容块失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "内容块删除成功"})
}

// GetBlockGroups 列出内容块分组
func (a *API) GetBlockGroups(c *gin.Context) {
	groups, err := a.groups.BlockGroups()
	if err != nil {
		respondServiceError(c, err, "获取内容块分组失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// CreateBlockGroup 创建内容块分组
func (a *API) CreateBlockGroup(c *gin.Context) {
	var req groupRequest
	if !bindJSON(c, &req, "分组名称不能为空") {
		return
	}
	group, err := a.groups.CreateBlockGroup(req.Title)
	if err != nil {
		respondServiceError(c, err, "创建内容块分组失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "内容块分组创建成功", "group": group})
}

// DeleteBlockGroup 删除内容块分组，挂载关系移到未分组
func (a *API) DeleteBlockGroup(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的分组ID")
		return
	}
	if err := a.groups.DeleteBlockGroup(id); err != nil {
		respondServiceError(c, err, "删除内容块分组失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "内容块分组删除成功"})
}

// GetPageBlocks 列出页面挂载的内容块
func (a *API) GetPageBlocks(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}
	links, err := a.blocks.PageBlocks(id)
	if err != nil {
		respondServiceError(c, err, "获取页面内容块失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"page_blocks": links})
}

// AttachPageBlock 将内容块挂载到页面
func (a *API) AttachPageBlock(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的页面ID")
		return
	}
	var req attachRequest
	if !bindJSON(c, &req, "请选择内容块") {
		return
	}
	link, err := a.blocks.AttachToPage(id, req.input())
	if err != nil {
		respondServiceError(c, err, "挂载内容块失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "内容块已挂载", "page_block": link})
}

// MovePageBlock 调整页面内容块顺序
func (a *API) MovePageBlock(c *gin.Context) {
	a.moveAttachment(c, a.blocks.MovePageBlock)
}

// UpdatePageBlock 修改页面内容块的分组或启用状态
func (a *API) UpdatePageBlock(c *gin.Context) {
	a.updateAttachment(c, a.blocks.RegroupPageBlock, a.blocks.SetPageBlockActive)
}

// DetachPageBlock 从页面移除内容块
func (a *API) DetachPageBlock(c *gin.Context) {
	a.detachAttachment(c, a.blocks.DetachPageBlock)
}

func (a *API) objectRef(c *gin.Context) (service.ObjectRef, bool) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的对象ID")
		return service.ObjectRef{}, false
	}
	return service.ObjectRef{Kind: c.Param("kind"), ID: id}, true
}

// GetAssociations 列出任意对象挂载的内容块
func (a *API) GetAssociations(c *gin.Context) {
	ref, ok := a.objectRef(c)
	if !ok {
		return
	}
	links, err := a.blocks.Associations(ref)
	if err != nil {
		respondServiceError(c, err, "获取对象内容块失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"associations": links})
}

// AttachAssociation 将内容块挂载到任意对象
func (a *API) AttachAssociation(c *gin.Context) {
	ref, ok := a.objectRef(c)
	if !ok {
		return
	}
	var req attachRequest
	if !bindJSON(c, &req, "请选择内容块") {
		return
	}
	link, err := a.blocks.Attach(ref, req.input())
	if err != nil {
		respondServiceError(c, err, "挂载内容块失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "内容块已挂载", "association": link})
}

// MoveAssociation 调整对象内容块顺序
func (a *API) MoveAssociation(c *gin.Context) {
	a.moveAttachment(c, a.blocks.MoveAssociation)
}

// UpdateAssociation 修改对象内容块的分组或启用状态
func (a *API) UpdateAssociation(c *gin.Context) {
	a.updateAttachment(c, a.blocks.RegroupAssociation, a.blocks.SetAssociationActive)
}

// DetachAssociation 从对象移除内容块
func (a *API) DetachAssociation(c *gin.Context) {
	a.detachAttachment(c, a.blocks.DetachAssociation)
}

func (a *API) moveAttachment(c *gin.Context, move func(id uint, position int) error) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的挂载ID")
		return
	}
	var req moveRequest
	if !bindJSON(c, &req, "请提供目标位置") {
		return
	}
	if err := move(id, *req.Position); err != nil {
		respondServiceError(c, err, "调整顺序失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "顺序已更新"})
}

func (a *API) updateAttachment(c *gin.Context, regroup func(id uint, groupID *uint) error, setActive func(id uint, active bool) error) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的挂载ID")
		return
	}
	var req attachmentUpdateRequest
	if !bindJSON(c, &req, "挂载数据格式不正确") {
		return
	}
	if req.Regroup || req.GroupID != nil {
		if err := regroup(id, req.GroupID); err != nil {
			respondServiceError(c, err, "修改分组失败")
			return
		}
	}
	if req.Active != nil {
		if err := setActive(id, *req.Active); err != nil {
			respondServiceError(c, err, "修改状态失败")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "挂载已更新"})
}

func (a *API) detachAttachment(c *gin.Context, detach func(id uint) error) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的挂载ID")
		return
	}
	if err := detach(id); err != nil {
		respondServiceError(c, err, "移除内容块失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "内容块已移除"})
}
