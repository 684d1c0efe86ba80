package handler

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var allowedImageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true,
}

// UploadImage 处理内容块与文章配图的上传
func (a *API) UploadImage(c *gin.Context) {
	// 获取上传的文件
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的图片")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		respondError(c, http.StatusBadRequest, "只允许上传图片文件")
		return
	}

	// 读取图片头部以获取尺寸，同时校验内容确实是图片
	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取上传文件失败")
		return
	}
	cfg, format, err := image.DecodeConfig(src)
	src.Close()
	if err != nil {
		respondError(c, http.StatusBadRequest, "无法识别的图片格式")
		return
	}

	// 创建上传目录
	if err := os.MkdirAll(a.uploadDir, 0o755); err != nil {
		a.log.Error("create upload dir failed", zap.String("dir", a.uploadDir), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "创建上传目录失败")
		return
	}

	// 生成唯一文件名
	name := fmt.Sprintf("%s-%s%s", time.Now().Format("20060102"), uuid.NewString(), ext)
	if err := c.SaveUploadedFile(file, filepath.Join(a.uploadDir, name)); err != nil {
		a.log.Error("save upload failed", zap.String("file", name), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "保存文件失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "上传成功",
		"url":     path.Join(a.uploadURL, name),
		"format":  format,
		"width":   cfg.Width,
		"height":  cfg.Height,
	})
}
