package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/view"
	"go.uber.org/zap"
)

// ShowLoginPage 渲染登录页面
func (a *API) ShowLoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "admin/login.html", gin.H{
		"title": "管理员登录",
	})
}

// Login 校验用户名与密码并写入会话
func (a *API) Login(c *gin.Context) {
	user, err := db.Authenticate(a.db, c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		if !errors.Is(err, db.ErrInvalidCredentials) {
			c.Error(err)
		}
		c.HTML(http.StatusUnauthorized, "admin/login.html", gin.H{"title": "管理员登录", "error": "用户名或密码错误"})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Set("username", user.Username)
	if err := session.Save(); err != nil {
		c.HTML(http.StatusInternalServerError, "admin/login.html", gin.H{"title": "管理员登录", "error": "会话保存失败"})
		return
	}

	c.Redirect(http.StatusFound, "/admin/dashboard")
}

// Logout 处理用户登出
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	c.Redirect(http.StatusFound, "/admin/login")
}

// ShowDashboard 渲染后台主面板
func (a *API) ShowDashboard(c *gin.Context) {
	session := sessions.Default(c)

	counts := map[string]int64{}
	for key, model := range map[string]interface{}{
		"pageCount":    &db.Page{},
		"blockCount":   &db.Block{},
		"articleCount": &db.Article{},
		"tagCount":     &db.Tag{},
	} {
		var n int64
		if err := a.db.Model(model).Count(&n).Error; err != nil {
			c.Error(err)
		}
		counts[key] = n
	}

	sites, err := a.sites.List()
	if err != nil {
		c.Error(err)
	}

	c.HTML(http.StatusOK, "admin/dashboard.html", gin.H{
		"title":        "管理面板",
		"username":     session.Get("username"),
		"pageCount":    counts["pageCount"],
		"blockCount":   counts["blockCount"],
		"articleCount": counts["articleCount"],
		"tagCount":     counts["tagCount"],
		"sites":        sites,
		"views":        a.views.Names(),
	})
}

// GetOptions returns the choices for format, target and view selects.
func (a *API) GetOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats": view.FormatOptions(),
		"targets": view.TargetOptions(),
		"views":   view.ViewOptions(a.views.Names()),
	})
}

// GetSites lists the configured sites.
func (a *API) GetSites(c *gin.Context) {
	sites, err := a.sites.List()
	if err != nil {
		respondServiceError(c, err, "获取站点列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sites": sites})
}

// AuthRequired 是一个简单的认证中间件
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")
		if userID == nil {
			if strings.HasPrefix(c.Request.URL.Path, "/admin/api/") {
				respondError(c, http.StatusUnauthorized, "请先登录")
				c.Abort()
				return
			}
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// InvalidateCache drops every rendered page after a successful admin write.
func (a *API) InvalidateCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		if c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		if err := a.cache.Invalidate(c.Request.Context()); err != nil {
			a.log.Warn("page cache invalidation failed", zap.Error(err))
		}
	}
}
