package router

import (
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/simplecms/internal/handler"
	"github.com/simplecms/internal/logging"
	"github.com/simplecms/internal/metrics"
	"github.com/simplecms/internal/render"
	"go.uber.org/zap"
)

const sessionName = "simplecms_session"

// Options 描述组装路由所需的依赖
type Options struct {
	SessionSecret string
	UploadDir     string
	UploadURLPath string
	// Templates are layered in order; later sources override earlier ones.
	Templates []fs.FS
	Metrics   *metrics.Metrics
	Log       *zap.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) (*gin.Engine, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(logging.Middleware(log), gin.Recovery())

	// 配置会话中间件
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	// 加载模板并注册模板函数
	engine := render.NewEngine(api.Helpers().FuncMap(), opts.Templates...)
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	r.HTMLRender = engine

	// 静态文件服务
	if opts.UploadDir != "" {
		urlPath := opts.UploadURLPath
		if urlPath == "" {
			urlPath = "/uploads"
		}
		r.Static(urlPath, opts.UploadDir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", opts.Metrics.Handler())
	}

	// 文章视图
	articles := r.Group("/articles")
	{
		articles.GET("/", api.ShowArticles)
		articles.GET("/search/", api.SearchArticles)
		articles.GET("/tag/:slug/", api.ShowTagArticles)
		articles.GET("/category/:slug/", api.ShowCategoryArticles)
		articles.GET("/:year/", api.ShowYearArticles)
		articles.GET("/:year/:month/:day/:slug/", api.ShowArticleDetail)
	}

	// 后台管理路由
	admin := r.Group("/admin")
	{
		admin.GET("/login", api.ShowLoginPage)
		admin.POST("/login", api.Login)
		admin.GET("/logout", api.Logout)

		// 需要认证的后台路由
		auth := admin.Group("")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("/dashboard", api.ShowDashboard)

			// API路由，写操作成功后使页面缓存失效
			apiGroup := auth.Group("/api")
			apiGroup.Use(api.InvalidateCache())
			{
				apiGroup.GET("/options", api.GetOptions)
				apiGroup.GET("/sites", api.GetSites)

				apiGroup.GET("/pages", api.GetPages)
				apiGroup.GET("/pages/:id", api.GetPage)
				apiGroup.POST("/pages", api.CreatePage)
				apiGroup.PUT("/pages/:id", api.UpdatePage)
				apiGroup.POST("/pages/:id/move", api.MovePage)
				apiGroup.DELETE("/pages/:id", api.DeletePage)

				apiGroup.GET("/pages/:id/blocks", api.GetPageBlocks)
				apiGroup.POST("/pages/:id/blocks", api.AttachPageBlock)
				apiGroup.POST("/page-blocks/:id/move", api.MovePageBlock)
				apiGroup.PUT("/page-blocks/:id", api.UpdatePageBlock)
				apiGroup.DELETE("/page-blocks/:id", api.DetachPageBlock)

				apiGroup.GET("/page-groups", api.GetPageGroups)
				apiGroup.POST("/page-groups", api.CreatePageGroup)
				apiGroup.DELETE("/page-groups/:id", api.DeletePageGroup)

				apiGroup.GET("/blocks", api.GetBlocks)
				apiGroup.GET("/blocks/:id", api.GetBlock)
				apiGroup.POST("/blocks", api.CreateBlock)
				apiGroup.PUT("/blocks/:id", api.UpdateBlock)
				apiGroup.DELETE("/blocks/:id", api.DeleteBlock)

				apiGroup.GET("/block-groups", api.GetBlockGroups)
				apiGroup.POST("/block-groups", api.CreateBlockGroup)
				apiGroup.DELETE("/block-groups/:id", api.DeleteBlockGroup)

				apiGroup.GET("/associations/:kind/:id", api.GetAssociations)
				apiGroup.POST("/associations/:kind/:id", api.AttachAssociation)
				apiGroup.POST("/block-associations/:id/move", api.MoveAssociation)
				apiGroup.PUT("/block-associations/:id", api.UpdateAssociation)
				apiGroup.DELETE("/block-associations/:id", api.DetachAssociation)

				apiGroup.GET("/categories", api.GetCategories)
				apiGroup.POST("/categories", api.CreateCategory)
				apiGroup.PUT("/categories/:id", api.UpdateCategory)
				apiGroup.POST("/categories/:id/move", api.MoveCategory)
				apiGroup.DELETE("/categories/:id", api.DeleteCategory)

				apiGroup.GET("/tags", api.GetTags)
				apiGroup.POST("/tags", api.CreateTag)
				apiGroup.POST("/tags/reorder", api.ReorderTags)
				apiGroup.PUT("/tags/:id", api.UpdateTag)
				apiGroup.DELETE("/tags/:id", api.DeleteTag)

				apiGroup.GET("/articles", api.GetArticles)
				apiGroup.GET("/articles/:id", api.GetArticle)
				apiGroup.POST("/articles", api.CreateArticle)
				apiGroup.PUT("/articles/:id", api.UpdateArticle)
				apiGroup.DELETE("/articles/:id", api.DeleteArticle)

				apiGroup.GET("/seo/:kind/:id", api.GetSeo)
				apiGroup.PUT("/seo/:kind/:id", api.SaveSeo)
				apiGroup.DELETE("/seo/:kind/:id", api.DeleteSeo)

				apiGroup.POST("/upload", api.UploadImage)
			}
		}
	}

	// 其余路径交给页面分发器
	r.NoRoute(api.Dispatcher(engine, opts.Metrics).Handle)

	return r, nil
}
