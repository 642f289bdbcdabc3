package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/huifen-rgb/vibe-coding-remover/middleware"
)

// BuildInfo 构建信息
type BuildInfo struct {
	Version   string
	BuildTime string
	BuildID   string
	GitCommit string
	GitBranch string
}

// NewRouter 注册全部路由
func NewRouter(h *SessionHandler, info BuildInfo) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"version": info.Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    info.Version,
			"build_time": info.BuildTime,
			"build_id":   info.BuildID,
			"git_commit": info.GitCommit,
			"git_branch": info.GitBranch,
		})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/sessions", h.Create)
		api.GET("/sessions/:id", h.Get)
		api.DELETE("/sessions/:id", h.Delete)
		api.PUT("/sessions/:id/image", h.LoadImage)
		api.GET("/sessions/:id/preview", h.Preview)
		api.PUT("/sessions/:id/layers/:kind", h.SetLayer)
		api.GET("/sessions/:id/layers/:kind", h.GetLayer)
		api.DELETE("/sessions/:id/layers", h.ClearLayers)
		api.POST("/sessions/:id/composite", h.Composite)
		api.GET("/sessions/:id/result", h.Result)
	}

	return r
}
