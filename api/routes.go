// Package api 提供预览用的 HTTP 接口：提交一行数据，返回合成后的图片。
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ByLCY/imprint/compose"
)

// RegisterRoutes 在 r 上注册 /api 路由。
func RegisterRoutes(r *gin.Engine, e *compose.Engine) {
	h := &handlers{engine: e}
	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.GET("/assets", h.assets)
		api.GET("/schema", h.schema)
		api.POST("/compose", h.compose)
	}
}
