package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires the API surface onto engine.
func RegisterRoutes(engine *gin.Engine, h *Handlers) {
	engine.GET("/health", h.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")
	servers := v1.Group("/servers/:id")
	{
		servers.POST("/exec", h.Exec)
		servers.GET("/files", h.List)
		servers.GET("/files/content", h.ReadFile)
		servers.POST("/files/content", h.WriteFile)
		servers.POST("/files", h.CreateFile)
		servers.POST("/directories", h.CreateDir)
		servers.POST("/files/rename", h.Rename)
		servers.DELETE("/files", h.Delete)
		servers.GET("/search", h.Search)
		servers.GET("/stats", h.Stats)
		servers.GET("/stats/detailed", h.DetailedStats)
		servers.GET("/stats/history", h.StatsHistory)
		servers.POST("/test-connection", h.TestConnection)
	}
}
