package server

import (
	"github.com/Luismorlan/insighthub/server/middlewares"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the api under /api/v1 plus the /ping health check.
func RegisterRoutes(router *gin.Engine, services Services) {
	h := &handlers{services: services}

	router.GET("/ping", ping)

	api := router.Group("/api/v1", middlewares.UserIdentity())

	ai := api.Group("/selective-ai")
	ai.POST("/process/:content_id", h.processContent)
	ai.POST("/batch", h.processBatch)
	ai.POST("/on-demand/:content_id", h.onDemandSummary)
	ai.GET("/match/:content_id", h.matchContent)
	ai.GET("/dashboard", h.dashboard)
	ai.GET("/priority", h.priorityContent)
	ai.GET("/recent", h.recentSummaries)

	api.GET("/companies", h.listCompanies)
	api.GET("/companies/:company_id", h.getCompany)

	api.GET("/following", h.listFollowing)
	api.POST("/following/sync", h.syncFollowing)
	api.POST("/following/:company_id", h.follow)
	api.DELETE("/following/:company_id", h.unfollow)

	api.GET("/cost/summary", h.costSummary)
}
