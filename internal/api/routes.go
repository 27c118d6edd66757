// Package api wires the dispatcher's HTTP surface: code ingest, result
// ingestion and the bot-facing query endpoints.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/botbattle/backend/internal/api/handlers"
	"github.com/botbattle/backend/internal/config"
	"github.com/botbattle/backend/internal/events"
	"github.com/botbattle/backend/internal/middleware"
)

// SetupRoutes configures all dispatcher routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if rdb != nil {
		events.SetDefault(events.NewPublisher(rdb))
	}

	router.GET("/health", handlers.HealthCheck)

	// Runner callback; internal, not bearer-authenticated.
	router.POST("/game_result", handlers.GameResult(db))

	// SDK endpoints, authenticated by bot token.
	authed := router.Group("/", middleware.BotAuth(db))
	{
		authed.POST("/update_code", handlers.UpdateCode(db, cfg))
		authed.GET("/get_part_info/", handlers.GetPartInfo(db))
		authed.GET("/latest_versions_info/", handlers.LatestVersionsInfo(db))
	}

	// Operator surface.
	adminGroup := router.Group("/admin")
	{
		adminGroup.POST("/login", handlers.AdminLogin(db, cfg))

		session := adminGroup.Group("/", handlers.AdminAuth(cfg))
		{
			session.GET("/bots", handlers.AdminListBots(db))
			session.POST("/bots", handlers.AdminCreateBot(db))
			session.POST("/bots/:id/suspend", handlers.AdminSetSuspended(db, true))
			session.POST("/bots/:id/unsuspend", handlers.AdminSetSuspended(db, false))
			session.GET("/games", handlers.AdminListGames(db))
			session.GET("/audit", handlers.AdminAuditLogs(db))
		}
	}
}
