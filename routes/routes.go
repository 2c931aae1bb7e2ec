package routes

import (
	"astra/controllers"
	"astra/middlewares"

	"github.com/gin-gonic/gin"
)

// Controllers はルーターに登録するハンドラ群
type Controllers struct {
	Chat    *controllers.ChatController
	Catalog *controllers.CatalogController
	Memory  *controllers.MemoryController
	Health  *controllers.HealthController
}

// SetupRouter は apiKey が空でなければ /api/v1 に認証をかける
func SetupRouter(ctrl Controllers, apiKey string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.Logger(), middlewares.CORS())

	r.GET("/health", ctrl.Health.HealthHandler)

	v1 := r.Group("/api/v1", middlewares.APIKey(apiKey))
	{
		v1.GET("/health", ctrl.Health.HealthHandler)

		// キャラクターと処方
		v1.GET("/characters", controllers.JSONHandler(ctrl.Chat.CharactersHandler))
		v1.GET("/remedies", controllers.JSONHandler(ctrl.Catalog.RemediesHandler))
		v1.GET("/remedies/:planet", controllers.JSONHandler(ctrl.Catalog.PlanetRemedyHandler))
		v1.GET("/doshas/:dosha", controllers.JSONHandler(ctrl.Catalog.DoshaRemedyHandler))
		v1.GET("/prompts", controllers.JSONHandler(ctrl.Catalog.PromptsHandler))

		// 会話
		v1.POST("/chat", controllers.JSONHandler(ctrl.Chat.ChatHandler))
		v1.POST("/chat/simple", controllers.JSONHandler(ctrl.Chat.SimpleChatHandler))
		v1.GET("/sessions/:session_id/history", controllers.JSONHandler(ctrl.Chat.HistoryHandler))
		v1.POST("/sessions/:session_id/consolidate", controllers.JSONHandler(ctrl.Memory.ConsolidateHandler))

		// 長期記憶
		v1.GET("/users/:user_id/facts", controllers.JSONHandler(ctrl.Memory.FactsHandler))
		v1.PATCH("/users/:user_id/facts/:fact_id", controllers.JSONHandler(ctrl.Memory.UpdateFactHandler))
		v1.GET("/users/:user_id/profile", controllers.JSONHandler(ctrl.Memory.ProfileHandler))
		v1.DELETE("/users/:user_id", controllers.JSONHandler(ctrl.Chat.DeleteUserHandler))

		v1.GET("/stats/cache", controllers.JSONHandler(ctrl.Health.CacheStatsHandler))
	}

	return r
}
