package main

import (
	"context"

	"astra/config"
	"astra/controllers"
	"astra/logger"
	"astra/routes"
	"astra/services"
	"astra/store"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	logger.SetDebug(cfg.Debug)

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open database", "driver", cfg.DatabaseDriver, "error", err)
	}
	defer db.Close()

	turns, err := store.OpenTurnStore(ctx, cfg, db)
	if err != nil {
		logger.Fatal("failed to open turn store", "turn_store", cfg.TurnStore, "error", err)
	}

	personas, err := services.LoadPersonaCatalog(cfg.PersonasFile)
	if err != nil {
		logger.Fatal("failed to load personas", "error", err)
	}
	remedies, err := services.LoadRemedyCatalog()
	if err != nil {
		logger.Fatal("failed to load remedies", "error", err)
	}

	llm, err := services.NewLLM(services.LLMConfigFrom(cfg))
	if err != nil {
		logger.Fatal("failed to create llm provider", "provider", cfg.LLMProvider, "error", err)
	}

	var guard *services.IdentityGuard
	if cfg.IdentityGuard {
		embedder := services.NewOpenAIEmbedder(cfg.EmbeddingAPIKey, "", cfg.EmbeddingModel)
		guard = services.NewIdentityGuard(embedder, cfg.IdentityThreshold)
	}

	astro := services.NewAstroService()
	geocoder := services.NewNominatimGeocoder(cfg.GeocoderURL, cfg.GeocoderTimeout)
	memory := services.NewRAGService(db)

	chat := services.NewChatService(services.ChatDeps{
		Store:           db,
		Turns:           turns,
		Users:           services.NewUserService(db, geocoder, astro, cfg.DefaultTimezone),
		Memory:          memory,
		Personas:        personas,
		Remedies:        remedies,
		Astro:           astro,
		LLM:             llm,
		Guard:           guard,
		HistoryLimit:    cfg.HistoryLimit,
		DefaultLanguage: cfg.DefaultLanguage,
	})
	consolidation := services.NewConsolidationService(db, turns, llm, cfg.ConsolidationMinMessages)

	router := routes.SetupRouter(routes.Controllers{
		Chat:    controllers.NewChatController(chat),
		Catalog: controllers.NewCatalogController(remedies),
		Memory:  controllers.NewMemoryController(memory, consolidation),
		Health:  controllers.NewHealthController(db, llm),
	}, cfg.APIKey)

	logger.Info("server starting",
		"addr", cfg.Addr(),
		"llm", llm.Model(),
		"database", db.Dialect().String(),
		"turn_store", cfg.TurnStore,
		"identity_guard", guard != nil,
		"api_key", cfg.APIKey != "")
	if err := router.Run(cfg.Addr()); err != nil {
		logger.Fatal("server failed to start", "error", err)
	}
}
