package main

import (
	"context"
	"log"

	"broadwaybot/internal/catalog"
	"broadwaybot/internal/config"
	"broadwaybot/internal/conversation"
	"broadwaybot/internal/core"
	"broadwaybot/internal/llm"
	"broadwaybot/internal/logger"
	"broadwaybot/internal/server"
	"broadwaybot/internal/services"
	"broadwaybot/internal/storage"
	"broadwaybot/pkg"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.InitLogger(cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	client, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create chat model client")
	}

	store, err := catalog.Load(cfg.Assistant.Assistant.CatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load product catalog")
	}

	assistant := cfg.Assistant.Assistant
	recommender := services.NewRecommender(client, store)

	handlers := map[pkg.Intent]services.Handler{
		pkg.IntentOccasion: services.NewOccasionService(client, recommender, assistant.MaxFollowUps),
		pkg.IntentPairing:  services.NewPairingService(client, store, recommender),
		pkg.IntentVacation: services.NewVacationService(client, recommender, assistant.VacationMaxRecs),
		pkg.IntentStyling:  services.NewStylingService(client, recommender, assistant.StylingMinSlots, assistant.MaxFollowUps),
		pkg.IntentGeneral:  services.NewGeneralService(client, recommender, assistant.FallbackMessage),
	}

	orchestrator, err := core.NewOrchestrator(
		conversation.NewSummarizer(client, assistant.MaxSummaryChars),
		conversation.NewClassifier(client),
		conversation.NewGenderExtractor(client),
		handlers,
		core.Texts{
			GenderPrompt: assistant.GenderPromptText,
			ErrorReply:   assistant.FallbackMessage,
		},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build orchestrator")
	}

	var registry storage.Registry
	if cfg.Redis.URL != "" {
		redisRegistry, err := storage.NewRedisRegistry(ctx, cfg.Redis.URL, cfg.Redis.SessionTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer redisRegistry.Close()
		registry = redisRegistry
		logger.Info().Msg("Using redis session registry")
	} else {
		registry = storage.NewMemoryRegistry(cfg.Redis.SessionTTL)
		logger.Info().Msg("Using in-memory session registry")
	}

	srv := server.New(registry, orchestrator, assistant.WelcomeMessage, cfg.Server.Mode)
	if err := srv.Run(cfg.Server.Addr); err != nil {
		logger.Fatal().Err(err).Msg("HTTP server exited")
	}
}
