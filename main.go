package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog/log"

	"CarbonBot/config"
	"CarbonBot/handler"
	"CarbonBot/model"
	"CarbonBot/repo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	analysis := repo.NewAnalysisClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.RequestTimeout)
	images := repo.NewImageService(cfg.TelegramToken)
	h := handler.NewCarbonBotHandler(model.NewSessionManager(), analysis, images, cfg.StrictSteps, cfg.UploadDir)

	opts := []bot.Option{
		bot.WithDefaultHandler(h.Handler),
	}

	b, err := bot.New(cfg.TelegramToken, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating bot")
	}

	log.Info().Str("model", cfg.Model).Bool("strict_steps", cfg.StrictSteps).Msg("CarbonBot started")
	b.Start(ctx)
	log.Info().Msg("CarbonBot stopped")
}
