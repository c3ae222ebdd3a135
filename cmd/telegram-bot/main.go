package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dvloznov/saku-tracker/internal/app"
	"github.com/dvloznov/saku-tracker/internal/config"
	"github.com/dvloznov/saku-tracker/internal/logger"
	"github.com/dvloznov/saku-tracker/internal/telegram"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithConfig(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.TelegramToken == "" {
		log.Fatal().Msg("TELEGRAM_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open application")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to close application")
		}
	}()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Telegram bot")
	}
	log.Info().Str("username", api.Self.UserName).Msg("Bot started")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()

	err = telegram.New(api, a.Ledger, log).Run(ctx, updates)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Bot stopped with error")
	}
	log.Info().Msg("Bot stopped")
}
