package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Brownie44l1/fer-classifier/internal/app"
	"github.com/Brownie44l1/fer-classifier/internal/config"
	"github.com/Brownie44l1/fer-classifier/internal/logging"
	"github.com/Brownie44l1/fer-classifier/internal/telegram"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.TelegramBotToken == "" {
		logger.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize classifier", zap.Error(err))
	}
	defer application.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.Error("failed to create bot", zap.Error(err))
		return
	}
	logger.Info("bot authorized", zap.String("username", bot.Self.UserName))

	router := telegram.NewRouter(bot, application.Service, logger)
	telegram.RunPolling(ctx, bot, logger, func(upd tgbotapi.Update) {
		router.HandleUpdate(ctx, upd)
	})
}
