package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/groupkeeper-tgbot-go/internal/handlers"
	"github.com/groupkeeper-tgbot-go/internal/i18n"
	"github.com/groupkeeper-tgbot-go/internal/middleware"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/internal/services/customization"
	"github.com/groupkeeper-tgbot-go/internal/services/moderation"
	"github.com/groupkeeper-tgbot-go/internal/services/progression"
	"github.com/groupkeeper-tgbot-go/internal/services/storage"
	"github.com/groupkeeper-tgbot-go/internal/telegram"
	"github.com/groupkeeper-tgbot-go/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentUpdates bounds the goroutines handling updates at once.
const maxConcurrentUpdates = 32

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting group keeper bot...")

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}
	bot.Debug = cfg.Logging.Level == "debug"
	log.WithField("username", bot.Self.UserName).Info("Bot authorized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := middleware.NewMetrics()

	storageManager, err := storage.NewManager(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	defer storageManager.Close()
	storageManager.SetRecorder(metrics)

	seeded, err := storageManager.SeedGlobalSettings(ctx, globalDefaults(&cfg.Limits))
	if err != nil {
		log.WithError(err).Fatal("Failed to seed global settings")
	}
	log.WithField("seeded", seeded).Info("Global settings ready")

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Services
	customService := customization.NewService(storageManager, cfg.Limits.MaxCustomCommands, log)
	progressionService := progression.NewService(storageManager, log)
	progressionService.SetRecorder(metrics)
	moderationService := moderation.NewService(storageManager, log)
	moderationService.SetRecorder(metrics)

	floodGuard := middleware.NewFloodGuard(&cfg.Flood, log)
	floodGuard.SetRecorder(metrics)
	customService.OnOptionsChange(floodGuard.ResetChat)

	dispatcher := handlers.NewDispatcher(customService, progressionService, moderationService, floodGuard, localizer, log)
	dispatcher.SetRecorder(metrics)

	adapter := telegram.NewBot(bot, dispatcher, &cfg.Bot, log)
	adapter.SetRecorder(metrics)

	updates, cleanup, err := openUpdates(bot, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open update channel")
	}
	defer cleanup()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runUpdates(ctx, updates, adapter)
	})
	g.Go(func() error {
		floodGuard.Run(ctx)
		return nil
	})
	g.Go(func() error {
		startPeriodicTasks(ctx, storageManager, metrics, log)
		return nil
	})

	if cfg.Monitoring.Metrics.Enabled {
		g.Go(func() error {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")
			return middleware.StartMetricsServer(ctx, cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path, storageManager.Ping)
		})
	}

	if cfg.Bot.Webhook.Enabled {
		g.Go(func() error {
			return serveWebhook(ctx, cfg.Bot.Webhook.Port)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("Bot stopped with error")
	}
	bot.StopReceivingUpdates()
	log.Info("Bot stopped")
}

func globalDefaults(limits *config.LimitsConfig) []models.GlobalSetting {
	return []models.GlobalSetting{
		{Key: "max_media_per_user", Value: limits.MaxMediaPerUser, Description: "Maximum media files per user"},
		{Key: customization.GlobalMaxCustomCommands, Value: limits.MaxCustomCommands, Description: "Maximum custom commands per chat"},
		{Key: "default_language", Value: limits.DefaultLanguage, Description: "Default bot language"},
		{Key: "backup_interval_hours", Value: limits.BackupIntervalHours, Description: "Database backup interval in hours"},
	}
}

// openUpdates sets up webhook or long polling delivery.
func openUpdates(bot *tgbotapi.BotAPI, cfg *config.Config, log *logrus.Logger) (tgbotapi.UpdatesChannel, func(), error) {
	if !cfg.Bot.Webhook.Enabled {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = cfg.Bot.UpdateTimeout
		u.AllowedUpdates = []string{"message", "callback_query", "chat_member"}
		log.Info("Using long polling")
		return bot.GetUpdatesChan(u), func() {}, nil
	}

	webhookURL := fmt.Sprintf("%s/%s", cfg.Bot.Webhook.URL, bot.Token)
	webhook, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, nil, fmt.Errorf("create webhook: %w", err)
	}
	if _, err := bot.Request(webhook); err != nil {
		return nil, nil, fmt.Errorf("set webhook: %w", err)
	}
	log.WithField("url", cfg.Bot.Webhook.URL).Info("Webhook set")

	cleanup := func() {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.WithError(err).Error("Failed to delete webhook")
		}
	}
	return bot.ListenForWebhook("/" + bot.Token), cleanup, nil
}

// serveWebhook serves the handler ListenForWebhook registered on the default mux.
func serveWebhook(ctx context.Context, port int) error {
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		ReadTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// runUpdates handles updates concurrently until ctx is done, then waits for
// in-flight updates.
func runUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel, adapter *telegram.Bot) error {
	var workers errgroup.Group
	workers.SetLimit(maxConcurrentUpdates)
	defer workers.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			workers.Go(func() error {
				adapter.HandleUpdate(context.WithoutCancel(ctx), update)
				return nil
			})
		}
	}
}

// startPeriodicTasks refreshes the user and chat gauges
func startPeriodicTasks(ctx context.Context, store *storage.Manager, metrics *middleware.Metrics, log *logrus.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	refresh := func() {
		users, err := store.CountUsers(ctx)
		if err != nil {
			log.WithError(err).Warn("Failed to count users")
		} else {
			metrics.SetActiveUsers(float64(users))
		}
		chats, err := store.CountChats(ctx)
		if err != nil {
			log.WithError(err).Warn("Failed to count chats")
		} else {
			metrics.SetActiveChats(float64(chats))
		}
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}
