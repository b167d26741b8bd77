package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathakanu/assistant/internal/assistant"
	"github.com/pathakanu/assistant/internal/auth"
	"github.com/pathakanu/assistant/internal/config"
	"github.com/pathakanu/assistant/internal/database"
	"github.com/pathakanu/assistant/internal/notify"
	myopenai "github.com/pathakanu/assistant/internal/openai"
	"github.com/pathakanu/assistant/internal/reminder"
	"github.com/pathakanu/assistant/internal/scheduler"
	"github.com/pathakanu/assistant/internal/server"
	"github.com/pathakanu/assistant/internal/translate"
	"github.com/pathakanu/assistant/internal/twilio"
	"github.com/pathakanu/assistant/internal/weather"
	"github.com/pathakanu/assistant/internal/wikipedia"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "assistant").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load failed")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	db, err := database.New(cfg.DatabaseURL, cfg.SQLitePath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("database init failed")
	}

	users := auth.NewUsers(db)
	tokens := auth.NewTokens(cfg.SecretKey)
	hub := server.NewHub(tokens, logger)

	speaker := notify.NewSpeaker(cfg.SpeechCommand, logger)
	primary := []reminder.Notifier{speaker, hub}
	if cfg.TwilioEnabled() {
		twilioClient := twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, logger)
		primary = append(primary, notify.NewWhatsApp(twilioClient, users))
		logger.Info().Str("from", cfg.TwilioWhatsAppNumber).Msg("whatsapp delivery enabled")
	}
	notifier := notify.NewMulti(logger, primary...).WithSecondary(notify.NewBeeper(os.Stdout))

	reminders := reminder.NewService(reminder.NewStore(), notifier, cfg.LocalTimezone, logger,
		reminder.WithPollInterval(cfg.ReminderPollInterval))

	sched := scheduler.New(cfg.LocalTimezone, cfg.SchedulerTick, logger)
	lastPending := -1
	sched.Every("pending-reminders", func(context.Context) {
		if n := reminders.Store().Len(); n != lastPending {
			lastPending = n
			logger.Debug().Int("pending", n).Msg("pending reminders changed")
		}
	})
	if err := sched.Start(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler start failed")
	}

	a := assistant.New(assistant.Deps{
		Reminders:   reminders,
		Weather:     weather.New(cfg.WeatherAPIKey, ""),
		Wikipedia:   wikipedia.New(""),
		Translator:  translate.New(cfg.DeepLAPIKey, cfg.Content.Languages, logger),
		Classifier:  myopenai.New(cfg.OpenAIAPIKey),
		Tips:        cfg.Content.Tips,
		Languages:   cfg.Content.Languages,
		HistorySize: cfg.HistorySize,
		Location:    cfg.LocalTimezone,
		Logger:      logger,
	})

	srv := server.New(server.Deps{
		Assistant:         a,
		Users:             users,
		Tokens:            tokens,
		Reminders:         reminders,
		Hub:               hub,
		DB:                db,
		Speech:            speaker,
		Webhook:           server.NewTwilioWebhook(a, cfg.TwilioAuthToken, cfg.TwilioWebhookURL, logger),
		StaticDir:         cfg.StaticDir,
		TimezoneName:      cfg.TimezoneName,
		EnableDebugRoutes: cfg.EnableDebugRoutes,
		Logger:            logger,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("timezone", cfg.TimezoneName).Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	waitForShutdown(httpServer, hub, sched, reminders, logger)
}

func waitForShutdown(httpServer *http.Server, hub *server.Hub, sched *scheduler.Scheduler, reminders *reminder.Service, logger zerolog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	hub.Close()
	sched.Stop()
	reminders.Close()
	logger.Info().Msg("shutdown complete")
}
