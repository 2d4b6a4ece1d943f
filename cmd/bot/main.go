package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance_bot/internal/app"
	"attendance_bot/internal/domain/auth"
	"attendance_bot/internal/domain/ledger"
	"attendance_bot/internal/domain/roster"
	"attendance_bot/internal/infra/config"
	idb "attendance_bot/internal/infra/database"
	"attendance_bot/internal/infra/httpserver"
	"attendance_bot/internal/infra/logger"
	"attendance_bot/internal/infra/memstore"
	"attendance_bot/internal/infra/scheduler"
	"attendance_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	mainLog := logger.Log.WithField("component", "main")
	mainLog.Infof("Configuration loaded. LogLevel: %s, Environment: %s", cfg.LogLevel, cfg.Environment)

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLog.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLog.Info("Database connection established")

	// Repositories over the remote tables.
	authRepo := idb.NewPostgresAuthRepository(db)
	assignmentRepo := idb.NewPostgresAssignmentRepository(db)
	ledgerRepo := idb.NewPostgresLedgerRepository(db)

	authCache := auth.NewCache(authRepo, cfg.AuthCacheTTL, logger.Log.WithField("component", "auth_cache"))
	rosterResolver := roster.NewResolver(assignmentRepo)
	ledgerService := ledger.NewService(ledgerRepo, cfg.TimeLocation(), logger.Log.WithField("component", "ledger"))
	sessions := memstore.NewSessionStore(cfg.SessionTTL)

	attendanceService := app.NewAttendanceService(
		authCache,
		sessions,
		rosterResolver,
		ledgerService,
		cfg.ContactInfo,
		logger.Log.WithField("component", "attendance"),
	)
	mainLog.Info("Attendance service initialized")

	// Warm the authorization cache before taking traffic. A failure is not
	// fatal: the first authorized check retries the fetch.
	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 30*time.Second)
	if err := authCache.Refresh(warmCtx, true); err != nil {
		mainLog.WithError(err).Warn("Initial authorization cache refresh failed")
	}
	cancelWarm()

	authScheduler := scheduler.NewAuthRefreshScheduler(
		authCache,
		cfg.CronSpecAuthRefresh,
		logger.Log.WithField("component", "scheduler"),
	)
	if err := authScheduler.Start(); err != nil {
		mainLog.Fatalf("FATAL: Could not start authorization refresh scheduler: %v", err)
	}

	ops := httpserver.New(db, cfg.HTTPPort, logger.Log.WithField("component", "httpserver"))
	ops.Start()

	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := logger.Log.WithField("component", "telebot").WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Bot handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLog.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}

	telegram.RegisterAttendanceHandlers(bot, attendanceService, cfg.RequestTimeout, logger.Log.WithField("component", "handlers"))
	mainLog.Info("Attendance handlers registered")

	mainLog.Info("Application setup complete. Bot is starting...")
	go bot.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLog.Info("Shutting down application...")
	bot.Stop()
	authScheduler.Stop()
	ops.Stop()
	mainLog.Info("Application shut down gracefully")
}
