package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"devbot/internal/bot"
	"devbot/internal/config"
	"devbot/internal/logger"
	"devbot/internal/repository"
	"devbot/internal/server"
	"devbot/internal/service"
	"devbot/internal/state"
	"devbot/internal/sysinfo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg := logger.New(cfg.LogLevel)
	defer func() { _ = lg.Sync() }()

	db, err := repository.NewDB(cfg.DatabaseURL, lg)
	if err != nil {
		lg.Fatal("open database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		lg.Fatal("database handle", zap.Error(err))
	}
	defer sqlDB.Close()

	userRepo := repository.NewUserRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	if err := service.NewAdminService(userRepo, adminRepo, lg).Bootstrap(ctx, cfg.BootstrapAdminIDs); err != nil {
		lg.Fatal("bootstrap admins", zap.Error(err))
	}

	var states state.Store
	if cfg.RedisAddr != "" {
		rs, err := state.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			lg.Fatal("connect redis", zap.Error(err))
		}
		states = rs
		lg.Info("fsm storage: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		states = state.NewMemoryStore()
		lg.Info("fsm storage: memory")
	}
	defer states.Close()

	api, err := bot.NewAPI(cfg.TelegramToken)
	if err != nil {
		lg.Fatal("telegram", zap.Error(err))
	}
	lg.Info("authorized", zap.String("account", api.Self.UserName))

	reportSvc := service.NewReportService(sysinfo.NewCollector(cfg.PublicIPLookup))
	telegramBot := bot.New(api, userRepo, adminRepo, states, reportSvc, lg, cfg.Workers)
	telegramBot.RegisterAll(telegramBot.Router())
	if err := telegramBot.SetCommands(); err != nil {
		lg.Warn("set bot commands", zap.Error(err))
	}

	scheduler := service.NewSchedulerService(time.Local, lg)
	scheduled, err := scheduler.Schedule(cfg.SystemReportAt, cfg.SystemReportInterval, func() {
		jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := telegramBot.SendSystemReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("system report", zap.Error(err))
		}
	})
	if err != nil {
		lg.Fatal("schedule system reports", zap.Error(err))
	}
	if scheduled {
		scheduler.Start()
		defer scheduler.Stop()
	}

	if cfg.MetricsAddr != "" {
		ops := server.New(cfg.MetricsAddr, sqlDB, lg)
		ops.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := ops.Shutdown(shutdownCtx); err != nil {
				lg.Warn("ops server shutdown", zap.Error(err))
			}
		}()
	}

	lg.Info("devbot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("bot stopped with error", zap.Error(err))
	}
	lg.Info("shutdown complete")
}
