package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance-workspace/internal/bot"
	"finance-workspace/internal/config"
	"finance-workspace/internal/logger"
	"finance-workspace/internal/service"
	"finance-workspace/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	log := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	sessions := session.NewManager(cfg.AppDataDir, log)
	defer sessions.Close()

	if cfg.Workspace != "" {
		err = sessions.OpenAndReindex(ctx, cfg.Workspace)
	} else {
		err = sessions.OpenLast(ctx)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("open workspace (set FINANCE_WORKSPACE or run `finance open` first)")
	}

	telegramBot, err := bot.New(&cfg, sessions, time.Local, log)
	if err != nil {
		log.Fatal().Err(err).Msg("bot")
	}

	scheduler := service.NewSchedulerService(time.Local, log)
	reportID, err := scheduler.ScheduleDaily(cfg.ReportTime, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("daily report")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("schedule reports")
	}
	if _, err := scheduler.ScheduleInterval(time.Hour, func() {
		removed, err := sessions.PruneTemp(cfg.TempRetention)
		if err != nil {
			log.Warn().Err(err).Msg("prune temp")
			return
		}
		if removed > 0 {
			log.Info().Int("removed", removed).Msg("pruned temp files")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("schedule temp pruning")
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Info().Time("next_report", scheduler.Next(reportID)).Msg("finance bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("bot stopped with error")
	}
	log.Info().Msg("shutdown complete")
}
