package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memobot/internal/bot"
	"memobot/internal/config"
	"memobot/internal/logger"
	"memobot/internal/repository"
	"memobot/internal/service"
	"memobot/internal/tui"
)

const usage = `usage: memobot [tui|bot]

  tui  review tasks in the terminal (default)
  bot  serve the Telegram bot and send the daily due reminder`

type runMode string

const (
	modeTUI runMode = "tui"
	modeBot runMode = "bot"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "memobot: %v\n", err)
		os.Exit(1)
	}
}

func parseMode(args []string) (runMode, error) {
	if len(args) == 0 {
		return modeTUI, nil
	}
	if len(args) > 1 {
		return "", fmt.Errorf("too many arguments\n%s", usage)
	}
	switch runMode(args[0]) {
	case modeTUI, modeBot:
		return runMode(args[0]), nil
	default:
		return "", fmt.Errorf("unknown mode %q\n%s", args[0], usage)
	}
}

func run(ctx context.Context, args []string) error {
	mode, err := parseMode(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var out io.Writer = os.Stderr
	if mode == modeTUI {
		f, err := logger.OpenFile(cfg.LogFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	log := logger.Setup(cfg.LogLevel, out)

	db, err := repository.NewDB(ctx, cfg.DatabasePath, log)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	taskRepo := repository.NewTaskRepository(db)
	taskSvc := service.NewTaskService(taskRepo, service.SystemClock, log)
	if err := taskSvc.EnsureSeed(ctx); err != nil {
		return err
	}

	log.Info("memobot started", slog.String("mode", string(mode)), slog.String("database", cfg.DatabasePath))
	defer log.Info("shutdown complete")

	if mode == modeBot {
		return runBot(ctx, cfg, taskSvc, log)
	}
	return tui.Run(ctx, taskSvc, log)
}

func runBot(ctx context.Context, cfg config.Config, taskSvc *service.TaskService, log *slog.Logger) error {
	settings, err := cfg.Bot()
	if err != nil {
		return err
	}

	reminderSvc := service.NewReminderService(taskSvc)
	telegramBot, err := bot.New(settings.Token, settings.ChatID, taskSvc, reminderSvc, log)
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	if cfg.RemindAt == "" {
		log.Info("due reminder disabled")
		return telegramBot.Start(ctx)
	}

	scheduler := service.NewJobScheduler(time.Local, log)
	entryID, err := scheduler.ScheduleDueReminder(ctx, cfg.RemindAt, telegramBot.SendDueReminder)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()
	log.Info("next due reminder", slog.Time("at", scheduler.Next(entryID)))

	return telegramBot.Start(ctx)
}
