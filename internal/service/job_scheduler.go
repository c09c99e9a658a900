package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// reminderTimeout bounds one run of the due reminder.
const reminderTimeout = 30 * time.Second

// JobScheduler runs the daily background jobs.
type JobScheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func NewJobScheduler(loc *time.Location, log *slog.Logger) *JobScheduler {
	if log == nil {
		log = slog.Default()
	}
	return &JobScheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		log:  log.With(slog.String("component", "scheduler")),
	}
}

// ScheduleDueReminder runs send every day at the HH:MM time at. Each run gets
// its own deadline derived from ctx; failures are logged and the job stays
// scheduled.
func (s *JobScheduler) ScheduleDueReminder(ctx context.Context, at string, send func(context.Context) error) (cron.EntryID, error) {
	id, err := s.scheduleDaily(at, func() {
		s.runReminder(ctx, send)
	})
	if err != nil {
		return 0, fmt.Errorf("schedule due reminder: %w", err)
	}
	s.log.Info("due reminder scheduled", slog.String("at", at))
	return id, nil
}

func (s *JobScheduler) runReminder(ctx context.Context, send func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	jobCtx, cancel := context.WithTimeout(ctx, reminderTimeout)
	defer cancel()

	started := time.Now()
	if err := send(jobCtx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error("due reminder failed", slog.String("error", err.Error()))
		return
	}
	s.log.Debug("due reminder sent", slog.Duration("took", time.Since(started)))
}

func (s *JobScheduler) scheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// Next reports when the given job runs next. The zero time means unknown.
func (s *JobScheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *JobScheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *JobScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// buildDailySpec turns HH:MM into a seconds-enabled cron spec.
func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(strings.TrimSpace(timeStr), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
