package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"memobot/internal/model"
)

// ReminderService builds human-readable summaries of what is due.
type ReminderService struct {
	tasks *TaskService
}

func NewReminderService(tasks *TaskService) *ReminderService {
	return &ReminderService{tasks: tasks}
}

// DueDigest is one snapshot of the due list.
type DueDigest struct {
	Today string
	Tasks []model.Task
}

// Empty reports whether nothing is due.
func (d DueDigest) Empty() bool {
	return len(d.Tasks) == 0
}

// Header is the reminder title line in Telegram HTML.
func (d DueDigest) Header() string {
	return fmt.Sprintf("🔔 <b>Time to review</b>\n🗓 %s · %d due", d.Today, len(d.Tasks))
}

// Due reads the due list once. Callers render text and buttons from the same
// snapshot.
func (s *ReminderService) Due(ctx context.Context) (DueDigest, error) {
	due, err := s.tasks.ListDue(ctx)
	if err != nil {
		return DueDigest{}, err
	}
	return DueDigest{Today: s.tasks.Today(), Tasks: due}, nil
}

// Chat rendering shortens long fields so one task always fits a message.
const (
	maxNameRunes = 200
	maxURLRunes  = 300
)

// FormatTaskHTML renders one task for a Telegram message.
func FormatTaskHTML(task model.Task, today string) string {
	var sb strings.Builder

	icon := "🟢"
	switch {
	case task.DueDate < today:
		icon = "⚠️"
	case task.DueDate == today:
		icon = "⏳"
	}

	name := clip(strings.TrimSpace(task.Name), maxNameRunes)
	sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s", icon, task.ID, html.EscapeString(name)))
	sb.WriteString(fmt.Sprintf("\n   📈 level %d · due %s", task.Level, task.DueDate))
	if overdue := daysBetween(task.DueDate, today); overdue > 0 {
		sb.WriteString(fmt.Sprintf(" (<b>%d d overdue</b>)", overdue))
	}
	if url := strings.TrimSpace(task.URL); url != "" {
		sb.WriteString(fmt.Sprintf("\n   🔗 %s", html.EscapeString(clip(url, maxURLRunes))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func daysBetween(from, to string) int {
	a, err := model.ParseDate(from, time.UTC)
	if err != nil {
		return 0
	}
	b, err := model.ParseDate(to, time.UTC)
	if err != nil {
		return 0
	}
	return int(b.Sub(a).Hours() / 24)
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
