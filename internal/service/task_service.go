package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"memobot/internal/model"
	"memobot/internal/repository"
	"memobot/internal/srs"
)

const (
	seedName = "Add a task"
	seedURL  = "http://example.com"
)

// TaskStore is the persistence the task service needs.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*model.Task, error)
	ListAll(ctx context.Context) ([]model.Task, error)
	ListDue(ctx context.Context, asOf string) ([]model.Task, error)
	Modify(ctx context.Context, id uint, fn func(task *model.Task) error) (*model.Task, error)
	SeedIfEmpty(ctx context.Context, seed *model.Task) (bool, error)
}

var _ TaskStore = (*repository.TaskRepository)(nil)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Name string `validate:"required,max=500"`
	URL  string `validate:"max=4096"`
}

// TaskService wraps task-related business logic: creation, listing and the
// review transaction.
type TaskService struct {
	store    TaskStore
	clock    Clock
	validate *validator.Validate
	log      *slog.Logger
}

func NewTaskService(store TaskStore, clock Clock, log *slog.Logger) *TaskService {
	if clock == nil {
		clock = SystemClock
	}
	if log == nil {
		log = slog.Default()
	}
	return &TaskService{
		store:    store,
		clock:    clock,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With(slog.String("component", "task_service")),
	}
}

// Today returns the scheduling date.
func (s *TaskService) Today() string {
	return model.FormatDate(s.clock.today())
}

// EnsureSeed inserts the placeholder task into an empty store.
func (s *TaskService) EnsureSeed(ctx context.Context) error {
	inserted, err := s.store.SeedIfEmpty(ctx, &model.Task{
		Name:    seedName,
		URL:     seedURL,
		DueDate: s.Today(),
	})
	if err != nil {
		return fmt.Errorf("seed tasks: %w", err)
	}
	if inserted {
		s.log.Info("seeded empty store with placeholder task")
	}
	return nil
}

func (s *TaskService) CreateTask(ctx context.Context, name, url string) (*model.Task, error) {
	input := TaskInput{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)}
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTask, describe(verrs))
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}

	task := model.Task{
		Name:    input.Name,
		URL:     input.URL,
		Level:   0,
		DueDate: s.Today(),
	}
	if err := s.store.Create(ctx, &task); err != nil {
		s.log.Error("create task failed", slog.String("error", err.Error()))
		return nil, err
	}

	s.log.Info("task created", slog.Uint64("task_id", uint64(task.ID)))
	return &task, nil
}

func (s *TaskService) GetTask(ctx context.Context, id uint) (*model.Task, error) {
	return s.store.FindByID(ctx, id)
}

// ListAll returns every task, latest due date first.
func (s *TaskService) ListAll(ctx context.Context) ([]model.Task, error) {
	return s.store.ListAll(ctx)
}

// ListDue returns the tasks due today or earlier, latest due date first.
func (s *TaskService) ListDue(ctx context.Context) ([]model.Task, error) {
	return s.store.ListDue(ctx, s.Today())
}

// DeleteTask removes a task. Unknown ids are ignored.
func (s *TaskService) DeleteTask(ctx context.Context, id uint) error {
	if err := s.store.Delete(ctx, id); err != nil {
		s.log.Error("delete task failed",
			slog.Uint64("task_id", uint64(id)),
			slog.String("error", err.Error()))
		return err
	}
	s.log.Info("task deleted", slog.Uint64("task_id", uint64(id)))
	return nil
}

// Review records a rating for a task and reschedules it. The level and due
// date are read and written in one store transaction.
func (s *TaskService) Review(ctx context.Context, id uint, rating srs.Rating) (*model.Task, error) {
	if !rating.IsValid() {
		s.log.Warn("invalid rating",
			slog.Uint64("task_id", uint64(id)),
			slog.Int("rating", int(rating)))
		return nil, fmt.Errorf("%w: %d", srs.ErrInvalidRating, int(rating))
	}

	today := s.clock.today()
	var previous int
	task, err := s.store.Modify(ctx, id, func(task *model.Task) error {
		out, err := srs.Next(task.Level, rating, today)
		if err != nil {
			return err
		}
		previous = task.Level
		task.Level = out.Level
		task.DueDate = out.DueDate()
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("task not found for review", slog.Uint64("task_id", uint64(id)))
			return nil, err
		}
		s.log.Error("review failed",
			slog.Uint64("task_id", uint64(id)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("review task %d: %w", id, err)
	}

	s.log.Info("task reviewed",
		slog.Uint64("task_id", uint64(id)),
		slog.String("rating", rating.String()),
		slog.Int("from_level", previous),
		slog.Int("to_level", task.Level),
		slog.String("due_date", task.DueDate))
	return task, nil
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, strings.ToLower(fe.Field())+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", strings.ToLower(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(parts, ", ")
}
