package repository

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"memobot/internal/model"
)

const orderByDueDesc = "due_date DESC, id DESC"

// TaskRepository handles CRUD for tasks. It owns the database handle and
// serializes every operation behind a single lock, so a read-modify-write in
// Modify can never interleave with another writer.
type TaskRepository struct {
	mu sync.Mutex
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts task and fills in its id.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return storageErr("create task", err)
	}
	return nil
}

// Delete removes the task with id. Deleting a missing task is not an error.
func (r *TaskRepository) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.WithContext(ctx).Delete(&model.Task{}, id).Error; err != nil {
		return storageErr("delete task", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return findByID(r.db.WithContext(ctx), id)
}

// ListAll returns every task, latest due date first.
func (r *TaskRepository) ListAll(ctx context.Context) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tasks []model.Task
	if err := r.db.WithContext(ctx).Order(orderByDueDesc).Find(&tasks).Error; err != nil {
		return nil, storageErr("list tasks", err)
	}
	return tasks, nil
}

// ListDue returns tasks due on or before asOf (model.DateLayout), latest due
// date first.
func (r *TaskRepository) ListDue(ctx context.Context, asOf string) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("due_date <= ?", asOf).
		Order(orderByDueDesc).
		Find(&tasks).Error; err != nil {
		return nil, storageErr("list due tasks", err)
	}
	return tasks, nil
}

// Update overwrites the level and due date of a task.
func (r *TaskRepository) Update(ctx context.Context, id uint, level int, dueDate string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return updateSchedule(r.db.WithContext(ctx), id, level, dueDate)
}

// Modify loads a task, lets fn change it and writes the level and due date
// back, all in one transaction. If fn or the write fails nothing is stored.
// Errors returned by fn are passed through unchanged.
func (r *TaskRepository) Modify(ctx context.Context, id uint, fn func(task *model.Task) error) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		updated model.Task
		fnErr   error
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := findByID(tx, id)
		if err != nil {
			return err
		}
		if fnErr = fn(task); fnErr != nil {
			return fnErr
		}
		if err := updateSchedule(tx, id, task.Level, task.DueDate); err != nil {
			return err
		}
		updated = *task
		return nil
	})
	switch {
	case err == nil:
		return &updated, nil
	case fnErr != nil, errors.Is(err, ErrNotFound), IsStorageError(err):
		return nil, err
	default:
		return nil, storageErr("modify task", err)
	}
}

// SeedIfEmpty inserts seed only when the table has no rows at all. It reports
// whether the seed was inserted.
func (r *TaskRepository) SeedIfEmpty(ctx context.Context, seed *model.Task) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Task{}).Count(&count).Error; err != nil {
			return storageErr("count tasks", err)
		}
		if count > 0 {
			return nil
		}
		if err := tx.Create(seed).Error; err != nil {
			return storageErr("seed task", err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		if IsStorageError(err) {
			return false, err
		}
		return false, storageErr("seed task", err)
	}
	return inserted, nil
}

func findByID(db *gorm.DB, id uint) (*model.Task, error) {
	var task model.Task
	if err := db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr("find task", err)
	}
	return &task, nil
}

func updateSchedule(db *gorm.DB, id uint, level int, dueDate string) error {
	res := db.Model(&model.Task{}).Where("id = ?", id).Updates(map[string]interface{}{
		"level":    level,
		"due_date": dueDate,
	})
	if res.Error != nil {
		return storageErr("update task", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
