package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskhub/internal/apperr"
	"taskhub/internal/models"
)

const taskColumns = `id, user_id, collection_id, title, description, completed, deadline, created_at, updated_at`

// CreateTask inserts a new task owned by userID. When a collection id is
// given it must belong to the same user.
func (s *Store) CreateTask(ctx context.Context, userID int64, t models.Task) (models.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return models.Task{}, apperr.E(apperr.Validation, "task title must not be empty")
	}

	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if t.CollectionID != nil {
			if err := collectionOwned(ctx, tx, userID, *t.CollectionID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tasks(user_id, collection_id, title, description, completed, deadline) VALUES(?, ?, ?, ?, ?, ?)`,
			userID, t.CollectionID, t.Title, strings.TrimSpace(t.Description), t.Completed, nullTime(t.Deadline))
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("task id: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, userID, id)
}

// GetTask retrieves a task by id, scoped to its owner.
func (s *Store) GetTask(ctx context.Context, userID, id int64) (models.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, classifyMiss(ctx, s.db, "tasks", id, "task not found", "task belongs to another user")
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns the owner's tasks matching the filter, paginated and
// ordered by creation.
func (s *Store) ListTasks(ctx context.Context, userID int64, filter models.TaskFilter, page models.Page) ([]models.Task, error) {
	page = page.Clamp()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ? AND completed = ?`
	args := []any{userID, filter.Completed}
	if filter.DueBy != nil {
		query += ` AND deadline IS NOT NULL AND deadline <= ?`
		args = append(args, *filter.DueBy)
	}
	query += ` ORDER BY created_at, id LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask applies a partial update to an owned task. Moving the task to
// a collection verifies the target is owned by the same user.
func (s *Store) UpdateTask(ctx context.Context, userID, id int64, patch models.TaskPatch) (models.Task, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := scanTask(tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID))
		if errors.Is(err, sql.ErrNoRows) {
			return classifyMiss(ctx, tx, "tasks", id, "task not found", "task belongs to another user")
		}
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}

		if patch.Title != nil {
			title := strings.TrimSpace(*patch.Title)
			if title == "" {
				return apperr.E(apperr.Validation, "task title must not be empty")
			}
			current.Title = title
		}
		if patch.Description != nil {
			current.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Completed != nil {
			current.Completed = *patch.Completed
		}
		if patch.Deadline != nil {
			current.Deadline = patch.Deadline
		}
		switch {
		case patch.ClearCollection:
			current.CollectionID = nil
		case patch.CollectionID != nil:
			if err := collectionOwned(ctx, tx, userID, *patch.CollectionID); err != nil {
				return err
			}
			current.CollectionID = patch.CollectionID
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET title = ?, description = ?, completed = ?, deadline = ?, collection_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			current.Title, current.Description, current.Completed, nullTime(current.Deadline), current.CollectionID, id)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, userID, id)
}

// DeleteTask removes an owned task.
func (s *Store) DeleteTask(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return classifyMiss(ctx, s.db, "tasks", id, "task not found", "task belongs to another user")
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var (
		t            models.Task
		collectionID sql.NullInt64
		deadline     sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &collectionID, &t.Title, &t.Description, &t.Completed, &deadline, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Task{}, err
	}
	if collectionID.Valid {
		t.CollectionID = &collectionID.Int64
	}
	if deadline.Valid {
		d := deadline.Time
		t.Deadline = &d
	}
	return t, nil
}

// nullTime converts an optional deadline for binding.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
