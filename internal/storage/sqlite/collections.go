package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskhub/internal/apperr"
	"taskhub/internal/models"
)

// CreateCollection persists a new collection and optionally attaches
// existing owned tasks to it, all in one transaction.
func (s *Store) CreateCollection(ctx context.Context, userID int64, name string, taskIDs []int64) (models.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Collection{}, apperr.E(apperr.Validation, "collection name must not be empty")
	}

	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO collections(user_id, name) VALUES(?, ?)`, userID, name)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.E(apperr.Validation, "collection name is already taken")
			}
			return fmt.Errorf("insert collection: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("collection id: %w", err)
		}

		for _, taskID := range taskIDs {
			if err := attachTaskTx(ctx, tx, userID, id, taskID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Collection{}, err
	}
	return s.GetCollection(ctx, userID, id)
}

// GetCollection retrieves an owned collection together with its tasks.
func (s *Store) GetCollection(ctx context.Context, userID, id int64) (models.Collection, error) {
	var c models.Collection
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at, updated_at FROM collections WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Collection{}, classifyMiss(ctx, s.db, "collections", id, "collection not found", "collection belongs to another user")
	}
	if err != nil {
		return models.Collection{}, fmt.Errorf("get collection: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE collection_id = ? ORDER BY created_at, id`, id)
	if err != nil {
		return models.Collection{}, fmt.Errorf("collection tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return models.Collection{}, fmt.Errorf("scan task: %w", err)
		}
		c.Tasks = append(c.Tasks, t)
	}
	return c, rows.Err()
}

// ListCollections returns the owner's collections, paginated.
func (s *Store) ListCollections(ctx context.Context, userID int64, page models.Page) ([]models.Collection, error) {
	page = page.Clamp()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at, updated_at FROM collections WHERE user_id = ? ORDER BY created_at, id LIMIT ? OFFSET ?`,
		userID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var collections []models.Collection
	for rows.Next() {
		var c models.Collection
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// UpdateCollection applies a partial update to an owned collection.
func (s *Store) UpdateCollection(ctx context.Context, userID, id int64, patch models.CollectionPatch) (models.Collection, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return models.Collection{}, apperr.E(apperr.Validation, "collection name must not be empty")
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE collections SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`, name, id, userID)
		if err != nil {
			if isUniqueViolation(err) {
				return models.Collection{}, apperr.E(apperr.Validation, "collection name is already taken")
			}
			return models.Collection{}, fmt.Errorf("update collection: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return models.Collection{}, err
		}
		if affected == 0 {
			return models.Collection{}, classifyMiss(ctx, s.db, "collections", id, "collection not found", "collection belongs to another user")
		}
	}
	return s.GetCollection(ctx, userID, id)
}

// DeleteCollection removes an owned collection. Contained tasks are deleted
// with it by the FK cascade, atomically.
func (s *Store) DeleteCollection(ctx context.Context, userID, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ? AND user_id = ?`, id, userID)
		if err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return classifyMiss(ctx, tx, "collections", id, "collection not found", "collection belongs to another user")
		}
		return nil
	})
}

// AttachTask puts an owned task into an owned collection. A task belongs to
// at most one collection, so this moves it when already attached elsewhere.
func (s *Store) AttachTask(ctx context.Context, userID, collectionID, taskID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := collectionOwned(ctx, tx, userID, collectionID); err != nil {
			return err
		}
		return attachTaskTx(ctx, tx, userID, collectionID, taskID)
	})
}

// DetachTask removes an owned task from the given collection.
func (s *Store) DetachTask(ctx context.Context, userID, collectionID, taskID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := collectionOwned(ctx, tx, userID, collectionID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET collection_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ? AND collection_id = ?`,
			taskID, userID, collectionID)
		if err != nil {
			return fmt.Errorf("detach task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			// The task may be missing, foreign, or simply not in this
			// collection; tell them apart.
			var owner, inCollection sql.NullInt64
			err := tx.QueryRowContext(ctx, `SELECT user_id, collection_id FROM tasks WHERE id = ?`, taskID).
				Scan(&owner, &inCollection)
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.E(apperr.NotFound, "task not found")
			}
			if err != nil {
				return fmt.Errorf("check task: %w", err)
			}
			if owner.Int64 != userID {
				return apperr.E(apperr.Forbidden, "task belongs to another user")
			}
			return apperr.E(apperr.NotFound, "task is not in this collection")
		}
		return nil
	})
}

func attachTaskTx(ctx context.Context, tx *sql.Tx, userID, collectionID, taskID int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET collection_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		collectionID, taskID, userID)
	if err != nil {
		return fmt.Errorf("attach task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return classifyMiss(ctx, tx, "tasks", taskID, "task not found", "task belongs to another user")
	}
	return nil
}

// collectionOwned verifies the collection exists and belongs to userID.
func collectionOwned(ctx context.Context, q querier, userID, collectionID int64) error {
	var owner int64
	err := q.QueryRowContext(ctx, `SELECT user_id FROM collections WHERE id = ?`, collectionID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.E(apperr.NotFound, "collection not found")
	}
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if owner != userID {
		return apperr.E(apperr.Forbidden, "collection belongs to another user")
	}
	return nil
}
