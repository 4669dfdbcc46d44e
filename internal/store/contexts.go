package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ListContexts returns the user's contexts in creation order.
func (s *SQLiteStore) ListContexts(ctx context.Context, userID int64) ([]Context, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, context_name FROM contexts
        WHERE user_id = ?
        ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contexts: %w", err)
	}
	defer rows.Close()

	var contexts []Context
	for rows.Next() {
		var c Context
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan context row: %w", err)
		}
		contexts = append(contexts, c)
	}
	return contexts, rows.Err()
}

// CreateContext inserts a context, makes it current and seeds it with the
// system prompt.
func (s *SQLiteStore) CreateContext(ctx context.Context, userID int64, name string) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = createContext(ctx, tx, userID, name)
		return err
	})
	return id, err
}

// DeleteContext removes a context and its messages. A zero contextID means
// the current context; when there is none this is a no-op. If the deleted
// context was current the pointer is cleared, never left dangling.
func (s *SQLiteStore) DeleteContext(ctx context.Context, userID int64, contextID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		target, err := resolveTarget(ctx, tx, userID, contextID)
		if err != nil || target == 0 {
			return err
		}
		return deleteOwnedContext(ctx, tx, userID, target)
	})
}

// RemoveCurrentContext deletes the current context and moves the pointer to
// the newest remaining context, creating a default one when none is left.
// It returns the context that is current afterwards.
func (s *SQLiteStore) RemoveCurrentContext(ctx context.Context, userID int64) (*Context, error) {
	var current *Context
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		target, err := currentContextID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if target != 0 {
			if err := deleteOwnedContext(ctx, tx, userID, target); err != nil {
				return err
			}
		}

		var last int64
		err = tx.QueryRowContext(ctx, `
            SELECT id FROM contexts WHERE user_id = ?
            ORDER BY id DESC LIMIT 1`, userID).Scan(&last)
		switch {
		case err == sql.ErrNoRows:
			if last, err = createContext(ctx, tx, userID, DefaultContextName); err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("failed to query last context: %w", err)
		default:
			if err := setCurrent(ctx, tx, userID, last); err != nil {
				return err
			}
		}

		current, err = getContext(ctx, tx, userID, last)
		return err
	})
	return current, err
}

// CurrentContextID returns the selected context, or nil when there is none.
func (s *SQLiteStore) CurrentContextID(ctx context.Context, userID int64) (*int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = currentContextID(ctx, tx, userID)
		return err
	})
	if err != nil || id == 0 {
		return nil, err
	}
	return &id, nil
}

// SetCurrentContext points the user at one of their own contexts and
// returns it for confirmation.
func (s *SQLiteStore) SetCurrentContext(ctx context.Context, userID int64, contextID int64) (*Context, error) {
	var c *Context
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if c, err = getContext(ctx, tx, userID, contextID); err != nil {
			return err
		}
		return setCurrent(ctx, tx, userID, contextID)
	})
	return c, err
}

// RenameContext renames the current context. Without one it does nothing.
func (s *SQLiteStore) RenameContext(ctx context.Context, userID int64, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := currentContextID(ctx, tx, userID)
		if err != nil || current == 0 {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE contexts SET context_name = ? WHERE id = ?", name, current); err != nil {
			return fmt.Errorf("failed to rename context: %w", err)
		}
		return nil
	})
}

func createContext(ctx context.Context, tx *sql.Tx, userID int64, name string) (int64, error) {
	res, err := tx.ExecContext(ctx, "INSERT INTO contexts (user_id, context_name) VALUES (?, ?)", userID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to insert context: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read context id: %w", err)
	}
	if err := setCurrent(ctx, tx, userID, id); err != nil {
		return 0, err
	}
	if _, err := insertMessage(ctx, tx, id, RoleSystem, SystemPrompt); err != nil {
		return 0, err
	}
	return id, nil
}

func setCurrent(ctx context.Context, tx *sql.Tx, userID int64, contextID int64) error {
	res, err := tx.ExecContext(ctx, "UPDATE users SET current_context_id = ? WHERE user_id = ?", contextID, userID)
	if err != nil {
		return fmt.Errorf("failed to update current context: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// currentContextID returns 0 when the user has no selection or no row.
func currentContextID(ctx context.Context, tx *sql.Tx, userID int64) (int64, error) {
	var current sql.NullInt64
	err := tx.QueryRowContext(ctx, "SELECT current_context_id FROM users WHERE user_id = ?", userID).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query current context: %w", err)
	}
	return current.Int64, nil
}

func resolveTarget(ctx context.Context, tx *sql.Tx, userID int64, contextID int64) (int64, error) {
	if contextID != 0 {
		return contextID, nil
	}
	return currentContextID(ctx, tx, userID)
}

func getContext(ctx context.Context, tx *sql.Tx, userID int64, contextID int64) (*Context, error) {
	var c Context
	err := tx.QueryRowContext(ctx, `
        SELECT id, user_id, context_name FROM contexts
        WHERE id = ? AND user_id = ?`, contextID, userID).Scan(&c.ID, &c.UserID, &c.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrContextNotFound
		}
		return nil, fmt.Errorf("failed to get context: %w", err)
	}
	return &c, nil
}

func contextIDs(ctx context.Context, tx *sql.Tx, userID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM contexts WHERE user_id = ? ORDER BY id ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contexts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan context id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func deleteOwnedContext(ctx context.Context, tx *sql.Tx, userID int64, contextID int64) error {
	if _, err := getContext(ctx, tx, userID, contextID); err != nil {
		return err
	}
	if err := deleteContext(ctx, tx, contextID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
        UPDATE users SET current_context_id = NULL
        WHERE user_id = ? AND current_context_id = ?`, userID, contextID)
	if err != nil {
		return fmt.Errorf("failed to clear current context: %w", err)
	}
	return nil
}

func deleteContext(ctx context.Context, tx *sql.Tx, contextID int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE context_id = ?", contextID); err != nil {
		return fmt.Errorf("failed to delete context messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM contexts WHERE id = ?", contextID); err != nil {
		return fmt.Errorf("failed to delete context: %w", err)
	}
	return nil
}
