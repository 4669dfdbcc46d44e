package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Register inserts the user unless a row with the same user_id exists.
func (s *SQLiteStore) Register(ctx context.Context, ident Identity) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO users (user_id, username) VALUES (?, ?)
        ON CONFLICT(user_id) DO NOTHING`, ident.UserID, ident.Username)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser resolves an identity to its row, or (nil, nil) when there is none.
func (s *SQLiteStore) GetUser(ctx context.Context, ident Identity) (*User, error) {
	var user *User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		user, err = findUser(ctx, tx, ident)
		return err
	})
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	return user, err
}

func (s *SQLiteStore) Exists(ctx context.Context, ident Identity) (bool, error) {
	user, err := s.GetUser(ctx, ident)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

func (s *SQLiteStore) HasAccess(ctx context.Context, ident Identity) (bool, error) {
	user, err := s.GetUser(ctx, ident)
	if err != nil {
		return false, err
	}
	return user != nil && user.HasAccess, nil
}

// ToggleAccess flips the access flag and returns the new value.
func (s *SQLiteStore) ToggleAccess(ctx context.Context, ident Identity) (bool, error) {
	var granted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		user, err := findUser(ctx, tx, ident)
		if err != nil {
			return err
		}
		granted = !user.HasAccess
		if _, err := tx.ExecContext(ctx, "UPDATE users SET has_access = ? WHERE id = ?", granted, user.ID); err != nil {
			return fmt.Errorf("failed to update access: %w", err)
		}
		return nil
	})
	return granted, err
}

// Remove deletes every context of the user (messages first) and then the
// user row. Missing users are a no-op.
func (s *SQLiteStore) Remove(ctx context.Context, userID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		ids, err := contextIDs(ctx, tx, userID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := deleteContext(ctx, tx, id); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
}

// findUser matches by user_id when the identity carries one and falls back
// to the most recently registered row with that username otherwise.
func findUser(ctx context.Context, tx *sql.Tx, ident Identity) (*User, error) {
	var row *sql.Row
	switch {
	case ident.UserID != 0:
		row = tx.QueryRowContext(ctx, `
            SELECT id, user_id, username, current_context_id, has_access
            FROM users WHERE user_id = ?`, ident.UserID)
	case ident.Username != "":
		row = tx.QueryRowContext(ctx, `
            SELECT id, user_id, username, current_context_id, has_access
            FROM users WHERE username = ?
            ORDER BY id DESC LIMIT 1`, ident.Username)
	default:
		return nil, ErrUserNotFound
	}

	var user User
	var current sql.NullInt64
	err := row.Scan(&user.ID, &user.UserID, &user.Username, &current, &user.HasAccess)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if current.Valid {
		user.CurrentContextID = &current.Int64
	}
	return &user, nil
}
