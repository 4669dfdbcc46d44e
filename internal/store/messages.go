package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AppendMessage adds a message to the current context, creating a default
// context first when the user has none selected.
func (s *SQLiteStore) AppendMessage(ctx context.Context, userID int64, role string, content string) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := currentContextID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current == 0 {
			if current, err = createContext(ctx, tx, userID, DefaultContextName); err != nil {
				return err
			}
		}
		id, err = insertMessage(ctx, tx, current, role, content)
		return err
	})
	return id, err
}

// ResetContext drops every non-system message of the current context.
func (s *SQLiteStore) ResetContext(ctx context.Context, userID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := currentContextID(ctx, tx, userID)
		if err != nil || current == 0 {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE context_id = ? AND role != ?", current, RoleSystem)
		if err != nil {
			return fmt.Errorf("failed to reset context: %w", err)
		}
		return nil
	})
}

// GetMessages returns the current context's history in id order. A positive
// limit keeps only the newest limit messages, still oldest first.
func (s *SQLiteStore) GetMessages(ctx context.Context, userID int64, limit int) ([]ChatMessage, error) {
	var messages []ChatMessage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := currentContextID(ctx, tx, userID)
		if err != nil || current == 0 {
			return err
		}

		var rows *sql.Rows
		if limit > 0 {
			rows, err = tx.QueryContext(ctx, `
                SELECT role, content FROM (
                    SELECT id, role, content FROM messages
                    WHERE context_id = ?
                    ORDER BY id DESC
                    LIMIT ?
                )
                ORDER BY id ASC`, current, limit)
		} else {
			rows, err = tx.QueryContext(ctx, `
                SELECT role, content FROM messages
                WHERE context_id = ?
                ORDER BY id ASC`, current)
		}
		if err != nil {
			return fmt.Errorf("failed to query messages: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var msg ChatMessage
			if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
				return fmt.Errorf("failed to scan message row: %w", err)
			}
			messages = append(messages, msg)
		}
		return rows.Err()
	})
	return messages, err
}

// ContextMessages returns every stored message of a context in id order.
func (s *SQLiteStore) ContextMessages(ctx context.Context, contextID int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, context_id, role, content FROM messages
        WHERE context_id = ?
        ORDER BY id ASC`, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ContextID, &msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func insertMessage(ctx context.Context, tx *sql.Tx, contextID int64, role string, content string) (int64, error) {
	res, err := tx.ExecContext(ctx, "INSERT INTO messages (context_id, role, content) VALUES (?, ?, ?)", contextID, role, content)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}
	return res.LastInsertId()
}
